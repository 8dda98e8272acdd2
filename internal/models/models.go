// package models defines the persisted and in-flight data of a reconciliation batch
package models

import (
	"time"
)

// Model is implemented by every row the history database stores.
type Model interface {
	ID() string
	CreatedAt() time.Time
	UpdatedAt() time.Time // equal to CreatedAt for append-only rows
	Validate() error
}

// Repository is the CRUD surface shared by the history repositories.
// List criteria are column filters plus an optional "limit".
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}
