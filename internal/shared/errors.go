package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrAuthFailed       = fmt.Errorf("authentication failed")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")
	ErrTimeout          = fmt.Errorf("operation timed out")

	// Reconciliation errors
	ErrAttributionAmbiguous = fmt.Errorf("attribution ambiguous")
	ErrFilingFailed         = fmt.Errorf("filing failed")
	ErrNoMatchFound         = fmt.Errorf("no match found")
	ErrNotWritable          = fmt.Errorf("directory not writable")

	// API and service errors
	ErrServiceUnavailable   = fmt.Errorf("service unavailable")
	ErrPlaylistNotFound     = fmt.Errorf("playlist not found")
	ErrPlaylistSizeMismatch = fmt.Errorf("playlist size mismatch")
	ErrTrackNotFound        = fmt.Errorf("track not found")

	// Input validation errors
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
