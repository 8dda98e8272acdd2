package models

// Candidate is a catalog search hit. Path may be empty when the server's search does not return file locations.
type Candidate struct {
	ID     string `json:"id"`
	Path   string `json:"path,omitempty"`
	Title  string `json:"title,omitempty"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
}

// Playlist is a named remote playlist.
type Playlist struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Count     int      `json:"count"`
	MemberIDs []string `json:"member_ids,omitempty"`
}

// Contains reports whether id is already a member.
func (p *Playlist) Contains(id string) bool {
	for _, m := range p.MemberIDs {
		if m == id {
			return true
		}
	}
	return false
}

// IndexState reports whether the media server is scanning its library.
type IndexState int

const (
	IndexIdle IndexState = iota
	IndexScanning
)

func (s IndexState) String() string {
	if s == IndexScanning {
		return "scanning"
	}
	return "idle"
}
