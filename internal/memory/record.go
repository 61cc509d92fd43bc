package memory

import "time"

// Record is a stored memory
type Record struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"userId"`
	Source    string    `json:"source"`
	SourceID  string    `json:"sourceId"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Metadata  Metadata  `json:"metadata"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Metadata describes where a memory came from and how it is classified.
// Tags is a single string, not a list.
type Metadata struct {
	Title    string   `json:"title,omitempty"`
	Origin   string   `json:"origin,omitempty"`
	Tags     string   `json:"tags"`
	Category []string `json:"category"`
	Others   string   `json:"others,omitempty"`
}

// apply copies every field set in the patch onto m.
func (m *Metadata) apply(patch *UpdateMetadata) {
	if patch == nil {
		return
	}
	if patch.Title != nil {
		m.Title = *patch.Title
	}
	if patch.Origin != nil {
		m.Origin = *patch.Origin
	}
	if patch.Tags != nil {
		m.Tags = *patch.Tags
	}
	if patch.Category != nil {
		m.Category = derefAll(patch.Category)
	}
	if patch.Others != nil {
		m.Others = *patch.Others
	}
}

// derefAll copies a validated list whose elements are all non-nil.
func derefAll(ss []*string) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, *s)
	}
	return out
}
