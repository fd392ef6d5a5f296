package model

// Passage is a ranked text passage returned by an evidence store query
type Passage struct {
	Content  string  `json:"content"`         // Passage text
	SourceID string  `json:"source_id"`       // Source identifier (URL, document ID)
	Title    string  `json:"title,omitempty"` // Optional document title
	Kind     string  `json:"kind,omitempty"`  // Source type (official_docs, grey_literature, ...)
	Distance float64 `json:"distance"`        // Relevance distance (lower is closer)
}
