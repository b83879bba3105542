package model

// Confidence is the tier assigned to a record mapping.
type Confidence string

const (
	ConfidenceExact   Confidence = "exact"
	ConfidencePartial Confidence = "partial"
	ConfidenceNone    Confidence = "none"
)

// RecordMapping associates a staged record with the best-scoring existing
// identity. Only mappings with a non-none confidence are persisted.
type RecordMapping struct {
	StagedID    string     `json:"staged_id"`
	StagedName  string     `json:"staged_name"`
	MatchedID   string     `json:"matched_id,omitempty"`
	MatchedName string     `json:"matched_name,omitempty"`
	Confidence  Confidence `json:"confidence"`
	Score       float64    `json:"score"`
}

// MappingStats aggregates a full matcher pass.
type MappingStats struct {
	Total           int            `json:"total"`
	ExactMatches    int            `json:"exact_matches"`
	PartialMatches  int            `json:"partial_matches"`
	NoMatches       int            `json:"no_matches"`
	DependentCounts map[string]int `json:"dependent_counts,omitempty"` // collection -> reference count
}
