package model

// DuplicateKind classifies a detected duplicate group.
type DuplicateKind string

const (
	// DuplicateExact means identical normalized name, township, and phone.
	DuplicateExact DuplicateKind = "exact"
	// DuplicateSimilar means identical normalized name and township but
	// genuinely different phone numbers — a multi-branch chain that must
	// not be auto-merged.
	DuplicateSimilar DuplicateKind = "similar"
)

// DuplicateGroup is a set of restaurants sharing a detected relationship.
// A group always has at least two members. For exact groups the members
// are ordered most-complete first (oldest on tie); Members[0] is the
// canonical record to keep.
type DuplicateGroup struct {
	Kind          DuplicateKind `json:"kind"`
	Members       []Restaurant  `json:"members"`
	Reason        string        `json:"reason"`
	AutoRemovable bool          `json:"auto_removable"`
}

// DedupeStats aggregates a detection pass.
type DedupeStats struct {
	ExactGroups    int `json:"exact_groups"`
	ExactRemovable int `json:"exact_removable"` // members minus one per exact group
	SimilarGroups  int `json:"similar_groups"`
	SimilarRecords int `json:"similar_records"`
	TotalRemovable int `json:"total_removable"`
	RecordsScanned int `json:"records_scanned"`
}

// DedupeReport is the full output of a detection pass.
type DedupeReport struct {
	Groups []DuplicateGroup `json:"groups"`
	Stats  DedupeStats      `json:"stats"`
}

// AutoRemoveResult reports an exact-duplicate auto-removal run.
type AutoRemoveResult struct {
	Removed int    `json:"removed"`
	Message string `json:"message"`
}
