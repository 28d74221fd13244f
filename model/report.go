package model

import "time"

// Issue categories produced by the consistency validator.
const (
	CategoryMissingRequiredFields = "missing_required_fields"
	CategoryInvalidDataTypes      = "invalid_data_types"
	CategoryMissingLanguage       = "missing_language"
	CategoryInvalidDetection      = "invalid_detection_method"
	CategoryCharacterDetection    = "character_detection_inconsistency"
	CategoryMissingMasterRecords  = "missing_master_records"
	CategoryDuplicates            = "duplicates"
	CategoryMissingSpotifyData    = "missing_spotify_data"
)

// Issue is one validation finding. Count carries the true total even when the
// individually logged instances were capped.
type Issue struct {
	Category    string                 `json:"category"`
	Description string                 `json:"description"`
	Collection  string                 `json:"collection,omitempty"`
	Count       int64                  `json:"count"`
	Details     map[string]interface{} `json:"details,omitempty"`
	Timestamp   time.Time              `json:"timestamp"`
}

// ValidationReport accumulates all findings of one validator run.
// The validator never deletes data; FixesApplied counts only soundtrack repairs.
type ValidationReport struct {
	Issues       []Issue `json:"issues"`
	FixesApplied int64   `json:"fixesApplied"`
}

// Add appends a finding to the report.
func (r *ValidationReport) Add(category, description, collection string, count int64, details map[string]interface{}) {
	r.Issues = append(r.Issues, Issue{
		Category:    category,
		Description: description,
		Collection:  collection,
		Count:       count,
		Details:     details,
		Timestamp:   time.Now(),
	})
}

// CountByCategory groups issue counts for the run summary.
func (r *ValidationReport) CountByCategory() map[string]int {
	out := make(map[string]int)
	for _, issue := range r.Issues {
		out[issue.Category]++
	}
	return out
}

// DuplicateGroup is one case-insensitive key group holding more than one
// catalog entry, as returned by the store's aggregation.
type DuplicateGroup struct {
	Names []string `bson:"names"`
	Count int64    `bson:"count"`
}
