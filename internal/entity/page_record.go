package entity

import "github.com/google/uuid"

// StoredRecord is a persisted page record. Seq is its position in the
// document; PageIndex is the 0-based source page it was read from.
type StoredRecord struct {
	RunID     uuid.UUID         `json:"run_id"`
	Seq       int               `json:"seq"`
	PageIndex int               `json:"page_index"`
	Fields    map[string]string `json:"fields"`
}
