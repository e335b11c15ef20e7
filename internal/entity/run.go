package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/inspection-extractor/constants"
)

// Run represents one extraction run over a source file.
type Run struct {
	ID           uuid.UUID           `json:"id"`
	SourcePath   string              `json:"source_path"`
	Filename     string              `json:"filename"`
	ContentHash  string              `json:"content_hash"`
	SourceType   string              `json:"source_type,omitempty"`
	Method       string              `json:"method,omitempty"`
	Status       constants.RunStatus `json:"status"`
	Pages        int                 `json:"pages"`
	Records      int                 `json:"records"`
	Warnings     []string            `json:"warnings,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}

// NewRun carries what is known when a run starts.
type NewRun struct {
	SourcePath  string
	Filename    string
	ContentHash string
	Status      constants.RunStatus
}

// RunResult carries what is known when a run finishes successfully.
type RunResult struct {
	SourceType string
	Method     string
	Pages      int
	Records    int
	Warnings   []string
}
