package model

import "time"

// SubmissionExport is the top-level JSON structure written by the export command.
type SubmissionExport struct {
	StudyID     string         `json:"study_id,omitempty"`
	ExportedAt  time.Time      `json:"exported_at"`
	Kind        SubmissionKind `json:"kind,omitempty"`
	Count       int            `json:"count"`
	Submissions []ExportedRow  `json:"submissions"`
}

// ExportedRow is one mirrored submission with its body decoded back to JSON.
type ExportedRow struct {
	ID            int64          `json:"id"`
	Kind          SubmissionKind `json:"kind"`
	ParticipantID string         `json:"participant_id"`
	CreatedAt     time.Time      `json:"created_at"`
	Row           map[string]any `json:"row"`
}
