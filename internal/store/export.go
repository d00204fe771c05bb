package store

import (
	"encoding/json"
	"fmt"

	"github.com/pavelanni/trustgate/internal/model"
)

// ExportSubmissions decodes mirrored rows of the given kind for export.
// An empty kind exports every row.
func (s *Store) ExportSubmissions(kind model.SubmissionKind) ([]model.ExportedRow, error) {
	subs, err := s.ListSubmissions(kind)
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}

	rows := make([]model.ExportedRow, 0, len(subs))
	for _, sub := range subs {
		var body map[string]any
		if err := json.Unmarshal([]byte(sub.Body), &body); err != nil {
			return nil, fmt.Errorf("decode submission %d: %w", sub.ID, err)
		}
		rows = append(rows, model.ExportedRow{
			ID:            sub.ID,
			Kind:          sub.Kind,
			ParticipantID: sub.ParticipantID,
			CreatedAt:     sub.CreatedAt,
			Row:           body,
		})
	}
	return rows, nil
}
