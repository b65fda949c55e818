package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// ObjectUploader is the object storage sink for exports.
type ObjectUploader interface {
	Upload(ctx context.Context, key string, r io.Reader, quiet bool) (string, error)
}

// LedgerService exports the assignment history.
type LedgerService struct {
	assignments AssignmentRepository
}

// NewLedgerService creates a new LedgerService instance
func NewLedgerService(assignments AssignmentRepository) *LedgerService {
	return &LedgerService{assignments: assignments}
}

// Export writes every assignment, active and historical, as JSON lines to dest/key.
// It returns the written location and the number of rows.
func (s *LedgerService) Export(ctx context.Context, dest ObjectUploader, key string, quiet bool) (string, int, error) {
	assignments, err := s.assignments.ListAll(ctx)
	if err != nil {
		return "", 0, err
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	for _, a := range assignments {
		if err := enc.Encode(a); err != nil {
			return "", 0, fmt.Errorf("failed to encode assignment %s: %w", a.ID, err)
		}
	}

	location, err := dest.Upload(ctx, key, bytes.NewReader(buf.Bytes()), quiet)
	if err != nil {
		return "", 0, err
	}

	log.WithFields(log.Fields{"location": location, "rows": len(assignments)}).Info("Assignment ledger exported")
	return location, len(assignments), nil
}
