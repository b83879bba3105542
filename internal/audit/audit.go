// Package audit writes immutable MigrationLogEntry records after each
// bulk action and mirrors them to the structured log.
package audit

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/migration-cli/internal/model"
	"github.com/sells-group/migration-cli/internal/store"
)

// Sink appends audit entries to the record store.
type Sink struct {
	store store.Store
}

// NewSink creates an audit sink over the given store.
func NewSink(st store.Store) *Sink {
	return &Sink{store: st}
}

// Record appends one audit entry. The entry is also logged; a store
// failure is returned so callers can decide whether it is fatal for the
// phase, but already-written entries from prior phases always stand.
func (s *Sink) Record(ctx context.Context, action, collection string, count int, details map[string]any) error {
	entry := model.MigrationLogEntry{
		Action:     action,
		Collection: collection,
		Count:      count,
		Details:    details,
		Timestamp:  time.Now().UTC(),
	}

	zap.L().Info("audit: "+action,
		zap.String("collection", collection),
		zap.Int("count", count),
		zap.Any("details", details),
	)

	if err := s.store.AppendAudit(ctx, entry); err != nil {
		return eris.Wrapf(err, "audit: record %s", action)
	}
	return nil
}
