package importer

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sells-group/migration-cli/internal/audit"
	"github.com/sells-group/migration-cli/internal/model"
	"github.com/sells-group/migration-cli/internal/normalize"
	"github.com/sells-group/migration-cli/internal/store"
)

// Stager validates candidate records and writes them into the staging
// area. One bad row never aborts the batch.
type Stager struct {
	store          store.Store
	audit          *audit.Sink
	defaultAgentID string
}

// NewStager creates a Stager. defaultAgentID is the configured fallback
// owning agent; empty means rows without an agent are rejected.
func NewStager(st store.Store, sink *audit.Sink, defaultAgentID string) *Stager {
	return &Stager{store: st, audit: sink, defaultAgentID: defaultAgentID}
}

// StageAll stages every candidate record, collecting per-row failures.
// The source string is recorded as provenance on each staged record. One
// audit entry summarizes attempted/succeeded/failed counts.
func (s *Stager) StageAll(ctx context.Context, records []ParsedRecord, source string) (*model.StageResult, error) {
	result := &model.StageResult{Attempted: len(records)}

	for _, rec := range records {
		name := collapseSpace(rec.Name)
		if name == "" {
			result.Errors = append(result.Errors, model.RowError{
				Name:   rec.Name,
				Reason: "name is empty",
			})
			continue
		}

		agentID := strings.TrimSpace(rec.AgentID)
		if agentID == "" {
			agentID = s.defaultAgentID
		}
		if agentID == "" {
			result.Errors = append(result.Errors, model.RowError{
				Name:   name,
				Reason: "no owning agent supplied and no default agent configured",
			})
			continue
		}

		staged := model.StagedRestaurant{
			Restaurant: model.Restaurant{
				ID:            uuid.New().String(),
				Name:          name,
				Township:      collapseSpace(rec.Township),
				Address:       collapseSpace(rec.Address),
				Phone:         normalize.Phone(rec.Phone),
				ContactPerson: collapseSpace(rec.ContactPerson),
				Remark:        collapseSpace(rec.Remark),
				AgentID:       agentID,
			},
			Source: source,
		}
		if err := s.store.InsertStaged(ctx, staged); err != nil {
			zap.L().Warn("stage: insert failed",
				zap.String("name", name),
				zap.Error(err),
			)
			result.Errors = append(result.Errors, model.RowError{
				Name:   name,
				Reason: err.Error(),
			})
			continue
		}
		result.Imported++
	}

	if err := s.audit.Record(ctx, "stage_import", "staging_restaurants", result.Imported, map[string]any{
		"attempted": result.Attempted,
		"succeeded": result.Imported,
		"failed":    len(result.Errors),
		"source":    source,
	}); err != nil {
		return nil, err
	}
	return result, nil
}

// collapseSpace trims and collapses internal whitespace while preserving
// the original letter case.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
