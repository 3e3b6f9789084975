package repository

import (
	"context"
	"database/sql"

	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/infrastructure/persistence/sqlite"
)

// AuditRepository implements port.AuditRepository. Entries are insert-only.
type AuditRepository struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *sql.DB, logger *zap.Logger) *AuditRepository {
	return &AuditRepository{
		db:     db,
		logger: logger,
	}
}

// Append stores one audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *entity.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (
			id, request_id, timestamp, action, performed_by, details,
			step_number, confidence_score, sla_breached
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	var step, sla interface{}
	if entry.StepNumber != nil {
		step = *entry.StepNumber
	}
	if entry.SLABreached != nil {
		sla = *entry.SLABreached
	}

	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		entry.ID,
		entry.RequestID,
		entry.Timestamp.UTC(),
		entry.Action,
		entry.PerformedBy,
		entry.Details,
		step,
		nullFloat(entry.ConfidenceScore),
		sla,
	)
	if err != nil {
		r.logger.Error("Failed to append audit entry",
			zap.String("request_id", entry.RequestID),
			zap.String("action", entry.Action),
			zap.Error(err))
		return persistErr("append audit entry", err)
	}
	return nil
}

// ListByRequest returns the entries of a request in chronological order
func (r *AuditRepository) ListByRequest(ctx context.Context, requestID string) ([]entity.AuditEntry, error) {
	return r.listByRequest(ctx, sqlite.ExecutorFrom(ctx, r.db), requestID)
}

func (r *AuditRepository) listByRequest(ctx context.Context, ex sqlite.Executor, requestID string) ([]entity.AuditEntry, error) {
	query := `
		SELECT id, request_id, timestamp, action, performed_by, details,
			step_number, confidence_score, sla_breached
		FROM audit_entries
		WHERE request_id = ?
		ORDER BY timestamp, seq
	`
	rows, err := ex.QueryContext(ctx, query, requestID)
	if err != nil {
		r.logger.Error("Failed to list audit entries", zap.String("request_id", requestID), zap.Error(err))
		return nil, persistErr("list audit entries", err)
	}
	defer rows.Close()

	var entries []entity.AuditEntry
	for rows.Next() {
		var (
			e     entity.AuditEntry
			step  sql.NullInt64
			score sql.NullFloat64
			sla   sql.NullBool
		)
		err := rows.Scan(&e.ID, &e.RequestID, &e.Timestamp, &e.Action, &e.PerformedBy, &e.Details,
			&step, &score, &sla)
		if err != nil {
			return nil, persistErr("scan audit entry", err)
		}
		if step.Valid {
			v := int(step.Int64)
			e.StepNumber = &v
		}
		if score.Valid {
			v := score.Float64
			e.ConfidenceScore = &v
		}
		if sla.Valid {
			v := sla.Bool
			e.SLABreached = &v
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Verify interface compliance
var _ port.AuditRepository = (*AuditRepository)(nil)
