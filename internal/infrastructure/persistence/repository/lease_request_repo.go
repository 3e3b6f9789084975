package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/domain/workflow"
	"github.com/garyjia/lease-agent/internal/infrastructure/persistence/sqlite"
)

const requestColumns = `
	id, property_id, property_address, requestor_email,
	tenant_name, tenant_abn, tenant_acn,
	rent_amount, security_deposit, lease_term_months, commencement_date,
	status, version, created_at, updated_at`

// LeaseRequestRepository implements port.LeaseRequestRepository on SQLite
type LeaseRequestRepository struct {
	db     *sql.DB
	audit  *AuditRepository
	logger *zap.Logger
}

// NewLeaseRequestRepository creates a new lease request repository
func NewLeaseRequestRepository(db *sql.DB, logger *zap.Logger) *LeaseRequestRepository {
	return &LeaseRequestRepository{
		db:     db,
		audit:  NewAuditRepository(db, logger),
		logger: logger,
	}
}

// Create inserts the request with its documents and any materialized steps
func (r *LeaseRequestRepository) Create(ctx context.Context, req *entity.LeaseRequest) error {
	ex := sqlite.ExecutorFrom(ctx, r.db)
	snap := req.Snapshot()

	query := `
		INSERT INTO lease_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
	`
	_, err := ex.ExecContext(ctx, query,
		snap.ID,
		snap.PropertyID,
		snap.PropertyAddress,
		snap.RequestorEmail,
		snap.Tenant.Name,
		snap.Tenant.ABN,
		snap.Tenant.ACN,
		snap.Terms.RentAmount.String(),
		snap.Terms.SecurityDeposit.String(),
		snap.Terms.LeaseTermMonths,
		snap.Terms.CommencementDate.UTC(),
		string(snap.Status),
		snap.CreatedAt.UTC(),
		snap.UpdatedAt.UTC(),
	)
	if err != nil {
		r.logger.Error("Failed to create lease request", zap.String("request_id", snap.ID), zap.Error(err))
		return persistErr("create lease request", err)
	}

	for i, d := range snap.Documents {
		if err := r.insertDocument(ctx, ex, snap.ID, i, d); err != nil {
			return err
		}
	}
	if err := r.upsertSteps(ctx, ex, snap.ID, snap.Steps); err != nil {
		return err
	}

	req.SetVersion(1)
	return nil
}

// GetByID loads the full aggregate
func (r *LeaseRequestRepository) GetByID(ctx context.Context, id string) (*entity.LeaseRequest, error) {
	ex := sqlite.ExecutorFrom(ctx, r.db)

	query := `SELECT ` + requestColumns + ` FROM lease_requests WHERE id = ?`
	snap, err := scanRequest(ex.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("lease request %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get lease request", zap.String("request_id", id), zap.Error(err))
		return nil, persistErr("get lease request", err)
	}

	return r.load(ctx, ex, snap)
}

// Update writes the mutable state if the stored version matches
func (r *LeaseRequestRepository) Update(ctx context.Context, req *entity.LeaseRequest) error {
	ex := sqlite.ExecutorFrom(ctx, r.db)
	snap := req.Snapshot()

	query := `
		UPDATE lease_requests
		SET status = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND version = ?
	`
	result, err := ex.ExecContext(ctx, query, string(snap.Status), snap.UpdatedAt.UTC(), snap.ID, snap.Version)
	if err != nil {
		r.logger.Error("Failed to update lease request", zap.String("request_id", snap.ID), zap.Error(err))
		return persistErr("update lease request", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return persistErr("update lease request", err)
	}
	if affected == 0 {
		var exists int
		err := ex.QueryRowContext(ctx, `SELECT COUNT(*) FROM lease_requests WHERE id = ?`, snap.ID).Scan(&exists)
		if err != nil {
			return persistErr("update lease request", err)
		}
		if exists == 0 {
			return fmt.Errorf("lease request %s: %w", snap.ID, port.ErrNotFound)
		}
		r.logger.Warn("Lease request version conflict",
			zap.String("request_id", snap.ID),
			zap.Int64("version", snap.Version))
		return fmt.Errorf("lease request %s: %w", snap.ID, workflow.ErrConcurrentModification)
	}

	for _, d := range snap.Documents {
		if err := r.updateDocument(ctx, ex, d); err != nil {
			return err
		}
	}
	if err := r.upsertSteps(ctx, ex, snap.ID, snap.Steps); err != nil {
		return err
	}

	req.SetVersion(snap.Version + 1)
	return nil
}

// likeEscaper makes search input match literally inside a LIKE pattern
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// List returns matching requests newest first
func (r *LeaseRequestRepository) List(ctx context.Context, filter port.ListFilter) ([]*entity.LeaseRequest, error) {
	ex := sqlite.ExecutorFrom(ctx, r.db)

	var (
		conditions []string
		args       []interface{}
	)
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		conditions = append(conditions, `(LOWER(tenant_name) LIKE ? ESCAPE '\' OR LOWER(property_address) LIKE ? ESCAPE '\' OR LOWER(id) LIKE ? ESCAPE '\')`)
		args = append(args, pattern, pattern, pattern)
	}

	query := `SELECT ` + requestColumns + ` FROM lease_requests`
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := ex.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list lease requests", zap.Error(err))
		return nil, persistErr("list lease requests", err)
	}

	var snaps []entity.Snapshot
	for rows.Next() {
		snap, err := scanRequest(rows)
		if err != nil {
			rows.Close()
			return nil, persistErr("scan lease request", err)
		}
		snaps = append(snaps, snap)
	}
	// children are read on the same executor, so release the cursor first
	if err := rows.Close(); err != nil {
		return nil, persistErr("list lease requests", err)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list lease requests", err)
	}

	out := make([]*entity.LeaseRequest, 0, len(snaps))
	for _, snap := range snaps {
		req, err := r.load(ctx, ex, snap)
		if err != nil {
			return nil, err
		}
		out = append(out, req)
	}
	return out, nil
}

// CountByStatus returns the dashboard counters
func (r *LeaseRequestRepository) CountByStatus(ctx context.Context) (port.StatusCounts, error) {
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx,
		`SELECT status, COUNT(*) FROM lease_requests GROUP BY status`)
	if err != nil {
		r.logger.Error("Failed to count lease requests", zap.Error(err))
		return port.StatusCounts{}, persistErr("count lease requests", err)
	}
	defer rows.Close()

	var counts port.StatusCounts
	for rows.Next() {
		var (
			status string
			n      int
		)
		if err := rows.Scan(&status, &n); err != nil {
			return port.StatusCounts{}, persistErr("scan status count", err)
		}
		parsed, err := workflow.ParseStatus(status)
		if err != nil {
			r.logger.Error("Stored request status outside vocabulary", zap.String("status", status))
			return port.StatusCounts{}, persistErr("count lease requests", err)
		}
		counts.Total += n
		switch parsed {
		case workflow.StatusCompleted:
			counts.Completed += n
		case workflow.StatusFailed:
			counts.Failed += n
		case workflow.StatusPendingReview:
			counts.PendingReview += n
		default:
			counts.Processing += n
		}
	}
	if err := rows.Err(); err != nil {
		return port.StatusCounts{}, persistErr("count lease requests", err)
	}
	return counts, nil
}

// ListAwaitingExtraction returns unscored documents of requests whose
// document extraction step is processing, oldest upload first
func (r *LeaseRequestRepository) ListAwaitingExtraction(ctx context.Context, limit int) ([]port.PendingExtraction, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT d.request_id, d.id
		FROM lease_documents d
		INNER JOIN workflow_steps s
			ON s.request_id = d.request_id AND s.step_number = ?
		WHERE s.status = ? AND d.confidence_score IS NULL
		ORDER BY d.uploaded_at, d.request_id, d.position
		LIMIT ?
	`
	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query,
		workflow.StepDocumentExtraction, string(workflow.StepProcessing), limit)
	if err != nil {
		r.logger.Error("Failed to list documents awaiting extraction", zap.Error(err))
		return nil, persistErr("list awaiting extraction", err)
	}
	defer rows.Close()

	var pending []port.PendingExtraction
	for rows.Next() {
		p := port.PendingExtraction{StepNumber: workflow.StepDocumentExtraction}
		if err := rows.Scan(&p.RequestID, &p.DocumentID); err != nil {
			return nil, persistErr("scan awaiting extraction", err)
		}
		pending = append(pending, p)
	}
	return pending, rows.Err()
}

// load reads documents, steps and audit trail and restores the aggregate
func (r *LeaseRequestRepository) load(ctx context.Context, ex sqlite.Executor, snap entity.Snapshot) (*entity.LeaseRequest, error) {
	var err error
	if snap.Documents, err = r.loadDocuments(ctx, ex, snap.ID); err != nil {
		return nil, err
	}
	if snap.Steps, err = r.loadSteps(ctx, ex, snap.ID); err != nil {
		return nil, err
	}
	if snap.AuditTrail, err = r.audit.listByRequest(ctx, ex, snap.ID); err != nil {
		return nil, err
	}

	req, err := entity.RestoreLeaseRequest(snap)
	if err != nil {
		r.logger.Error("Stored lease request is invalid", zap.String("request_id", snap.ID), zap.Error(err))
		return nil, err
	}
	return req, nil
}

func (r *LeaseRequestRepository) insertDocument(ctx context.Context, ex sqlite.Executor, requestID string, position int, d *entity.LeaseDocument) error {
	data, err := marshalExtracted(d.ExtractedData)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO lease_documents (
			id, request_id, position, name, doc_type, payload_ref, mime_type, size,
			uploaded_at, extracted_data, confidence_score
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = ex.ExecContext(ctx, query,
		d.ID,
		requestID,
		position,
		d.Name,
		string(d.Type),
		d.PayloadRef,
		d.MimeType,
		d.Size,
		d.UploadedAt.UTC(),
		data,
		nullFloat(d.ConfidenceScore),
	)
	if err != nil {
		r.logger.Error("Failed to create lease document",
			zap.String("request_id", requestID),
			zap.String("document_id", d.ID),
			zap.Error(err))
		return persistErr("create lease document", err)
	}
	return nil
}

func (r *LeaseRequestRepository) updateDocument(ctx context.Context, ex sqlite.Executor, d *entity.LeaseDocument) error {
	data, err := marshalExtracted(d.ExtractedData)
	if err != nil {
		return err
	}

	_, err = ex.ExecContext(ctx,
		`UPDATE lease_documents SET extracted_data = ?, confidence_score = ? WHERE id = ?`,
		data, nullFloat(d.ConfidenceScore), d.ID)
	if err != nil {
		r.logger.Error("Failed to update lease document", zap.String("document_id", d.ID), zap.Error(err))
		return persistErr("update lease document", err)
	}
	return nil
}

func (r *LeaseRequestRepository) upsertSteps(ctx context.Context, ex sqlite.Executor, requestID string, steps []entity.WorkflowStepInstance) error {
	query := `
		INSERT INTO workflow_steps (
			request_id, step_number, name, status, started_at, completed_at,
			assigned_to, notes, confidence_score, requires_review
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (request_id, step_number) DO UPDATE SET
			status = excluded.status,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			assigned_to = excluded.assigned_to,
			notes = excluded.notes,
			confidence_score = excluded.confidence_score,
			requires_review = excluded.requires_review
	`
	for _, s := range steps {
		_, err := ex.ExecContext(ctx, query,
			requestID,
			s.StepNumber,
			s.Name,
			string(s.Status),
			nullTime(s.StartedAt),
			nullTime(s.CompletedAt),
			s.AssignedTo,
			s.Notes,
			nullFloat(s.ConfidenceScore),
			s.RequiresReview,
		)
		if err != nil {
			r.logger.Error("Failed to store workflow step",
				zap.String("request_id", requestID),
				zap.Int("step", s.StepNumber),
				zap.Error(err))
			return persistErr("store workflow step", err)
		}
	}
	return nil
}

func (r *LeaseRequestRepository) loadDocuments(ctx context.Context, ex sqlite.Executor, requestID string) ([]*entity.LeaseDocument, error) {
	query := `
		SELECT id, name, doc_type, payload_ref, mime_type, size, uploaded_at,
			extracted_data, confidence_score
		FROM lease_documents
		WHERE request_id = ?
		ORDER BY position
	`
	rows, err := ex.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, persistErr("get lease documents", err)
	}
	defer rows.Close()

	var docs []*entity.LeaseDocument
	for rows.Next() {
		var (
			d       entity.LeaseDocument
			docType string
			data    sql.NullString
			score   sql.NullFloat64
		)
		err := rows.Scan(&d.ID, &d.Name, &docType, &d.PayloadRef, &d.MimeType, &d.Size, &d.UploadedAt, &data, &score)
		if err != nil {
			return nil, persistErr("scan lease document", err)
		}
		d.Type = entity.DocumentType(docType)
		if data.Valid && data.String != "" {
			var extracted entity.ExtractedData
			if err := json.Unmarshal([]byte(data.String), &extracted); err != nil {
				return nil, persistErr("decode extracted data", err)
			}
			d.ExtractedData = &extracted
		}
		if score.Valid {
			v := score.Float64
			d.ConfidenceScore = &v
		}
		docs = append(docs, &d)
	}
	return docs, rows.Err()
}

func (r *LeaseRequestRepository) loadSteps(ctx context.Context, ex sqlite.Executor, requestID string) ([]entity.WorkflowStepInstance, error) {
	query := `
		SELECT step_number, name, status, started_at, completed_at,
			assigned_to, notes, confidence_score, requires_review
		FROM workflow_steps
		WHERE request_id = ?
		ORDER BY step_number
	`
	rows, err := ex.QueryContext(ctx, query, requestID)
	if err != nil {
		return nil, persistErr("get workflow steps", err)
	}
	defer rows.Close()

	var steps []entity.WorkflowStepInstance
	for rows.Next() {
		var (
			s           entity.WorkflowStepInstance
			status      string
			startedAt   sql.NullTime
			completedAt sql.NullTime
			score       sql.NullFloat64
		)
		err := rows.Scan(&s.StepNumber, &s.Name, &status, &startedAt, &completedAt,
			&s.AssignedTo, &s.Notes, &score, &s.RequiresReview)
		if err != nil {
			return nil, persistErr("scan workflow step", err)
		}
		s.Status = workflow.StepStatus(status)
		s.StartedAt = timePtr(startedAt)
		s.CompletedAt = timePtr(completedAt)
		if score.Valid {
			v := score.Float64
			s.ConfidenceScore = &v
		}
		steps = append(steps, s)
	}
	return steps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(row rowScanner) (entity.Snapshot, error) {
	var (
		s      entity.Snapshot
		status string
	)
	err := row.Scan(
		&s.ID,
		&s.PropertyID,
		&s.PropertyAddress,
		&s.RequestorEmail,
		&s.Tenant.Name,
		&s.Tenant.ABN,
		&s.Tenant.ACN,
		&s.Terms.RentAmount,
		&s.Terms.SecurityDeposit,
		&s.Terms.LeaseTermMonths,
		&s.Terms.CommencementDate,
		&status,
		&s.Version,
		&s.CreatedAt,
		&s.UpdatedAt,
	)
	s.Status = workflow.Status(status)
	return s, err
}

func marshalExtracted(data *entity.ExtractedData) (interface{}, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to encode extracted data: %w", err)
	}
	return string(b), nil
}

func nullFloat(v *float64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func persistErr(op string, err error) error {
	return fmt.Errorf("failed to %s: %w: %w", op, port.ErrPersistence, err)
}

// Verify interface compliance
var _ port.LeaseRequestRepository = (*LeaseRequestRepository)(nil)
