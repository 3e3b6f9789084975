package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
	"github.com/garyjia/lease-agent/internal/infrastructure/persistence/sqlite"
)

const propertyColumns = `id, address, unit_number, property_type, usage_type, available_area, sap_id, is_available`

const partnerColumns = `id, name, abn, acn, address, phone, email, sap_id, verified, created_at`

// DirectoryRepository implements port.DirectoryRepository on SQLite
type DirectoryRepository struct {
	db     *sql.DB
	logger *zap.Logger
	now    func() time.Time
}

// NewDirectoryRepository creates a new directory repository
func NewDirectoryRepository(db *sql.DB, logger *zap.Logger) *DirectoryRepository {
	return &DirectoryRepository{
		db:     db,
		logger: logger,
		now:    time.Now,
	}
}

// ListProperties returns properties ordered by id
func (r *DirectoryRepository) ListProperties(ctx context.Context, availableOnly bool) ([]entity.Property, error) {
	query := `SELECT ` + propertyColumns + ` FROM properties`
	if availableOnly {
		query += ` WHERE is_available = 1`
	}
	query += ` ORDER BY id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list properties", zap.Error(err))
		return nil, persistErr("list properties", err)
	}
	defer rows.Close()

	var out []entity.Property
	for rows.Next() {
		p, err := scanProperty(rows)
		if err != nil {
			return nil, persistErr("scan property", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list properties", err)
	}
	return out, nil
}

// GetProperty returns one property by id
func (r *DirectoryRepository) GetProperty(ctx context.Context, id string) (*entity.Property, error) {
	row := sqlite.ExecutorFrom(ctx, r.db).QueryRowContext(ctx,
		`SELECT `+propertyColumns+` FROM properties WHERE id = ?`, id)
	p, err := scanProperty(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("property %s: %w", id, port.ErrNotFound)
	}
	if err != nil {
		r.logger.Error("Failed to get property", zap.String("property_id", id), zap.Error(err))
		return nil, persistErr("get property", err)
	}
	return &p, nil
}

// ListBusinessPartners returns partners ordered by name
func (r *DirectoryRepository) ListBusinessPartners(ctx context.Context, search string) ([]entity.BusinessPartner, error) {
	query := `SELECT ` + partnerColumns + ` FROM business_partners`
	var args []interface{}
	if search = strings.TrimSpace(search); search != "" {
		pattern := "%" + likeEscaper.Replace(strings.ToLower(search)) + "%"
		query += ` WHERE LOWER(name) LIKE ? ESCAPE '\' OR abn LIKE ? ESCAPE '\' OR LOWER(id) LIKE ? ESCAPE '\'`
		args = append(args, pattern, pattern, pattern)
	}
	query += ` ORDER BY name, id`

	rows, err := sqlite.ExecutorFrom(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("Failed to list business partners", zap.Error(err))
		return nil, persistErr("list business partners", err)
	}
	defer rows.Close()

	var out []entity.BusinessPartner
	for rows.Next() {
		var b entity.BusinessPartner
		err := rows.Scan(&b.ID, &b.Name, &b.ABN, &b.ACN, &b.Address, &b.Phone, &b.Email, &b.SAPID, &b.Verified, &b.CreatedAt)
		if err != nil {
			return nil, persistErr("scan business partner", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, persistErr("list business partners", err)
	}
	return out, nil
}

// UpsertProperty inserts or replaces a property by id
func (r *DirectoryRepository) UpsertProperty(ctx context.Context, p *entity.Property) error {
	query := `
		INSERT INTO properties (` + propertyColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			address = excluded.address,
			unit_number = excluded.unit_number,
			property_type = excluded.property_type,
			usage_type = excluded.usage_type,
			available_area = excluded.available_area,
			sap_id = excluded.sap_id,
			is_available = excluded.is_available,
			updated_at = excluded.updated_at
	`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		p.ID, p.Address, p.UnitNumber, string(p.Type), p.UsageType,
		p.AvailableArea.String(), p.SAPID, p.Available, r.now().UTC())
	if err != nil {
		r.logger.Error("Failed to upsert property", zap.String("property_id", p.ID), zap.Error(err))
		return persistErr("upsert property", err)
	}
	return nil
}

// UpsertBusinessPartner inserts or replaces a partner by id. A zero
// CreatedAt is stamped with the current time.
func (r *DirectoryRepository) UpsertBusinessPartner(ctx context.Context, b *entity.BusinessPartner) error {
	now := r.now().UTC()
	if b.CreatedAt.IsZero() {
		b.CreatedAt = now
	}
	query := `
		INSERT INTO business_partners (` + partnerColumns + `, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			abn = excluded.abn,
			acn = excluded.acn,
			address = excluded.address,
			phone = excluded.phone,
			email = excluded.email,
			sap_id = excluded.sap_id,
			verified = excluded.verified,
			updated_at = excluded.updated_at
	`
	_, err := sqlite.ExecutorFrom(ctx, r.db).ExecContext(ctx, query,
		b.ID, b.Name, b.ABN, b.ACN, b.Address, b.Phone, b.Email, b.SAPID, b.Verified,
		b.CreatedAt.UTC(), now)
	if err != nil {
		r.logger.Error("Failed to upsert business partner", zap.String("partner_id", b.ID), zap.Error(err))
		return persistErr("upsert business partner", err)
	}
	return nil
}

func scanProperty(row rowScanner) (entity.Property, error) {
	var (
		p    entity.Property
		kind string
		area string
	)
	if err := row.Scan(&p.ID, &p.Address, &p.UnitNumber, &kind, &p.UsageType, &area, &p.SAPID, &p.Available); err != nil {
		return entity.Property{}, err
	}
	p.Type = entity.PropertyType(kind)
	a, err := decimal.NewFromString(area)
	if err != nil {
		return entity.Property{}, fmt.Errorf("property %s available_area %q: %w", p.ID, area, err)
	}
	p.AvailableArea = a
	return p, nil
}

// Verify interface compliance
var _ port.DirectoryRepository = (*DirectoryRepository)(nil)
