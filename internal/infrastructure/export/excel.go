package export

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/garyjia/lease-agent/internal/application/port"
	"github.com/garyjia/lease-agent/internal/domain/entity"
)

const (
	auditSheet    = "Audit Trail"
	stepsSheet    = "Workflow"
	registerSheet = "Register"
	timeLayout    = "2006-01-02 15:04:05"
	dateLayout    = "2006-01-02"
)

// ExcelExporter implements port.Exporter with xlsx workbooks
type ExcelExporter struct {
	logger *zap.Logger
}

// NewExcelExporter creates a new Excel exporter
func NewExcelExporter(logger *zap.Logger) *ExcelExporter {
	return &ExcelExporter{logger: logger}
}

// ExportAuditTrail writes the workflow steps and audit trail of one request
func (e *ExcelExporter) ExportAuditTrail(r *entity.LeaseRequest) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", auditSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	rows := [][]interface{}{{"Timestamp", "Action", "Performed By", "Step", "Confidence", "SLA Breached", "Details"}}
	for _, a := range r.AuditTrail() {
		rows = append(rows, []interface{}{
			a.Timestamp.UTC().Format(timeLayout),
			a.Action,
			a.PerformedBy,
			optionalInt(a.StepNumber),
			optionalPercent(a.ConfidenceScore),
			optionalBool(a.SLABreached),
			a.Details,
		})
	}
	if err := e.writeRows(f, auditSheet, rows); err != nil {
		return nil, err
	}

	if _, err := f.NewSheet(stepsSheet); err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	steps := [][]interface{}{{"Step", "Name", "Status", "Started", "Completed", "Confidence", "Requires Review", "Notes"}}
	for _, s := range r.Steps() {
		steps = append(steps, []interface{}{
			s.StepNumber,
			s.Name,
			string(s.Status),
			optionalTime(s.StartedAt),
			optionalTime(s.CompletedAt),
			optionalPercent(s.ConfidenceScore),
			yesNo(s.RequiresReview),
			s.Notes,
		})
	}
	if err := e.writeRows(f, stepsSheet, steps); err != nil {
		return nil, err
	}

	e.logger.Info("Audit trail exported",
		zap.String("request_id", r.ID),
		zap.Int("entries", len(rows)-1))
	return e.bytes(f)
}

// ExportRegister writes one row per lease request
func (e *ExcelExporter) ExportRegister(requests []*entity.LeaseRequest) ([]byte, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", registerSheet); err != nil {
		return nil, fmt.Errorf("failed to name sheet: %w", err)
	}

	rows := [][]interface{}{{
		"Request ID", "Tenant", "ABN", "Property", "Status", "Current Step",
		"Progress %", "Rent", "Deposit", "Term (months)", "Commencement", "Created",
	}}
	for _, r := range requests {
		rows = append(rows, []interface{}{
			r.ID,
			r.Tenant.Name,
			r.Tenant.ABN,
			r.PropertyAddress,
			string(r.Status()),
			r.CurrentStep(),
			r.ProgressPercent(),
			r.Terms.RentAmount.StringFixed(2),
			r.Terms.SecurityDeposit.StringFixed(2),
			r.Terms.LeaseTermMonths,
			r.Terms.CommencementDate.Format(dateLayout),
			r.CreatedAt.UTC().Format(timeLayout),
		})
	}
	if err := e.writeRows(f, registerSheet, rows); err != nil {
		return nil, err
	}

	e.logger.Info("Register exported", zap.Int("requests", len(requests)))
	return e.bytes(f)
}

func (e *ExcelExporter) writeRows(f *excelize.File, sheet string, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("failed to resolve cell: %w", err)
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			e.logger.Warn("Failed to write row",
				zap.String("sheet", sheet),
				zap.Int("row", i+1),
				zap.Error(err))
			return fmt.Errorf("failed to write row %d: %w", i+1, err)
		}
	}
	if len(rows) > 0 {
		last, _ := excelize.CoordinatesToCellName(len(rows[0]), 1)
		style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err == nil {
			_ = f.SetCellStyle(sheet, "A1", last, style)
		}
	}
	return nil
}

func (e *ExcelExporter) bytes(f *excelize.File) ([]byte, error) {
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func optionalInt(v *int) interface{} {
	if v == nil {
		return ""
	}
	return *v
}

func optionalPercent(v *float64) interface{} {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.0f%%", *v*100)
}

func optionalBool(v *bool) string {
	if v == nil {
		return ""
	}
	return yesNo(*v)
}

func optionalTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// Verify interface compliance
var _ port.Exporter = (*ExcelExporter)(nil)
