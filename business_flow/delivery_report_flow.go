package businessflow

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/amirphl/iptv-reseller-automation/app/dto"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"github.com/xuri/excelize/v2"
)

const (
	deliverySheetName = "deliveries"
	maxExportRows     = 100000
	maxExportRange    = 366 * 24 * time.Hour
)

// DeliveryReportFlow exposes queue and delivery audit data to operators
type DeliveryReportFlow interface {
	QueueStats(ctx context.Context, tenantID uint) (*dto.QueueStatsResponse, error)
	ExportDeliveryLogs(ctx context.Context, tenantID uint, from, to time.Time) (string, []byte, error)
}

// DeliveryReportFlowImpl implements DeliveryReportFlow
type DeliveryReportFlowImpl struct {
	tenantRepo      repository.TenantRepository
	queueRepo       repository.QueueEntryRepository
	deliveryLogRepo repository.DeliveryLogRepository
	maxRows         int
}

func NewDeliveryReportFlow(tenantRepo repository.TenantRepository, queueRepo repository.QueueEntryRepository, deliveryLogRepo repository.DeliveryLogRepository) DeliveryReportFlow {
	return &DeliveryReportFlowImpl{tenantRepo: tenantRepo, queueRepo: queueRepo, deliveryLogRepo: deliveryLogRepo, maxRows: maxExportRows}
}

func (f *DeliveryReportFlowImpl) getTenant(ctx context.Context, tenantID uint) (*models.Tenant, error) {
	tenant, err := f.tenantRepo.ByID(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "failed to load tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError("TENANT_NOT_FOUND", "tenant not found", ErrTenantNotFound)
	}
	return tenant, nil
}

func (f *DeliveryReportFlowImpl) QueueStats(ctx context.Context, tenantID uint) (*dto.QueueStatsResponse, error) {
	if _, err := f.getTenant(ctx, tenantID); err != nil {
		return nil, err
	}

	rows, err := f.queueRepo.CountByStatus(ctx, tenantID)
	if err != nil {
		return nil, NewBusinessError("QUEUE_STATS_FAILED", "failed to count queue entries", err)
	}

	resp := &dto.QueueStatsResponse{
		TenantID: tenantID,
		Counts: map[string]int64{
			models.QueueStatusPending:    0,
			models.QueueStatusProcessing: 0,
			models.QueueStatusSent:       0,
			models.QueueStatusFailed:     0,
		},
	}
	for _, r := range rows {
		resp.Counts[r.Status] = r.Count
		resp.Total += r.Count
	}
	return resp, nil
}

// ExportDeliveryLogs builds an xlsx workbook of delivery logs created in [from, to).
// A range holding more than maxRows logs is rejected rather than cut short.
func (f *DeliveryReportFlowImpl) ExportDeliveryLogs(ctx context.Context, tenantID uint, from, to time.Time) (string, []byte, error) {
	if from.IsZero() || to.IsZero() {
		return "", nil, NewBusinessError("INVALID_DATE_RANGE", "from and to are required", ErrInvalidDateRange)
	}
	if from.After(to) {
		return "", nil, NewBusinessError("INVALID_DATE_RANGE", "from must not be after to", ErrStartDateAfterEndDate)
	}
	if to.Sub(from) > maxExportRange {
		return "", nil, NewBusinessError("INVALID_DATE_RANGE", "date range is too large", ErrDateRangeTooLarge)
	}
	if _, err := f.getTenant(ctx, tenantID); err != nil {
		return "", nil, err
	}

	rows, err := f.deliveryLogRepo.ByFilter(ctx, models.DeliveryLogFilter{
		TenantID:      &tenantID,
		CreatedAfter:  &from,
		CreatedBefore: &to,
	}, f.maxRows+1)
	if err != nil {
		return "", nil, NewBusinessError("FETCH_DELIVERY_LOGS_FAILED", "failed to fetch delivery logs", err)
	}
	if len(rows) > f.maxRows {
		return "", nil, NewBusinessError("EXPORT_TOO_LARGE", fmt.Sprintf("more than %d delivery logs in range", f.maxRows), ErrExportTooLarge)
	}

	xl := excelize.NewFile()
	defer func() { _ = xl.Close() }()
	xl.SetSheetName(xl.GetSheetName(0), deliverySheetName)

	header := []string{"id", "created_at", "kind", "status", "client_id", "reminder_id", "entry_id", "destination", "attempts", "error", "meta"}
	_ = xl.SetSheetRow(deliverySheetName, "A1", &header)

	for i, r := range rows {
		record := []string{
			strconv.FormatUint(uint64(r.ID), 10),
			r.CreatedAt.UTC().Format(time.RFC3339),
			r.Kind,
			r.Status,
			strconv.FormatUint(uint64(r.ClientID), 10),
			optionalUint(r.ReminderID),
			optionalUint(r.EntryID),
			r.Destination,
			strconv.Itoa(r.Attempts),
			optionalString(r.Error),
			formatMeta(r.Meta),
		}
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		_ = xl.SetSheetRow(deliverySheetName, cell, &record)
	}

	buf, err := xl.WriteToBuffer()
	if err != nil {
		return "", nil, NewBusinessError("EXCEL_WRITE_ERROR", "failed to write excel file", err)
	}
	filename := fmt.Sprintf("delivery_logs_%d_%s_%s.xlsx", tenantID, from.Format(time.DateOnly), to.Format(time.DateOnly))
	return filename, buf.Bytes(), nil
}

func optionalUint(v *uint) string {
	if v == nil {
		return ""
	}
	return strconv.FormatUint(uint64(*v), 10)
}

func optionalString(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// formatMeta renders meta as sorted key=value pairs
func formatMeta(meta map[string]any) string {
	if len(meta) == 0 {
		return ""
	}
	keys := make([]string, 0, len(meta))
	for k := range meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := ""
	for i, k := range keys {
		if i > 0 {
			out += " "
		}
		out += fmt.Sprintf("%s=%v", k, meta[k])
	}
	return out
}
