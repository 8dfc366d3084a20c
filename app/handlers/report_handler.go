package handlers

import (
	"strconv"
	"time"

	businessflow "github.com/amirphl/iptv-reseller-automation/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// ReportHandlerInterface defines the contract for queue and delivery report handlers
type ReportHandlerInterface interface {
	QueueStats(c fiber.Ctx) error
	ExportDeliveryLogs(c fiber.Ctx) error
}

// ReportHandler serves queue stats and delivery log exports
type ReportHandler struct {
	baseHandler
	flow   businessflow.DeliveryReportFlow
	logger *zap.Logger
}

func NewReportHandler(flow businessflow.DeliveryReportFlow, logger *zap.Logger) *ReportHandler {
	return &ReportHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
		logger:      logger.Named("report_handler"),
	}
}

func parseTenantID(c fiber.Ctx) (uint, bool) {
	id, err := strconv.ParseUint(c.Params("tenant_id"), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return uint(id), true
}

func (h *ReportHandler) QueueStats(c fiber.Ctx) error {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tenant id", "INVALID_TENANT_ID", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/tenants/:tenant_id/queue/stats")
	defer cancel()

	stats, err := h.flow.QueueStats(ctx, tenantID)
	if err != nil {
		if businessflow.IsTenantNotFound(err) {
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", "TENANT_NOT_FOUND", nil)
		}
		h.logger.Error("queue stats failed", zap.Uint("tenant_id", tenantID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to load queue stats", "QUEUE_STATS_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusOK, "Queue stats retrieved", stats)
}

// ExportDeliveryLogs returns an xlsx of delivery logs between from and to, both YYYY-MM-DD and inclusive
func (h *ReportHandler) ExportDeliveryLogs(c fiber.Ctx) error {
	tenantID, ok := parseTenantID(c)
	if !ok {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid tenant id", "INVALID_TENANT_ID", nil)
	}

	from, err := time.ParseInLocation(time.DateOnly, c.Query("from"), time.UTC)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid from date, expected YYYY-MM-DD", "INVALID_DATE_RANGE", nil)
	}
	to, err := time.ParseInLocation(time.DateOnly, c.Query("to"), time.UTC)
	if err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid to date, expected YYYY-MM-DD", "INVALID_DATE_RANGE", nil)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/tenants/:tenant_id/delivery-logs/export")
	defer cancel()

	filename, data, err := h.flow.ExportDeliveryLogs(ctx, tenantID, from, to.AddDate(0, 0, 1))
	if err != nil {
		switch {
		case businessflow.IsTenantNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", "TENANT_NOT_FOUND", nil)
		case businessflow.IsStartDateAfterEndDate(err), businessflow.IsDateRangeTooLarge(err), businessflow.IsInvalidDateRange(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid date range", "INVALID_DATE_RANGE", err.Error())
		case businessflow.IsExportTooLarge(err):
			return h.ErrorResponse(c, fiber.StatusUnprocessableEntity, "Too many delivery logs in range, narrow the date range", "EXPORT_TOO_LARGE", err.Error())
		}
		h.logger.Error("delivery log export failed", zap.Uint("tenant_id", tenantID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to generate Excel", "DOWNLOAD_FAILED", nil)
	}

	c.Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Set("Content-Disposition", "attachment; filename="+filename)
	return c.Send(data)
}
