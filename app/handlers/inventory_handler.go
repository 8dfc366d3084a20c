package handlers

import (
	"github.com/amirphl/iptv-reseller-automation/app/dto"
	businessflow "github.com/amirphl/iptv-reseller-automation/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// InventoryHandlerInterface defines the contract for inventory handlers
type InventoryHandlerInterface interface {
	ImportUnits(c fiber.Ctx) error
}

// InventoryHandler loads activation codes
type InventoryHandler struct {
	baseHandler
	flow   businessflow.InventoryFlow
	logger *zap.Logger
}

func NewInventoryHandler(flow businessflow.InventoryFlow, logger *zap.Logger) *InventoryHandler {
	return &InventoryHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
		logger:      logger.Named("inventory_handler"),
	}
}

func (h *InventoryHandler) ImportUnits(c fiber.Ctx) error {
	var req dto.ImportInventoryRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/inventory/units")
	defer cancel()

	resp, err := h.flow.ImportUnits(ctx, &req)
	if err != nil {
		switch {
		case businessflow.IsTenantNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Tenant not found", "TENANT_NOT_FOUND", nil)
		case businessflow.IsProductCodeRequired(err), businessflow.IsNoCodesProvided(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid inventory import", "VALIDATION_ERROR", err.Error())
		}
		h.logger.Error("inventory import failed", zap.Uint("tenant_id", req.TenantID), zap.Error(err))
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to import inventory", "INVENTORY_IMPORT_FAILED", nil)
	}
	return h.SuccessResponse(c, fiber.StatusCreated, "Inventory imported", resp)
}
