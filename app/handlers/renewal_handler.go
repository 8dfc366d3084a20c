package handlers

import (
	"github.com/amirphl/iptv-reseller-automation/app/dto"
	businessflow "github.com/amirphl/iptv-reseller-automation/business_flow"
	"github.com/gofiber/fiber/v3"
	"go.uber.org/zap"
)

// RenewalHandlerInterface defines the contract for renewal handlers
type RenewalHandlerInterface interface {
	Dispatch(c fiber.Ctx) error
}

// RenewalHandler exposes the renewal dispatcher to the billing workflow
type RenewalHandler struct {
	baseHandler
	flow   businessflow.RenewalFlow
	logger *zap.Logger
}

func NewRenewalHandler(flow businessflow.RenewalFlow, logger *zap.Logger) *RenewalHandler {
	return &RenewalHandler{
		baseHandler: newBaseHandler(),
		flow:        flow,
		logger:      logger.Named("renewal_handler"),
	}
}

// Dispatch routes a confirmed renewal to the client's provider.
// Skips and provider failures are reported in the result body with status 200.
func (h *RenewalHandler) Dispatch(c fiber.Ctx) error {
	var req dto.RenewalRequest
	if ok, err := h.bindAndValidate(c, &req); !ok {
		return err
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/renewals/dispatch")
	defer cancel()

	result, err := h.flow.Dispatch(ctx, &req)
	if err != nil {
		switch {
		case businessflow.IsInvalidRenewalRequest(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid renewal request", "INVALID_RENEWAL_REQUEST", err.Error())
		case businessflow.IsClientNotFound(err):
			return h.ErrorResponse(c, fiber.StatusNotFound, "Client not found", "CLIENT_NOT_FOUND", nil)
		case businessflow.IsUnknownProviderKind(err):
			return h.ErrorResponse(c, fiber.StatusBadRequest, "Unknown provider kind", "UNKNOWN_PROVIDER_KIND", err.Error())
		}
		h.logger.Error("renewal dispatch failed",
			zap.Uint("tenant_id", req.TenantID),
			zap.Uint("client_id", req.ClientID),
			zap.Error(err),
		)
		return h.ErrorResponse(c, fiber.StatusInternalServerError, "Failed to dispatch renewal", "DISPATCH_FAILED", nil)
	}

	message := "Renewal dispatched"
	switch {
	case result.Skipped:
		message = "Renewal skipped"
	case !result.Success:
		message = "Renewal failed at provider"
	}
	return h.SuccessResponse(c, fiber.StatusOK, message, result)
}
