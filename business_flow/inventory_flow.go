package businessflow

import (
	"context"
	"strings"

	"github.com/amirphl/iptv-reseller-automation/app/dto"
	"github.com/amirphl/iptv-reseller-automation/models"
	"github.com/amirphl/iptv-reseller-automation/repository"
	"go.uber.org/zap"
)

// DefaultInventoryCodeLength is the digit count of an activation code
const DefaultInventoryCodeLength = 16

// InventoryFlow loads activation codes into a tenant's inventory
type InventoryFlow interface {
	ImportUnits(ctx context.Context, req *dto.ImportInventoryRequest) (*dto.ImportInventoryResponse, error)
}

// InventoryFlowImpl implements InventoryFlow
type InventoryFlowImpl struct {
	tenantRepo    repository.TenantRepository
	inventoryRepo repository.InventoryUnitRepository
	codeLength    int
	logger        *zap.Logger
}

func NewInventoryFlow(tenantRepo repository.TenantRepository, inventoryRepo repository.InventoryUnitRepository, codeLength int, logger *zap.Logger) InventoryFlow {
	if codeLength <= 0 {
		codeLength = DefaultInventoryCodeLength
	}
	return &InventoryFlowImpl{
		tenantRepo:    tenantRepo,
		inventoryRepo: inventoryRepo,
		codeLength:    codeLength,
		logger:        logger.Named("inventory"),
	}
}

func (f *InventoryFlowImpl) validCode(code string) bool {
	if len(code) != f.codeLength {
		return false
	}
	for _, r := range code {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func (f *InventoryFlowImpl) ImportUnits(ctx context.Context, req *dto.ImportInventoryRequest) (*dto.ImportInventoryResponse, error) {
	product := strings.TrimSpace(req.ProductCode)
	if product == "" {
		return nil, NewBusinessError("PRODUCT_CODE_REQUIRED", "product_code is required", ErrProductCodeRequired)
	}
	if len(req.Codes) == 0 {
		return nil, NewBusinessError("NO_CODES", "at least one code is required", ErrNoCodesProvided)
	}

	tenant, err := f.tenantRepo.ByID(ctx, req.TenantID)
	if err != nil {
		return nil, NewBusinessError("TENANT_LOOKUP_FAILED", "failed to load tenant", err)
	}
	if tenant == nil {
		return nil, NewBusinessError("TENANT_NOT_FOUND", "tenant not found", ErrTenantNotFound)
	}

	resp := &dto.ImportInventoryResponse{}
	seen := make(map[string]bool, len(req.Codes))
	units := make([]*models.InventoryUnit, 0, len(req.Codes))
	for _, raw := range req.Codes {
		code := models.NormalizeInventoryCode(raw)
		if !f.validCode(code) {
			resp.Invalid = append(resp.Invalid, models.MaskInventoryCode(code))
			continue
		}
		if seen[code] {
			resp.Duplicates++
			continue
		}
		seen[code] = true
		units = append(units, &models.InventoryUnit{
			TenantID:    tenant.ID,
			ProductCode: product,
			Code:        code,
			Status:      models.InventoryStatusAvailable,
		})
	}

	inserted, err := f.inventoryRepo.InsertSkipDuplicates(ctx, units)
	if err != nil {
		return nil, NewBusinessError("INVENTORY_IMPORT_FAILED", "failed to import inventory units", err)
	}
	resp.Imported = inserted
	resp.Duplicates += int64(len(units)) - inserted

	available, err := f.inventoryRepo.CountAvailable(ctx, tenant.ID, product)
	if err != nil {
		f.logger.Warn("failed to count available units", zap.Uint("tenant_id", tenant.ID), zap.Error(err))
	}
	resp.Available = available

	f.logger.Info("inventory imported",
		zap.Uint("tenant_id", tenant.ID),
		zap.String("product_code", product),
		zap.Int64("imported", resp.Imported),
		zap.Int64("duplicates", resp.Duplicates),
		zap.Int("invalid", len(resp.Invalid)),
	)
	return resp, nil
}
