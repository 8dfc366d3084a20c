package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/amirphl/iptv-reseller-automation/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// InventoryUnitRepositoryImpl implements InventoryUnitRepository
type InventoryUnitRepositoryImpl struct {
	*BaseRepository[models.InventoryUnit]
}

func NewInventoryUnitRepository(db *gorm.DB) InventoryUnitRepository {
	return &InventoryUnitRepositoryImpl{BaseRepository: NewBaseRepository[models.InventoryUnit](db)}
}

const reserveUnitSQL = `
	WITH cte AS (
	  SELECT id
	  FROM inventory_units
	  WHERE tenant_id = ?
		AND product_code = ?
		AND status = 'available'
		AND (reserved_until IS NULL OR reserved_until < ?)
	  ORDER BY id
	  LIMIT 1
	  FOR UPDATE SKIP LOCKED
	)
	UPDATE inventory_units u
	SET reserved_by = ?, reserved_until = ?, updated_at = ?
	FROM cte
	WHERE u.id = cte.id
	RETURNING u.*;
	`

func (r *InventoryUnitRepositoryImpl) Reserve(ctx context.Context, tenantID uint, productCode, token string, now, leaseUntil time.Time) (*models.InventoryUnit, error) {
	var rows []*models.InventoryUnit
	if err := r.getDB(ctx).Raw(reserveUnitSQL, tenantID, productCode, now, token, leaseUntil, now).Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to reserve inventory unit: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (r *InventoryUnitRepositoryImpl) ConfirmDelivered(ctx context.Context, unitID, clientID uint, now time.Time) error {
	db := r.getDB(ctx)
	res := db.Model(&models.InventoryUnit{}).
		Where("id = ? AND status IN ?", unitID, []string{models.InventoryStatusAvailable, models.InventoryStatusUnconfirmed}).
		Where("delivered_to_client_id IS NULL OR delivered_to_client_id = ?", clientID).
		Updates(map[string]any{
			"status":                 models.InventoryStatusDelivered,
			"delivered_to_client_id": clientID,
			"delivered_at":           now,
			"reserved_by":            nil,
			"reserved_until":         nil,
			"updated_at":             now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to confirm inventory unit %d: %w", unitID, res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var unit models.InventoryUnit
	if err := db.First(&unit, unitID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("inventory unit %d not found", unitID)
		}
		return err
	}
	if unit.Status == models.InventoryStatusDelivered && unit.DeliveredToClientID != nil && *unit.DeliveredToClientID == clientID {
		return nil
	}
	return ErrUnitAlreadyDelivered
}

// Hold keeps reserved_by for reconciliation and clears reserved_until so no lease expiry applies
func (r *InventoryUnitRepositoryImpl) Hold(ctx context.Context, unitID uint, token string, clientID uint, now time.Time) error {
	res := r.getDB(ctx).Model(&models.InventoryUnit{}).
		Where("id = ? AND status = ? AND reserved_by = ?", unitID, models.InventoryStatusAvailable, token).
		Updates(map[string]any{
			"status":                 models.InventoryStatusUnconfirmed,
			"delivered_to_client_id": clientID,
			"reserved_until":         nil,
			"updated_at":             now,
		})
	if res.Error != nil {
		return fmt.Errorf("failed to hold inventory unit %d: %w", unitID, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrReservationLost
	}
	return nil
}

// Release drops the caller's lease; the unit stays available
func (r *InventoryUnitRepositoryImpl) Release(ctx context.Context, unitID uint, token string) error {
	res := r.getDB(ctx).Model(&models.InventoryUnit{}).
		Where("id = ? AND status = ? AND reserved_by = ?", unitID, models.InventoryStatusAvailable, token).
		Updates(map[string]any{"reserved_by": nil, "reserved_until": nil})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrReservationLost
	}
	return nil
}

func (r *InventoryUnitRepositoryImpl) ReleaseExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.getDB(ctx).Model(&models.InventoryUnit{}).
		Where("status = ? AND reserved_until < ?", models.InventoryStatusAvailable, now).
		Updates(map[string]any{"reserved_by": nil, "reserved_until": nil})
	return res.RowsAffected, res.Error
}

func (r *InventoryUnitRepositoryImpl) InsertSkipDuplicates(ctx context.Context, units []*models.InventoryUnit) (int64, error) {
	if len(units) == 0 {
		return 0, nil
	}
	res := r.getDB(ctx).Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(units, 100)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to insert inventory units: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *InventoryUnitRepositoryImpl) CountAvailable(ctx context.Context, tenantID uint, productCode string) (int64, error) {
	var count int64
	err := r.getDB(ctx).Model(&models.InventoryUnit{}).
		Where("tenant_id = ? AND product_code = ? AND status = ?", tenantID, productCode, models.InventoryStatusAvailable).
		Count(&count).Error
	return count, err
}
