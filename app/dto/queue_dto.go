package dto

// QueueStatsResponse carries queue entry counts per status for one tenant
type QueueStatsResponse struct {
	TenantID uint             `json:"tenant_id"`
	Counts   map[string]int64 `json:"counts"`
	Total    int64            `json:"total"`
}

// DeliveryLogExportRequest bounds a delivery-log export; dates are YYYY-MM-DD, to is inclusive
type DeliveryLogExportRequest struct {
	TenantID uint   `json:"tenant_id" validate:"required"`
	From     string `json:"from" validate:"required,datetime=2006-01-02"`
	To       string `json:"to" validate:"required,datetime=2006-01-02"`
}
