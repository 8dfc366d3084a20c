package dto

// ImportInventoryRequest bulk loads activation codes for one product
type ImportInventoryRequest struct {
	TenantID    uint     `json:"tenant_id" validate:"required"`
	ProductCode string   `json:"product_code" validate:"required,max=128"`
	Codes       []string `json:"codes" validate:"required,min=1,max=5000"`
}

// ImportInventoryResponse reports how many codes were stored
type ImportInventoryResponse struct {
	Imported   int64    `json:"imported"`
	Duplicates int64    `json:"duplicates"`
	Invalid    []string `json:"invalid,omitempty"`
	Available  int64    `json:"available"`
}
