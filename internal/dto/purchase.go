package dto

// CreatePurchaseRequest payload for registering purchased material.
// Dates use the YYYY-MM-DD form; usage years are four-digit strings.
type CreatePurchaseRequest struct {
	ProductID      string  `json:"product_id" validate:"required"`
	MunicipalityID string  `json:"municipality_id" validate:"required"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	PurchasedOn    string  `json:"purchased_on" validate:"required,datetime=2006-01-02"`
	WillUseInYear  *string `json:"will_use_in_year,omitempty" validate:"omitempty,len=4,numeric"`
	UsedInYear     *string `json:"used_in_year,omitempty" validate:"omitempty,len=4,numeric"`
}

// UpdatePurchaseRequest payload for editing a purchase. The collection
// link is recomputed from the updated fields, never set directly.
type UpdatePurchaseRequest struct {
	ProductID      string  `json:"product_id" validate:"required"`
	MunicipalityID string  `json:"municipality_id" validate:"required"`
	Quantity       int     `json:"quantity" validate:"required,gt=0"`
	PurchasedOn    string  `json:"purchased_on" validate:"required,datetime=2006-01-02"`
	WillUseInYear  *string `json:"will_use_in_year,omitempty" validate:"omitempty,len=4,numeric"`
	UsedInYear     *string `json:"used_in_year,omitempty" validate:"omitempty,len=4,numeric"`
}

// CollectionQuery mirrors supported collection listing filters.
type CollectionQuery struct {
	Year         string
	MaterialType string
	Page         int
	PageSize     int
}
