package models

// Product is the catalogue entry a farmer sells.
type Product struct {
	ID       string  `json:"id" validate:"required"`
	Name     string  `json:"name"`
	Stock    int     `json:"stock"`
	Unit     string  `json:"unit,omitempty"`
	Price    float64 `json:"price,omitempty"`
	FarmerID string  `json:"farmerId,omitempty"`
}
