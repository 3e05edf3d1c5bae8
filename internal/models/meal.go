package models

// Meal is the catalog's view of a menu item. Owned by the catalog service;
// orders only keep the snapshot fields copied at creation time.
type Meal struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	PriceCents int64  `json:"price_cents"`
	Available  bool   `json:"available"`
}
