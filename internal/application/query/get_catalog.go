package query

import (
	"github.com/alem-hub/lingua-hub/internal/domain/economy"
)

// CatalogResult lists everything purchasable.
type CatalogResult struct {
	PowerUps []economy.PowerUp `json:"powerUps"`
	Quests   []economy.Quest   `json:"quests"`
}

// GetCatalogHandler returns the static power-up and quest catalogs.
type GetCatalogHandler struct{}

// NewGetCatalogHandler creates a new GetCatalogHandler.
func NewGetCatalogHandler() *GetCatalogHandler {
	return &GetCatalogHandler{}
}

// Handle executes the query.
func (h *GetCatalogHandler) Handle() CatalogResult {
	return CatalogResult{
		PowerUps: economy.PowerUps(),
		Quests:   economy.Catalog(),
	}
}
