package dto

import "github.com/shopspring/decimal"

// MedicamentFilter is bound from the query string of GET /v1/medicaments.
type MedicamentFilter struct {
	Nom       string `form:"nom"`
	Code      string `form:"code"`
	Categorie string `form:"categorie"`
	Actif     string `form:"actif"` // "" | "false" | "all"
	Page      int    `form:"page,default=1"    validate:"min=1"`
	Limit     int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type CreerMedicamentRequest struct {
	Nom               string          `json:"nom"                validate:"required,min=2,max=128"`
	Code              string          `json:"code"               validate:"required,max=64"`
	Categorie         string          `json:"categorie"          validate:"max=64"`
	Prix              decimal.Decimal `json:"prix"               validate:"gt=0"`
	PrixAchat         decimal.Decimal `json:"prix_achat"         validate:"min=0"`
	OrdonnanceRequise bool            `json:"ordonnance_requise"`
	SeuilAlerte       int             `json:"seuil_alerte"       validate:"min=0"`
	MaxStock          int             `json:"max_stock"          validate:"min=0"`
}

type MedicamentResponse struct {
	ID                string          `json:"id"`
	Nom               string          `json:"nom"`
	Code              string          `json:"code"`
	Categorie         string          `json:"categorie"`
	Prix              decimal.Decimal `json:"prix"`
	PrixAchat         decimal.Decimal `json:"prix_achat"`
	OrdonnanceRequise bool            `json:"ordonnance_requise"`
	SeuilAlerte       int             `json:"seuil_alerte"`
	MaxStock          int             `json:"max_stock"`
	Actif             bool            `json:"actif"`
	StockDisponible   *int            `json:"stock_disponible,omitempty"`
}

type MedicamentListResponse struct {
	Data  []MedicamentResponse `json:"data"`
	Total int64                `json:"total"`
	Page  int                  `json:"page"`
	Limit int                  `json:"limit"`
}
