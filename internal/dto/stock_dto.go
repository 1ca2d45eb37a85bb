package dto

import "github.com/shopspring/decimal"

// ─── Filter / List ──────────────────────────────────────────────────────────

// MouvementFilter is bound from the query string of GET /v1/stock/mouvements.
type MouvementFilter struct {
	MedicamentID string `form:"medicament_id" validate:"omitempty,uuid"`
	LotID        string `form:"lot_id"        validate:"omitempty,uuid"`
	VenteID      string `form:"vente_id"      validate:"omitempty,uuid"`
	Type         string `form:"type"          validate:"omitempty,oneof=reception vente ajustement retour"`
	Page         int    `form:"page,default=1"    validate:"min=1"`
	Limit        int    `form:"limit,default=100" validate:"min=1,max=500"`
}

type MouvementResponse struct {
	ID            string  `json:"id"`
	MedicamentID  string  `json:"medicament_id"`
	Medicament    string  `json:"medicament,omitempty"`
	LotID         *string `json:"lot_id"`
	VenteID       *string `json:"vente_id"`
	Quantite      int     `json:"quantite"`
	Type          string  `json:"type"`
	Motif         string  `json:"motif"`
	UtilisateurID string  `json:"utilisateur_id"`
	CreatedAt     string  `json:"created_at"`
}

type MouvementListResponse struct {
	Data  []MouvementResponse `json:"data"`
	Total int64               `json:"total"`
	Page  int                 `json:"page"`
	Limit int                 `json:"limit"`
}

// ─── Request DTOs ────────────────────────────────────────────────────────────

type ReceptionLotRequest struct {
	MedicamentID    string          `json:"medicament_id"    validate:"required,uuid"`
	FournisseurID   *string         `json:"fournisseur_id"   validate:"omitempty,uuid"`
	NumeroLot       string          `json:"numero_lot"       validate:"required,max=64"`
	Quantite        int             `json:"quantite"         validate:"required,min=1"`
	PrixAchat       decimal.Decimal `json:"prix_achat"       validate:"min=0"`
	DateFabrication *string         `json:"date_fabrication" validate:"omitempty,datetime=2006-01-02"`
	DateExpiration  string          `json:"date_expiration"  validate:"required,datetime=2006-01-02"`
}

// AjustementLotRequest: Delta is signed and never zero.
type AjustementLotRequest struct {
	Delta int    `json:"delta" validate:"required"`
	Motif string `json:"motif" validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LotResponse struct {
	ID               string          `json:"id"`
	MedicamentID     string          `json:"medicament_id"`
	Medicament       string          `json:"medicament,omitempty"`
	FournisseurID    *string         `json:"fournisseur_id,omitempty"`
	NumeroLot        string          `json:"numero_lot"`
	QuantiteInitiale int             `json:"quantite_initiale"`
	QuantiteActuelle int             `json:"quantite_actuelle"`
	QuantiteAjoutee  int             `json:"quantite_ajoutee"`
	PrixAchat        decimal.Decimal `json:"prix_achat"`
	DateFabrication  *string         `json:"date_fabrication,omitempty"`
	DateExpiration   string          `json:"date_expiration"`
}

type MedicamentSousSeuil struct {
	Medicament      MedicamentResponse `json:"medicament"`
	StockDisponible int                `json:"stock_disponible"`
}

type AlertesStockResponse struct {
	SousSeuil         []MedicamentSousSeuil `json:"sous_seuil"`
	ProchesExpiration []LotResponse         `json:"proches_expiration"`
}
