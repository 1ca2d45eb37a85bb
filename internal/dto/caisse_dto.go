package dto

import "github.com/shopspring/decimal"

type CloturerCaisseRequest struct {
	TotalReel decimal.Decimal `json:"total_reel" validate:"min=0"`
	// TotalTheorique is what the client computed; when present it must match
	// the server's figure within 0.01.
	TotalTheorique *decimal.Decimal `json:"total_theorique"`
	Commentaires   *string          `json:"commentaires" validate:"omitempty,max=500"`
}

// HistoriqueCaisseQuery pages through the caller's own closings, newest first.
type HistoriqueCaisseQuery struct {
	Limit int `form:"limit,default=20" validate:"min=1,max=100"`
}

type ClotureResponse struct {
	ID             string          `json:"id"`
	CaissierID     string          `json:"caissier_id"`
	DateOuverture  string          `json:"date_ouverture"`
	DateCloture    string          `json:"date_cloture"`
	TotalTheorique decimal.Decimal `json:"total_theorique"`
	TotalReel      decimal.Decimal `json:"total_reel"`
	Ecart          decimal.Decimal `json:"ecart"`
	Commentaires   *string         `json:"commentaires,omitempty"`
}

// CaisseCouranteResponse describes the open reconciliation window.
type CaisseCouranteResponse struct {
	CaissierID      string          `json:"caissier_id"`
	DerniereCloture *string         `json:"derniere_cloture"`
	TotalTheorique  decimal.Decimal `json:"total_theorique"`
}
