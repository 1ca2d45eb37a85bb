package dto

import "github.com/shopspring/decimal"

type CreerCommandeRequest struct {
	Lignes       []LigneVenteRequest `json:"lignes"        validate:"required,min=1,dive"`
	PatientID    *string             `json:"patient_id"    validate:"omitempty,uuid"`
	OrdonnanceID *string             `json:"ordonnance_id" validate:"omitempty,uuid"`
	Ordonnance   *OrdonnanceRequest  `json:"ordonnance"`
	Notes        *string             `json:"notes"         validate:"omitempty,max=500"`
}

type PayerCommandeRequest struct {
	ModePaiement  string           `json:"mode_paiement"  validate:"required,oneof=especes carte mobile_money"`
	MontantRecu   decimal.Decimal  `json:"montant_recu"   validate:"min=0"`
	TauxAssurance *decimal.Decimal `json:"taux_assurance" validate:"omitempty,min=0,max=100"`
}

type LigneCommandeResponse struct {
	MedicamentID string          `json:"medicament_id"`
	Medicament   string          `json:"medicament,omitempty"`
	Quantite     int             `json:"quantite"`
	PrixUnitaire decimal.Decimal `json:"prix_unitaire"`
	SousTotal    decimal.Decimal `json:"sous_total"`
}

type CommandeResponse struct {
	ID           string                  `json:"id"`
	NumeroTicket string                  `json:"numero_ticket"`
	Statut       string                  `json:"statut"`
	VendeurID    string                  `json:"vendeur_id"`
	PatientID    *string                 `json:"patient_id,omitempty"`
	OrdonnanceID *string                 `json:"ordonnance_id,omitempty"`
	VenteID      *string                 `json:"vente_id,omitempty"`
	Notes        *string                 `json:"notes,omitempty"`
	Total        decimal.Decimal         `json:"total"`
	Lignes       []LigneCommandeResponse `json:"lignes"`
	CreatedAt    string                  `json:"created_at"`
}

// PaiementCommandeResponse is returned by POST /v1/commandes/:id/paiement.
type PaiementCommandeResponse struct {
	Commande CommandeResponse `json:"commande"`
	Vente    VenteResponse    `json:"vente"`
}
