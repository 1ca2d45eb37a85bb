package dto

import "github.com/shopspring/decimal"

// ─── Request DTOs ────────────────────────────────────────────────────────────

type LigneVenteRequest struct {
	MedicamentID string `json:"medicament_id" validate:"required,uuid"`
	Quantite     int    `json:"quantite"      validate:"required,min=1"`
}

// OrdonnanceRequest creates the prescription inline, in the same transaction
// as the sale or order it is attached to.
type OrdonnanceRequest struct {
	Numero         string  `json:"numero"          validate:"required,max=64"`
	Medecin        string  `json:"medecin"         validate:"required,max=128"`
	DateOrdonnance string  `json:"date_ordonnance" validate:"required,datetime=2006-01-02"`
	PatientNom     *string `json:"patient_nom"     validate:"omitempty,max=128"`
}

type CreerVenteRequest struct {
	Lignes       []LigneVenteRequest `json:"lignes"        validate:"required,min=1,dive"`
	ModePaiement string              `json:"mode_paiement" validate:"required,oneof=especes carte mobile_money"`
	MontantRecu  decimal.Decimal     `json:"montant_recu"  validate:"min=0"`
	// TauxAssurance is the share (0–100 %) covered by the patient's insurer.
	TauxAssurance *decimal.Decimal   `json:"taux_assurance" validate:"omitempty,min=0,max=100"`
	PatientID     *string            `json:"patient_id"     validate:"omitempty,uuid"`
	OrdonnanceID  *string            `json:"ordonnance_id"  validate:"omitempty,uuid"`
	Ordonnance    *OrdonnanceRequest `json:"ordonnance"`
}

type AnnulerVenteRequest struct {
	Motif string `json:"motif" validate:"required,min=3"`
}

type LigneRetourRequest struct {
	LigneID  string `json:"ligne_id" validate:"required,uuid"`
	Quantite int    `json:"quantite" validate:"required,min=1"`
}

type RetourVenteRequest struct {
	Lignes []LigneRetourRequest `json:"lignes" validate:"required,min=1,dive"`
	Motif  string               `json:"motif"  validate:"required,min=3"`
}

// ─── Response DTOs ───────────────────────────────────────────────────────────

type LigneVenteResponse struct {
	ID             string           `json:"id"`
	MedicamentID   string           `json:"medicament_id"`
	Medicament     string           `json:"medicament,omitempty"`
	LotID          *string          `json:"lot_id"`
	LigneOrigineID *string          `json:"ligne_origine_id,omitempty"`
	Quantite       int              `json:"quantite"`
	PrixUnitaire   decimal.Decimal  `json:"prix_unitaire"`
	SousTotal      decimal.Decimal  `json:"sous_total"`
	TauxAssurance  *decimal.Decimal `json:"taux_assurance,omitempty"`
	PartClient     decimal.Decimal  `json:"part_client"`
	PartAssurance  decimal.Decimal  `json:"part_assurance"`
}

type VenteResponse struct {
	ID                    string               `json:"id"`
	Statut                string               `json:"statut"`
	Total                 decimal.Decimal      `json:"total"`
	CaissierID            string               `json:"caissier_id"`
	CommandeID            *string              `json:"commande_id,omitempty"`
	OrdonnanceID          *string              `json:"ordonnance_id,omitempty"`
	PatientID             *string              `json:"patient_id,omitempty"`
	VenteOrigineID        *string              `json:"vente_origine_id,omitempty"`
	ModePaiement          string               `json:"mode_paiement"`
	MontantRecu           decimal.Decimal      `json:"montant_recu"`
	MontantRendu          decimal.Decimal      `json:"montant_rendu"`
	MontantPayeClient     decimal.Decimal      `json:"montant_paye_client"`
	MontantDuParAssurance decimal.Decimal      `json:"montant_du_par_assurance"`
	Motif                 *string              `json:"motif,omitempty"`
	AnnuleeLe             *string              `json:"annulee_le,omitempty"`
	AnnuleePar            *string              `json:"annulee_par,omitempty"`
	Lignes                []LigneVenteResponse `json:"lignes"`
	Retours               []VenteResponse      `json:"retours,omitempty"`
	CreatedAt             string               `json:"created_at"`
}

// RetourVenteResponse carries the new return transaction and the original
// sale as it stands after the return.
type RetourVenteResponse struct {
	Retour    VenteResponse `json:"retour"`
	Originale VenteResponse `json:"originale"`
}
