package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatutVente is the closed set of sale states.
type StatutVente string

const (
	VenteCompleted         StatutVente = "completed"
	VenteCancelled         StatutVente = "cancelled"
	VenteReturnedPartially StatutVente = "returned_partially"
	VenteReturned          StatutVente = "returned"
)

// transitionsVente lists every legal status change. returned_partially may be
// re-entered by a later partial return; it is never restamped.
var transitionsVente = map[StatutVente][]StatutVente{
	VenteCompleted:         {VenteCancelled, VenteReturnedPartially},
	VenteReturnedPartially: {VenteReturnedPartially},
	VenteCancelled:         nil,
	VenteReturned:          nil,
}

// PeutPasserA reports whether the transition s → next is in the table.
func (s StatutVente) PeutPasserA(next StatutVente) bool {
	for _, allowed := range transitionsVente[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s StatutVente) Terminal() bool { return len(transitionsVente[s]) == 0 }

func (s StatutVente) Valide() bool {
	_, ok := transitionsVente[s]
	return ok
}

// ModePaiement: "especes" | "carte" | "mobile_money"
type ModePaiement string

const (
	PaiementEspeces     ModePaiement = "especes"
	PaiementCarte       ModePaiement = "carte"
	PaiementMobileMoney ModePaiement = "mobile_money"
)

// Vente is a committed, priced transaction. A return is recorded as a new Vente
// with a negative Total, Statut "returned" and VenteOrigineID set.
type Vente struct {
	Base
	Total                 decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	CaissierID            uuid.UUID       `gorm:"type:uuid;not null;index:idx_ventes_caissier_date,priority:1"`
	CommandeID            *uuid.UUID      `gorm:"type:uuid;index"`
	OrdonnanceID          *uuid.UUID      `gorm:"type:uuid"`
	PatientID             *uuid.UUID      `gorm:"type:uuid"`
	VenteOrigineID        *uuid.UUID      `gorm:"type:uuid;index"`
	ModePaiement          ModePaiement    `gorm:"type:varchar(20);not null;default:'especes'"`
	MontantRecu           decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MontantRendu          decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MontantPayeClient     decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	MontantDuParAssurance decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	Statut                StatutVente     `gorm:"type:varchar(20);not null;default:'completed'"`
	Motif                 *string
	// AnnuleeLe and AnnuleePar are set on cancellation. The refund is booked
	// in the canceller's register window at AnnuleeLe.
	AnnuleeLe             *time.Time      `gorm:"index"`
	AnnuleePar            *uuid.UUID      `gorm:"type:uuid;index"`
	CreatedAt             time.Time `gorm:"index:idx_ventes_caissier_date,priority:2"`
	UpdatedAt             time.Time

	Lignes     []DetailVente `gorm:"foreignKey:VenteID;constraint:OnDelete:CASCADE"`
	Ordonnance *Ordonnance   `gorm:"foreignKey:OrdonnanceID"`
}

func (Vente) TableName() string { return "ventes" }

// DetailVente is one sale line, tied to the lot it was drawn from. Quantite is
// negative on return lines, which reference the sold line via LigneOrigineID.
type DetailVente struct {
	Base
	VenteID        uuid.UUID        `gorm:"type:uuid;not null;index"`
	MedicamentID   uuid.UUID        `gorm:"type:uuid;not null;index"`
	LotID          *uuid.UUID       `gorm:"type:uuid;index"`
	LigneOrigineID *uuid.UUID       `gorm:"type:uuid;index"`
	Rang           int              `gorm:"not null"`
	Quantite       int              `gorm:"not null"`
	PrixUnitaire   decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	TauxAssurance  *decimal.Decimal `gorm:"type:decimal(5,2)"`
	PartClient     decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	PartAssurance  decimal.Decimal  `gorm:"type:decimal(12,2);not null;default:0"`
	CreatedAt      time.Time

	Medicament *Medicament `gorm:"foreignKey:MedicamentID"`
}

func (DetailVente) TableName() string { return "details_vente" }

// SousTotal is Quantite × PrixUnitaire (negative on return lines).
func (d DetailVente) SousTotal() decimal.Decimal {
	return d.PrixUnitaire.Mul(decimal.NewFromInt(int64(d.Quantite)))
}
