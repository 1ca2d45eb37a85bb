package model

import (
	"time"

	"github.com/google/uuid"
)

// TypeMouvement classifies a ledger entry.
type TypeMouvement string

const (
	MouvementReception  TypeMouvement = "reception"
	MouvementVente      TypeMouvement = "vente"
	MouvementAjustement TypeMouvement = "ajustement"
	MouvementRetour     TypeMouvement = "retour"
)

// MouvementStock is an immutable ledger entry: negative Quantite = outflow,
// positive = inflow. Rows are only ever inserted (see repository.MouvementStockRepository).
type MouvementStock struct {
	Base
	MedicamentID  uuid.UUID     `gorm:"type:uuid;not null;index"`
	LotID         *uuid.UUID    `gorm:"type:uuid;index"`
	VenteID       *uuid.UUID    `gorm:"type:uuid;index"`
	Quantite      int           `gorm:"not null"`
	Type          TypeMouvement `gorm:"type:varchar(20);not null;index"`
	Motif         string        `gorm:"not null;default:''"`
	UtilisateurID uuid.UUID     `gorm:"type:uuid;not null"`
	CreatedAt     time.Time     `gorm:"index"`

	Medicament *Medicament `gorm:"foreignKey:MedicamentID"`
}

func (MouvementStock) TableName() string { return "mouvements_stock" }
