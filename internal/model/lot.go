package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Lot is one received batch of a medicament. QuantiteActuelle only changes
// through ledger-recorded movements and never leaves
// [0, QuantiteInitiale+QuantiteAjoutee]. QuantiteAjoutee sums the units found
// on recounts, since earlier sales can still bring units back on top of them.
// Lots are never deleted.
type Lot struct {
	Base
	MedicamentID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_lots_medicament_expiration,priority:1"`
	FournisseurID    *uuid.UUID      `gorm:"type:uuid;index"`
	NumeroLot        string          `gorm:"not null"`
	QuantiteInitiale int             `gorm:"not null"`
	QuantiteActuelle int             `gorm:"not null;check:chk_lots_quantite_actuelle,quantite_actuelle >= 0"`
	QuantiteAjoutee  int             `gorm:"not null;default:0"`
	PrixAchat        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	DateFabrication  *time.Time
	DateExpiration   time.Time `gorm:"not null;index:idx_lots_medicament_expiration,priority:2"`
	CreatedAt        time.Time
	UpdatedAt        time.Time

	Medicament *Medicament `gorm:"foreignKey:MedicamentID"`
}

func (Lot) TableName() string { return "lots" }

// Allouable reports whether the lot may be consumed by a sale at instant now.
func (l Lot) Allouable(now time.Time) bool {
	return l.QuantiteActuelle > 0 && l.DateExpiration.After(now)
}
