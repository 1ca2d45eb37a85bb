package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ClotureCaisse is an immutable reconciliation record. DateCloture is the lower
// bound of the cashier's next reconciliation window.
type ClotureCaisse struct {
	Base
	CaissierID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_clotures_caissier_date,priority:1"`
	DateOuverture  time.Time       `gorm:"not null"`
	DateCloture    time.Time       `gorm:"not null;index:idx_clotures_caissier_date,priority:2"`
	TotalTheorique decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	TotalReel      decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	// Ecart = TotalReel − TotalTheorique, persisted even when zero
	Ecart        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Commentaires *string
	CreatedAt    time.Time
}

func (ClotureCaisse) TableName() string { return "clotures_caisse" }
