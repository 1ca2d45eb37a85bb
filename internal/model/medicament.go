package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Medicament is a catalog entry (SKU). Prix is the selling price used for every
// sale line; PrixAchat is informational (margin), never billed.
type Medicament struct {
	Base
	Nom               string          `gorm:"index;not null"`
	Code              string          `gorm:"uniqueIndex;not null"`
	Categorie         string          `gorm:"not null;default:''"`
	Prix              decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	PrixAchat         decimal.Decimal `gorm:"type:decimal(12,2);not null;default:0"`
	OrdonnanceRequise bool            `gorm:"not null;default:false"`
	SeuilAlerte       int             `gorm:"not null"`
	MaxStock          int             `gorm:"not null"`
	Actif             bool            `gorm:"not null;default:true"`
	CreatedAt         time.Time
	UpdatedAt         time.Time

	Lots []Lot `gorm:"foreignKey:MedicamentID;constraint:OnDelete:CASCADE"`
}

func (Medicament) TableName() string { return "medicaments" }
