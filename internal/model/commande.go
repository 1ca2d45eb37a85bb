package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// StatutCommande: "pending" → "paid" exactly once, or "pending" → "cancelled".
type StatutCommande string

const (
	CommandePending   StatutCommande = "pending"
	CommandePaid      StatutCommande = "paid"
	CommandeCancelled StatutCommande = "cancelled"
)

// Commande stages items before a cashier commits payment. No stock is
// reserved while pending.
type Commande struct {
	Base
	NumeroTicket string          `gorm:"uniqueIndex;not null"`
	VendeurID    uuid.UUID       `gorm:"type:uuid;not null;index"`
	PatientID    *uuid.UUID      `gorm:"type:uuid"`
	OrdonnanceID *uuid.UUID      `gorm:"type:uuid"`
	Statut       StatutCommande  `gorm:"type:varchar(20);not null;default:'pending';index"`
	Total        decimal.Decimal `gorm:"type:decimal(12,2);not null"`
	Notes        *string
	VenteID      *uuid.UUID `gorm:"type:uuid"`
	CreatedAt    time.Time  `gorm:"index"`
	UpdatedAt    time.Time

	Lignes []DetailCommande `gorm:"foreignKey:CommandeID;constraint:OnDelete:CASCADE"`
}

func (Commande) TableName() string { return "commandes" }

type DetailCommande struct {
	Base
	CommandeID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	MedicamentID uuid.UUID       `gorm:"type:uuid;not null"`
	Rang         int             `gorm:"not null"`
	Quantite     int             `gorm:"not null"`
	PrixUnitaire decimal.Decimal `gorm:"type:decimal(12,2);not null"`

	Medicament *Medicament `gorm:"foreignKey:MedicamentID"`
}

func (DetailCommande) TableName() string { return "details_commande" }

// CompteurTicket holds the last order ticket number issued on one UTC day.
// The row is locked while a ticket is drawn.
type CompteurTicket struct {
	Jour    string `gorm:"primaryKey;size:8"` // YYYYMMDD
	Dernier int    `gorm:"not null"`
}

func (CompteurTicket) TableName() string { return "compteurs_ticket" }
