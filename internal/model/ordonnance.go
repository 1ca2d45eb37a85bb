package model

import "time"

// Ordonnance is a prescription attached to a sale or an order.
type Ordonnance struct {
	Base
	Numero         string    `gorm:"not null"`
	Medecin        string    `gorm:"not null"`
	DateOrdonnance time.Time `gorm:"not null"`
	PatientNom     *string
	CreatedAt      time.Time
}

func (Ordonnance) TableName() string { return "ordonnances" }
