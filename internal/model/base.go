package model

import (
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Base carries the UUID primary key shared by every table.
// IDs are assigned client-side so the same models migrate on Postgres and SQLite.
type Base struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey"`
}

func (b *Base) BeforeCreate(_ *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	return nil
}

// Acteur is the already-authenticated identity attached to every mutation.
// Rol: "admin" | "pharmacien" | "caissier" | "vendeur"
type Acteur struct {
	UtilisateurID uuid.UUID
	Rol           string
}
