package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/model"
)

type OrdonnanceRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, o *model.Ordonnance) error
	FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Ordonnance, error)
}

type ordonnanceRepo struct{ db *gorm.DB }

func NewOrdonnanceRepository(db *gorm.DB) OrdonnanceRepository { return &ordonnanceRepo{db: db} }

func (r *ordonnanceRepo) CreateTx(ctx context.Context, tx *gorm.DB, o *model.Ordonnance) error {
	return conn(r.db, tx).WithContext(ctx).Create(o).Error
}

func (r *ordonnanceRepo) FindByIDTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Ordonnance, error) {
	var o model.Ordonnance
	err := conn(r.db, tx).WithContext(ctx).First(&o, "id = ?", id).Error
	return &o, err
}
