package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/model"
)

// ClotureRepository has no update or delete: closings are immutable.
type ClotureRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, c *model.ClotureCaisse) error
	// LastForCaissierTx returns the cashier's latest closing, or nil when they
	// never closed. With a non-nil tx the row is locked.
	LastForCaissierTx(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID) (*model.ClotureCaisse, error)
	// ListForCaissier returns up to limit closings, newest first.
	ListForCaissier(ctx context.Context, caissierID uuid.UUID, limit int) ([]model.ClotureCaisse, error)

	DB() *gorm.DB
}

type clotureRepo struct{ db *gorm.DB }

func NewClotureRepository(db *gorm.DB) ClotureRepository { return &clotureRepo{db: db} }

func (r *clotureRepo) DB() *gorm.DB { return r.db }

func (r *clotureRepo) CreateTx(ctx context.Context, tx *gorm.DB, c *model.ClotureCaisse) error {
	return conn(r.db, tx).WithContext(ctx).Create(c).Error
}

func (r *clotureRepo) LastForCaissierTx(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID) (*model.ClotureCaisse, error) {
	q := conn(r.db, tx).WithContext(ctx)
	if tx != nil {
		q = forUpdate(q)
	}
	var c model.ClotureCaisse
	err := q.Where("caissier_id = ?", caissierID).
		Order("date_cloture DESC").
		First(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *clotureRepo) ListForCaissier(ctx context.Context, caissierID uuid.UUID, limit int) ([]model.ClotureCaisse, error) {
	_, limit = pagination(1, limit)
	var clotures []model.ClotureCaisse
	err := r.db.WithContext(ctx).Where("caissier_id = ?", caissierID).
		Order("date_cloture DESC").Limit(limit).
		Find(&clotures).Error
	return clotures, err
}
