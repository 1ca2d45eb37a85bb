package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
)

// MouvementStockWriter is the only way services touch the ledger. It can
// append and nothing else; Postgres additionally rejects UPDATE and DELETE
// with a trigger.
type MouvementStockWriter interface {
	AppendTx(ctx context.Context, tx *gorm.DB, mouvements ...*model.MouvementStock) error
}

// MouvementStockReader serves the ledger listing and the reconciliation
// checks.
type MouvementStockReader interface {
	List(ctx context.Context, filter dto.MouvementFilter) ([]model.MouvementStock, int64, error)
	SumByLot(ctx context.Context, lotID uuid.UUID) (int, error)
	SumByVente(ctx context.Context, venteID uuid.UUID) (int, error)
}

type MouvementStockRepository interface {
	MouvementStockWriter
	MouvementStockReader
}

type mouvementStockRepo struct {
	db  *gorm.DB
	now func() time.Time
}

func NewMouvementStockRepository(db *gorm.DB) MouvementStockRepository {
	return &mouvementStockRepo{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *mouvementStockRepo) AppendTx(ctx context.Context, tx *gorm.DB, mouvements ...*model.MouvementStock) error {
	if len(mouvements) == 0 {
		return nil
	}
	for _, m := range mouvements {
		if m.CreatedAt.IsZero() {
			m.CreatedAt = r.now()
		}
	}
	return conn(r.db, tx).WithContext(ctx).Create(mouvements).Error
}

func (r *mouvementStockRepo) List(ctx context.Context, filter dto.MouvementFilter) ([]model.MouvementStock, int64, error) {
	q := r.db.WithContext(ctx).Model(&model.MouvementStock{})
	if filter.MedicamentID != "" {
		q = q.Where("medicament_id = ?", filter.MedicamentID)
	}
	if filter.LotID != "" {
		q = q.Where("lot_id = ?", filter.LotID)
	}
	if filter.VenteID != "" {
		q = q.Where("vente_id = ?", filter.VenteID)
	}
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := pagination(filter.Page, filter.Limit)
	var mouvements []model.MouvementStock
	err := q.Preload("Medicament").
		Order("created_at DESC").Order("id ASC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&mouvements).Error
	return mouvements, total, err
}

func (r *mouvementStockRepo) SumByLot(ctx context.Context, lotID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.MouvementStock{}).
		Select("COALESCE(SUM(quantite), 0)").
		Where("lot_id = ?", lotID).
		Scan(&total).Error
	return int(total), err
}

func (r *mouvementStockRepo) SumByVente(ctx context.Context, venteID uuid.UUID) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.MouvementStock{}).
		Select("COALESCE(SUM(quantite), 0)").
		Where("vente_id = ?", venteID).
		Scan(&total).Error
	return int(total), err
}
