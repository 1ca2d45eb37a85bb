package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
)

// MedicamentRepository is the catalog data access contract. The catalog is
// read-mostly: the sale engine only ever reads it.
type MedicamentRepository interface {
	Create(ctx context.Context, m *model.Medicament) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Medicament, error)
	FindByCode(ctx context.Context, code string) (*model.Medicament, error)
	List(ctx context.Context, filter dto.MedicamentFilter) ([]model.Medicament, int64, error)
	ListActifs(ctx context.Context) ([]model.Medicament, error)

	// FindByIDsTx loads the given medicaments keyed by id. Missing ids are
	// simply absent from the map.
	FindByIDsTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]model.Medicament, error)

	DB() *gorm.DB
}

type medicamentRepo struct{ db *gorm.DB }

func NewMedicamentRepository(db *gorm.DB) MedicamentRepository { return &medicamentRepo{db: db} }

func (r *medicamentRepo) DB() *gorm.DB { return r.db }

func (r *medicamentRepo) Create(ctx context.Context, m *model.Medicament) error {
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *medicamentRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Medicament, error) {
	var m model.Medicament
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	return &m, err
}

func (r *medicamentRepo) FindByCode(ctx context.Context, code string) (*model.Medicament, error) {
	var m model.Medicament
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&m).Error
	return &m, err
}

func (r *medicamentRepo) List(ctx context.Context, filter dto.MedicamentFilter) ([]model.Medicament, int64, error) {
	var meds []model.Medicament
	var total int64

	q := r.db.WithContext(ctx).Model(&model.Medicament{})

	// Actif filter: "false" = inactifs, "all" = tous, anything else = actifs
	switch filter.Actif {
	case "false":
		q = q.Where("actif = ?", false)
	case "all":
	default:
		q = q.Where("actif = ?", true)
	}
	if filter.Nom != "" {
		q = q.Where("LOWER(nom) LIKE LOWER(?)", "%"+filter.Nom+"%")
	}
	if filter.Categorie != "" {
		q = q.Where("categorie = ?", filter.Categorie)
	}
	if filter.Code != "" {
		q = q.Where("code = ?", filter.Code)
	}

	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	page, limit := pagination(filter.Page, filter.Limit)
	err := q.Order("nom ASC").Limit(limit).Offset((page - 1) * limit).Find(&meds).Error
	return meds, total, err
}

func (r *medicamentRepo) ListActifs(ctx context.Context) ([]model.Medicament, error) {
	var meds []model.Medicament
	err := r.db.WithContext(ctx).Where("actif = ?", true).Order("nom ASC").Find(&meds).Error
	return meds, err
}

func (r *medicamentRepo) FindByIDsTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) (map[uuid.UUID]model.Medicament, error) {
	out := make(map[uuid.UUID]model.Medicament, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var meds []model.Medicament
	if err := conn(r.db, tx).WithContext(ctx).Where("id IN ?", ids).Find(&meds).Error; err != nil {
		return nil, err
	}
	for _, m := range meds {
		out[m.ID] = m
	}
	return out, nil
}
