package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/model"
)

var (
	// ErrInsufficientLotQuantity is returned when a decrement would drive a
	// lot below zero.
	ErrInsufficientLotQuantity = errors.New("insufficient lot quantity")
	// ErrLotOverflow is returned when an increment would exceed the quantity
	// the lot was received with, plus recounted units for restocks.
	ErrLotOverflow = errors.New("lot quantity would exceed its initial quantity")
)

// StockParMedicament is the allocatable quantity of one medicament.
type StockParMedicament struct {
	MedicamentID uuid.UUID
	Quantite     int
}

// LotRepository owns every read and write of lot quantities. Quantity writes
// must run inside the caller's transaction, paired with a ledger append.
type LotRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, l *model.Lot) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Lot, error)
	FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lot, error)
	// FindByIDsTx reads lots without locking them. Missing ids are skipped.
	FindByIDsTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Lot, error)

	// FindAllocatable returns allocatable lots in FEFO order
	// (date_expiration ASC, id ASC). With a non-nil tx the rows are locked.
	FindAllocatable(ctx context.Context, tx *gorm.DB, medicamentID uuid.UUID, now time.Time) ([]model.Lot, error)
	AvailableQuantity(ctx context.Context, medicamentID uuid.UUID, now time.Time) (int, error)
	AvailableByMedicament(ctx context.Context, now time.Time) (map[uuid.UUID]int, error)
	ListNearExpiry(ctx context.Context, now, until time.Time) ([]model.Lot, error)
	ListByMedicament(ctx context.Context, medicamentID uuid.UUID) ([]model.Lot, error)

	DecrementTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, qty int) error
	// IncrementTx puts back units that left through a sale.
	IncrementTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, qty int) error
	// AddRecountedTx adds units found on a recount.
	AddRecountedTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, qty int) error

	DB() *gorm.DB
}

type lotRepo struct{ db *gorm.DB }

func NewLotRepository(db *gorm.DB) LotRepository { return &lotRepo{db: db} }

func (r *lotRepo) DB() *gorm.DB { return r.db }

func (r *lotRepo) CreateTx(ctx context.Context, tx *gorm.DB, l *model.Lot) error {
	return conn(r.db, tx).WithContext(ctx).Create(l).Error
}

func (r *lotRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Lot, error) {
	var l model.Lot
	err := r.db.WithContext(ctx).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *lotRepo) FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Lot, error) {
	var l model.Lot
	err := forUpdate(tx.WithContext(ctx)).First(&l, "id = ?", id).Error
	return &l, err
}

func (r *lotRepo) FindByIDsTx(ctx context.Context, tx *gorm.DB, ids []uuid.UUID) ([]model.Lot, error) {
	var lots []model.Lot
	if len(ids) == 0 {
		return lots, nil
	}
	err := conn(r.db, tx).WithContext(ctx).Where("id IN ?", ids).Find(&lots).Error
	return lots, err
}

func (r *lotRepo) FindAllocatable(ctx context.Context, tx *gorm.DB, medicamentID uuid.UUID, now time.Time) ([]model.Lot, error) {
	q := conn(r.db, tx).WithContext(ctx)
	if tx != nil {
		q = forUpdate(q)
	}
	var lots []model.Lot
	err := q.Where("medicament_id = ? AND quantite_actuelle > 0 AND date_expiration > ?", medicamentID, now).
		Order("date_expiration ASC").Order("id ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) AvailableQuantity(ctx context.Context, medicamentID uuid.UUID, now time.Time) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Lot{}).
		Select("COALESCE(SUM(quantite_actuelle), 0)").
		Where("medicament_id = ? AND quantite_actuelle > 0 AND date_expiration > ?", medicamentID, now).
		Scan(&total).Error
	return int(total), err
}

func (r *lotRepo) AvailableByMedicament(ctx context.Context, now time.Time) (map[uuid.UUID]int, error) {
	var rows []StockParMedicament
	err := r.db.WithContext(ctx).Model(&model.Lot{}).
		Select("medicament_id, SUM(quantite_actuelle) AS quantite").
		Where("quantite_actuelle > 0 AND date_expiration > ?", now).
		Group("medicament_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.MedicamentID] = row.Quantite
	}
	return out, nil
}

func (r *lotRepo) ListNearExpiry(ctx context.Context, now, until time.Time) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.WithContext(ctx).Preload("Medicament").
		Where("quantite_actuelle > 0 AND date_expiration > ? AND date_expiration <= ?", now, until).
		Order("date_expiration ASC").Order("id ASC").
		Find(&lots).Error
	return lots, err
}

func (r *lotRepo) ListByMedicament(ctx context.Context, medicamentID uuid.UUID) ([]model.Lot, error) {
	var lots []model.Lot
	err := r.db.WithContext(ctx).Where("medicament_id = ?", medicamentID).
		Order("date_expiration ASC").Order("id ASC").
		Find(&lots).Error
	return lots, err
}

// DecrementTx subtracts qty only if the lot still holds at least qty. The
// guard holds even if the caller's row lock was not honoured by the dialect.
func (r *lotRepo) DecrementTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, qty int) error {
	res := tx.WithContext(ctx).Model(&model.Lot{}).
		Where("id = ? AND quantite_actuelle >= ?", lotID, qty).
		Update("quantite_actuelle", gorm.Expr("quantite_actuelle - ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrErr(ctx, tx, lotID, ErrInsufficientLotQuantity)
	}
	return nil
}

// IncrementTx adds qty, refusing to go past quantite_initiale plus the
// recounted units.
func (r *lotRepo) IncrementTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, qty int) error {
	res := tx.WithContext(ctx).Model(&model.Lot{}).
		Where("id = ? AND quantite_actuelle + ? <= quantite_initiale + quantite_ajoutee", lotID, qty).
		Update("quantite_actuelle", gorm.Expr("quantite_actuelle + ?", qty))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrErr(ctx, tx, lotID, ErrLotOverflow)
	}
	return nil
}

// AddRecountedTx adds qty to both the current and the recounted quantity. The
// current quantity alone may not pass quantite_initiale.
func (r *lotRepo) AddRecountedTx(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, qty int) error {
	res := tx.WithContext(ctx).Model(&model.Lot{}).
		Where("id = ? AND quantite_actuelle + ? <= quantite_initiale", lotID, qty).
		Updates(map[string]any{
			"quantite_actuelle": gorm.Expr("quantite_actuelle + ?", qty),
			"quantite_ajoutee":  gorm.Expr("quantite_ajoutee + ?", qty),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return r.missOrErr(ctx, tx, lotID, ErrLotOverflow)
	}
	return nil
}

// missOrErr tells a missing lot apart from a failed guard.
func (r *lotRepo) missOrErr(ctx context.Context, tx *gorm.DB, lotID uuid.UUID, guard error) error {
	var n int64
	if err := tx.WithContext(ctx).Model(&model.Lot{}).Where("id = ?", lotID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return gorm.ErrRecordNotFound
	}
	return guard
}
