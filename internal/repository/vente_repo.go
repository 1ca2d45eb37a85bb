package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/model"
)

type VenteRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, v *model.Vente) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Vente, error)
	// FindByIDForUpdateTx locks the sale row and loads its lines.
	FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Vente, error)
	// UpdateStatutTx moves the sale from one status to another, failing with
	// gorm.ErrRecordNotFound when the stored status is no longer from.
	UpdateStatutTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to model.StatutVente, motif *string) error
	// AnnulerTx moves the sale from `from` to cancelled and records who
	// cancelled it and when.
	AnnulerTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, from model.StatutVente, par uuid.UUID, at time.Time, motif string) error
	// QuantitesRetourneesTx returns, per sold line of the sale, how many units
	// were already taken back by return transactions.
	QuantitesRetourneesTx(ctx context.Context, tx *gorm.DB, venteID uuid.UUID) (map[uuid.UUID]int, error)
	ListRetours(ctx context.Context, venteID uuid.UUID) ([]model.Vente, error)

	// SumTotalsSinceTx is the cashier's register balance over (since, until]:
	// every sale they created in the window, whatever its status, minus the
	// totals of sales they cancelled in the window. since nil means from the
	// beginning.
	SumTotalsSinceTx(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID, since *time.Time, until time.Time) (decimal.Decimal, error)
	FirstSaleSinceTx(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID, since *time.Time, until time.Time) (*time.Time, error)

	DB() *gorm.DB
}

type venteRepo struct{ db *gorm.DB }

func NewVenteRepository(db *gorm.DB) VenteRepository { return &venteRepo{db: db} }

func (r *venteRepo) DB() *gorm.DB { return r.db }

func (r *venteRepo) CreateTx(ctx context.Context, tx *gorm.DB, v *model.Vente) error {
	return conn(r.db, tx).WithContext(ctx).Create(v).Error
}

func (r *venteRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Vente, error) {
	var v model.Vente
	err := r.db.WithContext(ctx).
		Preload("Lignes", func(db *gorm.DB) *gorm.DB { return db.Order("rang ASC") }).
		Preload("Lignes.Medicament").
		Preload("Ordonnance").
		First(&v, "id = ?", id).Error
	return &v, err
}

func (r *venteRepo) FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Vente, error) {
	var v model.Vente
	if err := forUpdate(tx.WithContext(ctx)).First(&v, "id = ?", id).Error; err != nil {
		return &v, err
	}
	err := tx.WithContext(ctx).Where("vente_id = ?", id).Order("rang ASC").Find(&v.Lignes).Error
	return &v, err
}

func (r *venteRepo) UpdateStatutTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, from, to model.StatutVente, motif *string) error {
	updates := map[string]interface{}{"statut": to}
	if motif != nil {
		updates["motif"] = *motif
	}
	res := tx.WithContext(ctx).Model(&model.Vente{}).
		Where("id = ? AND statut = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *venteRepo) AnnulerTx(ctx context.Context, tx *gorm.DB, id uuid.UUID, from model.StatutVente, par uuid.UUID, at time.Time, motif string) error {
	res := tx.WithContext(ctx).Model(&model.Vente{}).
		Where("id = ? AND statut = ?", id, from).
		Updates(map[string]interface{}{
			"statut":      model.VenteCancelled,
			"motif":       motif,
			"annulee_le":  at,
			"annulee_par": par,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *venteRepo) QuantitesRetourneesTx(ctx context.Context, tx *gorm.DB, venteID uuid.UUID) (map[uuid.UUID]int, error) {
	var rows []struct {
		LigneOrigineID uuid.UUID
		Quantite       int
	}
	err := conn(r.db, tx).WithContext(ctx).
		Table("details_vente AS d").
		Select("d.ligne_origine_id, -SUM(d.quantite) AS quantite").
		Joins("JOIN ventes v ON v.id = d.vente_id").
		Where("v.vente_origine_id = ? AND d.ligne_origine_id IS NOT NULL", venteID).
		Group("d.ligne_origine_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		out[row.LigneOrigineID] = row.Quantite
	}
	return out, nil
}

func (r *venteRepo) ListRetours(ctx context.Context, venteID uuid.UUID) ([]model.Vente, error) {
	var retours []model.Vente
	err := r.db.WithContext(ctx).
		Preload("Lignes", func(db *gorm.DB) *gorm.DB { return db.Order("rang ASC") }).
		Where("vente_origine_id = ?", venteID).
		Order("created_at ASC").
		Find(&retours).Error
	return retours, err
}

// fenetre selects the sales a cashier rang up in (since, until].
func (r *venteRepo) fenetre(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID, since *time.Time, until time.Time) *gorm.DB {
	q := conn(r.db, tx).WithContext(ctx).Model(&model.Vente{}).
		Where("caissier_id = ? AND created_at <= ?", caissierID, until)
	if since != nil {
		q = q.Where("created_at > ?", *since)
	}
	return q
}

// annulations selects the sales a cashier cancelled in (since, until].
func (r *venteRepo) annulations(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID, since *time.Time, until time.Time) *gorm.DB {
	q := conn(r.db, tx).WithContext(ctx).Model(&model.Vente{}).
		Where("annulee_par = ? AND statut = ? AND annulee_le <= ?", caissierID, model.VenteCancelled, until)
	if since != nil {
		q = q.Where("annulee_le > ?", *since)
	}
	return q
}

func sommeTotaux(q *gorm.DB) (decimal.Decimal, error) {
	var row struct{ Total decimal.NullDecimal }
	if err := q.Select("SUM(total) AS total").Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	if !row.Total.Valid {
		return decimal.Zero, nil
	}
	return row.Total.Decimal, nil
}

func (r *venteRepo) SumTotalsSinceTx(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID, since *time.Time, until time.Time) (decimal.Decimal, error) {
	encaisse, err := sommeTotaux(r.fenetre(ctx, tx, caissierID, since, until))
	if err != nil {
		return decimal.Zero, err
	}
	rembourse, err := sommeTotaux(r.annulations(ctx, tx, caissierID, since, until))
	if err != nil {
		return decimal.Zero, err
	}
	return encaisse.Sub(rembourse).Round(2), nil
}

func (r *venteRepo) FirstSaleSinceTx(ctx context.Context, tx *gorm.DB, caissierID uuid.UUID, since *time.Time, until time.Time) (*time.Time, error) {
	q := r.fenetre(ctx, tx, caissierID, since, until)
	var v model.Vente
	err := q.Select("id, created_at").Order("created_at ASC").Limit(1).Find(&v).Error
	if err != nil || v.ID == uuid.Nil {
		return nil, err
	}
	at := v.CreatedAt
	return &at, nil
}
