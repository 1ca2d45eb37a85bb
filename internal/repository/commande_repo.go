package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kananavy/pharmacie/internal/model"
)

type CommandeRepository interface {
	CreateTx(ctx context.Context, tx *gorm.DB, c *model.Commande) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Commande, error)
	FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Commande, error)
	ListPending(ctx context.Context) ([]model.Commande, error)
	// LastTicketTx returns the highest ticket number starting with prefix, or
	// "" when the day has none yet.
	LastTicketTx(ctx context.Context, tx *gorm.DB, prefix string) (string, error)
	// NextTicketTx draws the next number from the day's counter, holding the
	// counter row locked until tx ends. A missing counter starts at plancher.
	NextTicketTx(ctx context.Context, tx *gorm.DB, jour string, plancher int) (int, error)
	// MarkPaidTx flips a pending order to paid and links the sale.
	MarkPaidTx(ctx context.Context, tx *gorm.DB, id, venteID uuid.UUID) error
	MarkCancelledTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error

	DB() *gorm.DB
}

type commandeRepo struct{ db *gorm.DB }

func NewCommandeRepository(db *gorm.DB) CommandeRepository { return &commandeRepo{db: db} }

func (r *commandeRepo) DB() *gorm.DB { return r.db }

func (r *commandeRepo) CreateTx(ctx context.Context, tx *gorm.DB, c *model.Commande) error {
	return conn(r.db, tx).WithContext(ctx).Create(c).Error
}

func lignesOrdonnees(db *gorm.DB) *gorm.DB { return db.Order("rang ASC") }

func (r *commandeRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Commande, error) {
	var c model.Commande
	err := r.db.WithContext(ctx).
		Preload("Lignes", lignesOrdonnees).
		Preload("Lignes.Medicament").
		First(&c, "id = ?", id).Error
	return &c, err
}

func (r *commandeRepo) FindByIDForUpdateTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*model.Commande, error) {
	var c model.Commande
	if err := forUpdate(tx.WithContext(ctx)).First(&c, "id = ?", id).Error; err != nil {
		return &c, err
	}
	err := tx.WithContext(ctx).Where("commande_id = ?", id).Order("rang ASC").Find(&c.Lignes).Error
	return &c, err
}

func (r *commandeRepo) ListPending(ctx context.Context) ([]model.Commande, error) {
	var commandes []model.Commande
	err := r.db.WithContext(ctx).
		Preload("Lignes", lignesOrdonnees).
		Preload("Lignes.Medicament").
		Where("statut = ?", model.CommandePending).
		Order("created_at ASC").
		Find(&commandes).Error
	return commandes, err
}

func (r *commandeRepo) LastTicketTx(ctx context.Context, tx *gorm.DB, prefix string) (string, error) {
	var tickets []string
	err := conn(r.db, tx).WithContext(ctx).Model(&model.Commande{}).
		Where("numero_ticket LIKE ?", prefix+"%").
		Order("numero_ticket DESC").Limit(1).
		Pluck("numero_ticket", &tickets).Error
	if err != nil || len(tickets) == 0 {
		return "", err
	}
	return tickets[0], nil
}

func (r *commandeRepo) NextTicketTx(ctx context.Context, tx *gorm.DB, jour string, plancher int) (int, error) {
	q := tx.WithContext(ctx)
	// Concurrent first tickets of the day: one insert wins, the others wait
	// for it and do nothing.
	if err := q.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.CompteurTicket{Jour: jour, Dernier: plancher}).Error; err != nil {
		return 0, err
	}
	var c model.CompteurTicket
	if err := forUpdate(q).First(&c, "jour = ?", jour).Error; err != nil {
		return 0, err
	}
	c.Dernier++
	if err := q.Model(&model.CompteurTicket{}).Where("jour = ?", jour).
		Update("dernier", c.Dernier).Error; err != nil {
		return 0, err
	}
	return c.Dernier, nil
}

func (r *commandeRepo) MarkPaidTx(ctx context.Context, tx *gorm.DB, id, venteID uuid.UUID) error {
	return r.transition(ctx, tx, id, map[string]interface{}{
		"statut":   model.CommandePaid,
		"vente_id": venteID,
	})
}

func (r *commandeRepo) MarkCancelledTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	return r.transition(ctx, tx, id, map[string]interface{}{"statut": model.CommandeCancelled})
}

// transition only ever leaves "pending".
func (r *commandeRepo) transition(ctx context.Context, tx *gorm.DB, id uuid.UUID, updates map[string]interface{}) error {
	res := tx.WithContext(ctx).Model(&model.Commande{}).
		Where("id = ? AND statut = ?", id, model.CommandePending).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
