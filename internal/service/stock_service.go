package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/repository"
)

// StockService covers lot reception, manual adjustments, alerts and the
// ledger listing.
type StockService interface {
	RecevoirLot(ctx context.Context, acteur model.Acteur, req dto.ReceptionLotRequest) (*dto.LotResponse, error)
	AjusterLot(ctx context.Context, acteur model.Acteur, lotID uuid.UUID, req dto.AjustementLotRequest) (*dto.LotResponse, error)
	Alertes(ctx context.Context) (*dto.AlertesStockResponse, error)
	ListerMouvements(ctx context.Context, filter dto.MouvementFilter) (*dto.MouvementListResponse, error)
	// ListerLots returns every lot of a medicament, empty and expired ones
	// included, in FEFO order.
	ListerLots(ctx context.Context, medicamentID uuid.UUID) ([]dto.LotResponse, error)
}

type stockService struct {
	medicaments repository.MedicamentRepository
	lots        repository.LotRepository
	mouvements  repository.MouvementStockRepository
	sink        audit.Sink
	joursAlerte int
	now         func() time.Time
}

type StockDeps struct {
	Medicaments repository.MedicamentRepository
	Lots        repository.LotRepository
	Mouvements  repository.MouvementStockRepository
	Sink        audit.Sink
	// JoursAlerteExpiration defaults to 30.
	JoursAlerteExpiration int
	Now                   func() time.Time
}

func NewStockService(deps StockDeps) StockService {
	s := &stockService{
		medicaments: deps.Medicaments,
		lots:        deps.Lots,
		mouvements:  deps.Mouvements,
		sink:        deps.Sink,
		joursAlerte: deps.JoursAlerteExpiration,
		now:         deps.Now,
	}
	if s.joursAlerte <= 0 {
		s.joursAlerte = 30
	}
	if s.now == nil {
		s.now = utcNow
	}
	return s
}

// ── RecevoirLot ──────────────────────────────────────────────────────────────

func (s *stockService) RecevoirLot(ctx context.Context, acteur model.Acteur, req dto.ReceptionLotRequest) (*dto.LotResponse, error) {
	medID, err := parseUUID("medicament_id", req.MedicamentID)
	if err != nil {
		return nil, err
	}
	fournisseurID, err := parseUUIDPtr("fournisseur_id", req.FournisseurID)
	if err != nil {
		return nil, err
	}
	if req.NumeroLot == "" {
		return nil, invalide("numero_lot", "requis")
	}
	if req.Quantite <= 0 {
		return nil, invalide("quantite", "doit être positive")
	}
	if req.PrixAchat.IsNegative() {
		return nil, invalide("prix_achat", "ne peut pas être négatif")
	}
	expiration, err := parseDate("date_expiration", req.DateExpiration)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if !expiration.After(debutJour(now)) {
		return nil, invalide("date_expiration", "doit être postérieure à aujourd'hui")
	}
	var fabrication *time.Time
	if req.DateFabrication != nil && *req.DateFabrication != "" {
		f, err := parseDate("date_fabrication", *req.DateFabrication)
		if err != nil {
			return nil, err
		}
		if !f.Before(expiration) {
			return nil, invalide("date_fabrication", "doit précéder la date d'expiration")
		}
		fabrication = &f
	}

	med, err := s.medicaments.FindByID(ctx, medID)
	if err != nil {
		return nil, notFound(err, "medicament", medID)
	}

	lot := &model.Lot{
		MedicamentID:     med.ID,
		FournisseurID:    fournisseurID,
		NumeroLot:        req.NumeroLot,
		QuantiteInitiale: req.Quantite,
		QuantiteActuelle: req.Quantite,
		PrixAchat:        req.PrixAchat,
		DateFabrication:  fabrication,
		DateExpiration:   expiration,
		CreatedAt:        now,
	}
	err = runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		if err := s.lots.CreateTx(ctx, tx, lot); err != nil {
			return fmt.Errorf("création lot: %w", err)
		}
		return s.mouvements.AppendTx(ctx, tx, &model.MouvementStock{
			MedicamentID:  med.ID,
			LotID:         &lot.ID,
			Quantite:      lot.QuantiteInitiale,
			Type:          model.MouvementReception,
			Motif:         "Réception lot " + lot.NumeroLot,
			UtilisateurID: acteur.UtilisateurID,
			CreatedAt:     now,
		})
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("lot_id", lot.ID.String()).
		Str("medicament", med.Nom).
		Int("quantite", lot.QuantiteInitiale).
		Msg("lot reçu")
	publier(ctx, s.sink, evenementCreation("lot", lot.ID, acteur, map[string]any{
		"medicament_id":     lot.MedicamentID,
		"numero_lot":        lot.NumeroLot,
		"quantite_initiale": lot.QuantiteInitiale,
		"date_expiration":   lot.DateExpiration.Format(dateLayout),
	}, now))

	lot.Medicament = med
	resp := lotToResponse(lot)
	return &resp, nil
}

// ── AjusterLot ───────────────────────────────────────────────────────────────
// Inventory corrections. A negative delta cannot take more than the lot
// holds; a positive one cannot take it past its initial quantity.

func (s *stockService) AjusterLot(ctx context.Context, acteur model.Acteur, lotID uuid.UUID, req dto.AjustementLotRequest) (*dto.LotResponse, error) {
	if req.Delta == 0 {
		return nil, invalide("delta", "ne peut pas être nul")
	}
	if req.Motif == "" {
		return nil, invalide("motif", "requis")
	}

	var (
		lot   *model.Lot
		avant int
	)
	err := runTx(ctx, s.lots.DB(), func(tx *gorm.DB) error {
		l, err := s.lots.FindByIDForUpdateTx(ctx, tx, lotID)
		if err != nil {
			return notFound(err, "lot", lotID)
		}
		avant = l.QuantiteActuelle

		if req.Delta < 0 {
			err = s.lots.DecrementTx(ctx, tx, lotID, -req.Delta)
			if errors.Is(err, repository.ErrInsufficientLotQuantity) {
				return &InsufficientStockError{
					MedicamentID: l.MedicamentID, Nom: l.NumeroLot, Disponible: l.QuantiteActuelle, Demande: -req.Delta,
				}
			}
		} else {
			err = s.lots.AddRecountedTx(ctx, tx, lotID, req.Delta)
		}
		if err != nil {
			return fmt.Errorf("ajustement lot %s: %w", lotID, err)
		}

		if err := s.mouvements.AppendTx(ctx, tx, &model.MouvementStock{
			MedicamentID:  l.MedicamentID,
			LotID:         &l.ID,
			Quantite:      req.Delta,
			Type:          model.MouvementAjustement,
			Motif:         req.Motif,
			UtilisateurID: acteur.UtilisateurID,
			CreatedAt:     s.now(),
		}); err != nil {
			return err
		}
		l.QuantiteActuelle += req.Delta
		if req.Delta > 0 {
			l.QuantiteAjoutee += req.Delta
		}
		lot = l
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("lot_id", lotID.String()).Int("delta", req.Delta).Str("motif", req.Motif).Msg("lot ajusté")
	publier(ctx, s.sink, evenementsLots([]lotModifie{{
		LotID: lot.ID, MedicamentID: lot.MedicamentID, Avant: avant, Apres: lot.QuantiteActuelle,
	}}, acteur, s.now())...)

	resp := lotToResponse(lot)
	return &resp, nil
}

func (s *stockService) ListerLots(ctx context.Context, medicamentID uuid.UUID) ([]dto.LotResponse, error) {
	med, err := s.medicaments.FindByID(ctx, medicamentID)
	if err != nil {
		return nil, notFound(err, "medicament", medicamentID)
	}
	lots, err := s.lots.ListByMedicament(ctx, med.ID)
	if err != nil {
		return nil, err
	}
	out := make([]dto.LotResponse, 0, len(lots))
	for i := range lots {
		lots[i].Medicament = med
		out = append(out, lotToResponse(&lots[i]))
	}
	return out, nil
}

// ── Alertes ──────────────────────────────────────────────────────────────────

func (s *stockService) Alertes(ctx context.Context) (*dto.AlertesStockResponse, error) {
	now := s.now()
	meds, err := s.medicaments.ListActifs(ctx)
	if err != nil {
		return nil, err
	}
	stocks, err := s.lots.AvailableByMedicament(ctx, now)
	if err != nil {
		return nil, err
	}

	resp := &dto.AlertesStockResponse{
		SousSeuil:         []dto.MedicamentSousSeuil{},
		ProchesExpiration: []dto.LotResponse{},
	}
	for i := range meds {
		stock := stocks[meds[i].ID]
		if stock <= meds[i].SeuilAlerte {
			resp.SousSeuil = append(resp.SousSeuil, dto.MedicamentSousSeuil{
				Medicament:      medicamentToResponse(&meds[i]),
				StockDisponible: stock,
			})
		}
	}

	lots, err := s.lots.ListNearExpiry(ctx, now, now.AddDate(0, 0, s.joursAlerte))
	if err != nil {
		return nil, err
	}
	for i := range lots {
		resp.ProchesExpiration = append(resp.ProchesExpiration, lotToResponse(&lots[i]))
	}
	return resp, nil
}

func (s *stockService) ListerMouvements(ctx context.Context, filter dto.MouvementFilter) (*dto.MouvementListResponse, error) {
	mouvements, total, err := s.mouvements.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 || limit > 500 {
		limit = 100
	}
	resp := &dto.MouvementListResponse{
		Data:  make([]dto.MouvementResponse, 0, len(mouvements)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range mouvements {
		resp.Data = append(resp.Data, mouvementToResponse(&mouvements[i]))
	}
	return resp, nil
}
