package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/repository"
)

// toleranceTheorique is the largest accepted gap between the client's
// theoretical total and the recomputed one.
var toleranceTheorique = decimal.RequireFromString("0.01")

// CaisseService reconciles a cashier's register against the committed sales
// since their previous closing.
type CaisseService interface {
	CaisseCourante(ctx context.Context, acteur model.Acteur) (*dto.CaisseCouranteResponse, error)
	Cloturer(ctx context.Context, acteur model.Acteur, req dto.CloturerCaisseRequest) (*dto.ClotureResponse, error)
	Historique(ctx context.Context, acteur model.Acteur, limit int) ([]dto.ClotureResponse, error)
}

type caisseService struct {
	clotures repository.ClotureRepository
	ventes   repository.VenteRepository
	sink     audit.Sink
	now      func() time.Time
}

func NewCaisseService(clotures repository.ClotureRepository, ventes repository.VenteRepository, sink audit.Sink, now func() time.Time) CaisseService {
	if now == nil {
		now = utcNow
	}
	return &caisseService{clotures: clotures, ventes: ventes, sink: sink, now: now}
}

func (s *caisseService) CaisseCourante(ctx context.Context, acteur model.Acteur) (*dto.CaisseCouranteResponse, error) {
	derniere, err := s.clotures.LastForCaissierTx(ctx, nil, acteur.UtilisateurID)
	if err != nil {
		return nil, err
	}
	var depuis *time.Time
	resp := &dto.CaisseCouranteResponse{CaissierID: acteur.UtilisateurID.String()}
	if derniere != nil {
		depuis = &derniere.DateCloture
		h := horodatage(derniere.DateCloture)
		resp.DerniereCloture = &h
	}
	if resp.TotalTheorique, err = s.ventes.SumTotalsSinceTx(ctx, nil, acteur.UtilisateurID, depuis, s.now()); err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *caisseService) Historique(ctx context.Context, acteur model.Acteur, limit int) ([]dto.ClotureResponse, error) {
	clotures, err := s.clotures.ListForCaissier(ctx, acteur.UtilisateurID, limit)
	if err != nil {
		return nil, err
	}
	out := make([]dto.ClotureResponse, 0, len(clotures))
	for i := range clotures {
		out = append(out, clotureToResponse(&clotures[i]))
	}
	return out, nil
}

// ── Cloturer ─────────────────────────────────────────────────────────────────
// The theoretical total is always recomputed here. A client-supplied figure
// is only compared against it, never stored.

func (s *caisseService) Cloturer(ctx context.Context, acteur model.Acteur, req dto.CloturerCaisseRequest) (*dto.ClotureResponse, error) {
	if req.TotalReel.IsNegative() {
		return nil, invalide("total_reel", "ne peut pas être négatif")
	}

	var cloture *model.ClotureCaisse
	err := runTx(ctx, s.clotures.DB(), func(tx *gorm.DB) error {
		now := s.now()
		derniere, err := s.clotures.LastForCaissierTx(ctx, tx, acteur.UtilisateurID)
		if err != nil {
			return fmt.Errorf("dernière clôture: %w", err)
		}
		var depuis *time.Time
		if derniere != nil {
			depuis = &derniere.DateCloture
		}

		theorique, err := s.ventes.SumTotalsSinceTx(ctx, tx, acteur.UtilisateurID, depuis, now)
		if err != nil {
			return fmt.Errorf("total théorique: %w", err)
		}
		if req.TotalTheorique != nil && req.TotalTheorique.Sub(theorique).Abs().GreaterThan(toleranceTheorique) {
			return &TheoreticalMismatchError{Fourni: *req.TotalTheorique, Recalcule: theorique}
		}

		ouverture := now
		if depuis != nil {
			ouverture = *depuis
		} else {
			premiere, err := s.ventes.FirstSaleSinceTx(ctx, tx, acteur.UtilisateurID, nil, now)
			if err != nil {
				return err
			}
			if premiere != nil {
				ouverture = *premiere
			}
		}

		reel := req.TotalReel.Round(2)
		cloture = &model.ClotureCaisse{
			CaissierID:     acteur.UtilisateurID,
			DateOuverture:  ouverture,
			DateCloture:    now,
			TotalTheorique: theorique,
			TotalReel:      reel,
			Ecart:          reel.Sub(theorique),
			Commentaires:   req.Commentaires,
			CreatedAt:      now,
		}
		return s.clotures.CreateTx(ctx, tx, cloture)
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("caissier_id", acteur.UtilisateurID.String()).
		Str("theorique", cloture.TotalTheorique.StringFixed(2)).
		Str("reel", cloture.TotalReel.StringFixed(2)).
		Str("ecart", cloture.Ecart.StringFixed(2)).
		Msg("caisse clôturée")
	publier(ctx, s.sink, evenementCreation("cloture_caisse", cloture.ID, acteur, map[string]any{
		"date_ouverture":  cloture.DateOuverture,
		"date_cloture":    cloture.DateCloture,
		"total_theorique": cloture.TotalTheorique.StringFixed(2),
		"total_reel":      cloture.TotalReel.StringFixed(2),
		"ecart":           cloture.Ecart.StringFixed(2),
	}, cloture.CreatedAt))

	resp := clotureToResponse(cloture)
	return &resp, nil
}
