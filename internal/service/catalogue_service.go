package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/infra"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/repository"
)

// CatalogueService serves catalog lookups. Single-medicament reads go through
// a Redis cache guarded by a circuit breaker; with Redis down or disabled,
// every read hits the database. The sale engine never reads through the cache.
type CatalogueService interface {
	Creer(ctx context.Context, acteur model.Acteur, req dto.CreerMedicamentRequest) (*dto.MedicamentResponse, error)
	Obtenir(ctx context.Context, id uuid.UUID) (*dto.MedicamentResponse, error)
	Lister(ctx context.Context, filter dto.MedicamentFilter) (*dto.MedicamentListResponse, error)
}

type catalogueService struct {
	repo repository.MedicamentRepository
	lots repository.LotRepository
	rdb  *redis.Client
	cb   *infra.CircuitBreaker
	ttl  time.Duration
	sink audit.Sink
	now  func() time.Time
}

func NewCatalogueService(repo repository.MedicamentRepository, lots repository.LotRepository, rdb *redis.Client, ttl time.Duration, sink audit.Sink) CatalogueService {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &catalogueService{
		repo: repo,
		lots: lots,
		rdb:  rdb,
		cb:   infra.NewCircuitBreaker(infra.CircuitBreakerConfig{FailureThreshold: 3, OpenTimeout: 30 * time.Second}),
		ttl:  ttl,
		sink: sink,
		now:  utcNow,
	}
}

func cleCache(id uuid.UUID) string { return "medicament:" + id.String() }

func (s *catalogueService) Creer(ctx context.Context, acteur model.Acteur, req dto.CreerMedicamentRequest) (*dto.MedicamentResponse, error) {
	nom, code := strings.TrimSpace(req.Nom), strings.TrimSpace(req.Code)
	switch {
	case nom == "":
		return nil, invalide("nom", "requis")
	case code == "":
		return nil, invalide("code", "requis")
	case !req.Prix.IsPositive():
		return nil, invalide("prix", "doit être positif")
	case req.PrixAchat.IsNegative():
		return nil, invalide("prix_achat", "ne peut pas être négatif")
	case req.SeuilAlerte < 0 || req.MaxStock < 0:
		return nil, invalide("seuil_alerte", "ne peut pas être négatif")
	}
	if _, err := s.repo.FindByCode(ctx, code); err == nil {
		return nil, invalide("code", "le code %s existe déjà", code)
	}

	now := s.now()
	m := &model.Medicament{
		Nom:               nom,
		Code:              code,
		Categorie:         req.Categorie,
		Prix:              req.Prix.Round(2),
		PrixAchat:         req.PrixAchat.Round(2),
		OrdonnanceRequise: req.OrdonnanceRequise,
		SeuilAlerte:       req.SeuilAlerte,
		MaxStock:          req.MaxStock,
		Actif:             true,
		CreatedAt:         now,
	}
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("création médicament: %w", err)
	}

	log.Info().Str("medicament_id", m.ID.String()).Str("code", m.Code).Msg("médicament créé")
	publier(ctx, s.sink, evenementCreation("medicament", m.ID, acteur, map[string]any{
		"nom":                m.Nom,
		"code":               m.Code,
		"prix":               m.Prix.StringFixed(2),
		"ordonnance_requise": m.OrdonnanceRequise,
	}, now))

	resp := medicamentToResponse(m)
	return &resp, nil
}

// Obtenir returns the medicament with its live allocatable stock. Only the
// catalog part is cached.
func (s *catalogueService) Obtenir(ctx context.Context, id uuid.UUID) (*dto.MedicamentResponse, error) {
	m, err := s.depuisCache(ctx, id)
	if err != nil {
		return nil, err
	}
	resp := medicamentToResponse(m)
	stock, err := s.lots.AvailableQuantity(ctx, id, s.now())
	if err != nil {
		return nil, err
	}
	resp.StockDisponible = &stock
	return &resp, nil
}

func (s *catalogueService) depuisCache(ctx context.Context, id uuid.UUID) (*model.Medicament, error) {
	if s.rdb != nil {
		var m model.Medicament
		err := s.cb.Execute(func() error {
			raw, err := s.rdb.Get(ctx, cleCache(id)).Bytes()
			if errors.Is(err, redis.Nil) {
				return nil
			}
			if err != nil {
				return err
			}
			return json.Unmarshal(raw, &m)
		})
		if err == nil && m.ID != uuid.Nil {
			return &m, nil
		}
		if err != nil && !errors.Is(err, infra.ErrCircuitOpen) {
			log.Warn().Err(err).Str("medicament_id", id.String()).Msg("cache catalogue indisponible")
		}
	}

	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "medicament", id)
	}
	if s.rdb != nil {
		if raw, err := json.Marshal(m); err == nil {
			_ = s.cb.Execute(func() error { return s.rdb.Set(ctx, cleCache(id), raw, s.ttl).Err() })
		}
	}
	return m, nil
}

func (s *catalogueService) Lister(ctx context.Context, filter dto.MedicamentFilter) (*dto.MedicamentListResponse, error) {
	meds, total, err := s.repo.List(ctx, filter)
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
	resp := &dto.MedicamentListResponse{
		Data:  make([]dto.MedicamentResponse, 0, len(meds)),
		Total: total,
		Page:  page,
		Limit: limit,
	}
	for i := range meds {
		resp.Data = append(resp.Data, medicamentToResponse(&meds[i]))
	}
	return resp, nil
}
