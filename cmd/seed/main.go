// Command seed loads a small demo catalog with one lot per medicament.
// Existing codes are left untouched, so it can be run repeatedly.
// Usage: go run ./cmd/seed
package main

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/config"
	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/infra"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/repository"
	"github.com/kananavy/pharmacie/internal/service"
)

type article struct {
	nom, code, categorie string
	prix, prixAchat      string
	ordonnance           bool
	seuil, quantite      int
	moisAvantExpiration  int
}

var catalogue = []article{
	{"Paracétamol 500mg", "PARA500", "antalgique", "1500", "900", false, 20, 120, 18},
	{"Amoxicilline 1g", "AMOX1G", "antibiotique", "4500", "2800", true, 10, 40, 12},
	{"Ibuprofène 400mg", "IBU400", "anti-inflammatoire", "2000", "1100", false, 15, 60, 24},
	{"Smecta", "SMECTA", "digestif", "3500", "2000", false, 5, 25, 9},
	{"Ventoline 100µg", "VENTO100", "respiratoire", "6500", "4200", true, 3, 8, 6},
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to postgres")
	}

	ctx := context.Background()
	medicaments := repository.NewMedicamentRepository(db)
	lots := repository.NewLotRepository(db)
	catalogueSvc := service.NewCatalogueService(medicaments, lots, nil, 0, audit.LogSink{})
	stockSvc := service.NewStockService(service.StockDeps{
		Medicaments: medicaments,
		Lots:        lots,
		Mouvements:  repository.NewMouvementStockRepository(db),
		Sink:        audit.LogSink{},
	})
	admin := model.Acteur{UtilisateurID: uuid.New(), Rol: "admin"}

	for _, a := range catalogue {
		if _, err := medicaments.FindByCode(ctx, a.code); err == nil {
			log.Info().Str("code", a.code).Msg("seed: already present")
			continue
		} else if !errors.Is(err, gorm.ErrRecordNotFound) {
			log.Fatal().Err(err).Str("code", a.code).Msg("seed: lookup failed")
		}

		med, err := catalogueSvc.Creer(ctx, admin, dto.CreerMedicamentRequest{
			Nom:               a.nom,
			Code:              a.code,
			Categorie:         a.categorie,
			Prix:              decimal.RequireFromString(a.prix),
			PrixAchat:         decimal.RequireFromString(a.prixAchat),
			OrdonnanceRequise: a.ordonnance,
			SeuilAlerte:       a.seuil,
			MaxStock:          a.quantite * 3,
		})
		if err != nil {
			log.Fatal().Err(err).Str("code", a.code).Msg("seed: create medicament")
		}

		expiration := time.Now().UTC().AddDate(0, a.moisAvantExpiration, 0).Format("2006-01-02")
		_, err = stockSvc.RecevoirLot(ctx, admin, dto.ReceptionLotRequest{
			MedicamentID:   med.ID,
			NumeroLot:      "SEED-" + a.code,
			Quantite:       a.quantite,
			PrixAchat:      decimal.RequireFromString(a.prixAchat),
			DateExpiration: expiration,
		})
		if err != nil {
			log.Fatal().Err(err).Str("code", a.code).Msg("seed: receive lot")
		}
		log.Info().Str("code", a.code).Int("quantite", a.quantite).Msg("seed: created")
	}
}
