package service_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/repository"
	"github.com/kananavy/pharmacie/internal/service"
	"github.com/kananavy/pharmacie/internal/testutil"
)

// ── Test environment ─────────────────────────────────────────────────────────

type env struct {
	db        *gorm.DB
	clock     *testutil.Clock
	rec       *audit.Recorder
	ventes    service.VenteService
	commandes service.CommandeService
	stock     service.StockService
	caisse    service.CaisseService
	ledger    repository.MouvementStockRepository
}

// newEnv wires every service on db with the clock set to 2025-10-01 10:00 UTC.
func newEnv(t *testing.T, db *gorm.DB) *env {
	t.Helper()
	clock := testutil.NewClock(time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC))
	rec := &audit.Recorder{}

	meds := repository.NewMedicamentRepository(db)
	lots := repository.NewLotRepository(db)
	ledger := repository.NewMouvementStockRepository(db)
	ventes := repository.NewVenteRepository(db)
	deps := service.VenteDeps{
		Medicaments: meds,
		Lots:        lots,
		Mouvements:  ledger,
		Ventes:      ventes,
		Ordonnances: repository.NewOrdonnanceRepository(db),
		Sink:        rec,
		Now:         clock.Now,
	}
	return &env{
		db:        db,
		clock:     clock,
		rec:       rec,
		ventes:    service.NewVenteService(deps),
		commandes: service.NewCommandeService(repository.NewCommandeRepository(db), deps),
		stock: service.NewStockService(service.StockDeps{
			Medicaments: meds,
			Lots:        lots,
			Mouvements:  ledger,
			Sink:        rec,
			Now:         clock.Now,
		}),
		caisse: service.NewCaisseService(repository.NewClotureRepository(db), ventes, rec, clock.Now),
		ledger: ledger,
	}
}

func caissier() model.Acteur {
	return model.Acteur{UtilisateurID: uuid.New(), Rol: "caissier"}
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

func count(t *testing.T, db *gorm.DB, m interface{}, where ...interface{}) int64 {
	t.Helper()
	var n int64
	q := db.Model(m)
	if len(where) > 0 {
		q = q.Where(where[0], where[1:]...)
	}
	require.NoError(t, q.Count(&n).Error)
	return n
}
