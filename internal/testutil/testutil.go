// Package testutil opens throwaway SQLite databases migrated with the
// production schema, plus fixtures shared by the package tests.
package testutil

import (
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/kananavy/pharmacie/internal/infra"
	"github.com/kananavy/pharmacie/internal/model"
)

func open(t testing.TB, dsn string) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:  logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time { return time.Now().UTC() },
	})
	require.NoError(t, err)
	require.NoError(t, infra.Migrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// OpenDB returns an in-memory database private to the test. A single
// connection is used, so transactions never contend.
func OpenDB(t testing.TB) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name()) + "_" + uuid.NewString()
	db := open(t, "file:"+name+"?mode=memory&cache=shared")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return db
}

// OpenFileDB returns a WAL database file whose transactions take the write
// lock on BEGIN, which serializes concurrent writers the way row locks do on
// Postgres.
func OpenFileDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pharmacie.db")
	return open(t, path+"?_busy_timeout=10000&_txlock=immediate&_journal_mode=WAL")
}

// Clock is a settable time source.
type Clock struct {
	mu sync.Mutex
	t  time.Time
}

func NewClock(t time.Time) *Clock { return &Clock{t: t.UTC()} }

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// Date is midnight UTC of the given day.
func Date(y int, m time.Month, d int) time.Time { return time.Date(y, m, d, 0, 0, 0, 0, time.UTC) }

// Medicament inserts an active catalog entry.
func Medicament(t testing.TB, db *gorm.DB, nom, prix string, ordonnance bool) model.Medicament {
	t.Helper()
	m := model.Medicament{
		Nom:               nom,
		Code:              "CODE-" + uuid.NewString()[:8],
		Prix:              decimal.RequireFromString(prix),
		PrixAchat:         decimal.RequireFromString(prix).Div(decimal.NewFromInt(2)).Round(2),
		OrdonnanceRequise: ordonnance,
		SeuilAlerte:       10,
		MaxStock:          500,
		Actif:             true,
	}
	require.NoError(t, db.Create(&m).Error)
	return m
}

// Lot inserts a received lot and its reception movement, as the stock
// service would.
func Lot(t testing.TB, db *gorm.DB, medicamentID uuid.UUID, quantite int, expiration time.Time) model.Lot {
	t.Helper()
	l := model.Lot{
		MedicamentID:     medicamentID,
		NumeroLot:        "L-" + uuid.NewString()[:8],
		QuantiteInitiale: quantite,
		QuantiteActuelle: quantite,
		PrixAchat:        decimal.RequireFromString("1.00"),
		DateExpiration:   expiration,
		CreatedAt:        time.Now().UTC(),
	}
	require.NoError(t, db.Create(&l).Error)
	require.NoError(t, db.Create(&model.MouvementStock{
		MedicamentID:  medicamentID,
		LotID:         &l.ID,
		Quantite:      quantite,
		Type:          model.MouvementReception,
		Motif:         "fixture",
		UtilisateurID: uuid.New(),
		CreatedAt:     time.Now().UTC(),
	}).Error)
	return l
}

// Quantite reloads a lot's current quantity.
func Quantite(t testing.TB, db *gorm.DB, lotID uuid.UUID) int {
	t.Helper()
	var l model.Lot
	require.NoError(t, db.First(&l, "id = ?", lotID).Error)
	return l.QuantiteActuelle
}
