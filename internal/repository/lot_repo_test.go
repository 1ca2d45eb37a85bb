package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/repository"
	"github.com/kananavy/pharmacie/internal/testutil"
)

var now = time.Date(2025, 10, 1, 10, 0, 0, 0, time.UTC)

func TestLotRepository_FindAllocatableOrdersByExpiry(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewLotRepository(db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	tard := testutil.Lot(t, db, p.ID, 3, testutil.Date(2026, 6, 1))
	tot := testutil.Lot(t, db, p.ID, 3, testutil.Date(2026, 1, 1))
	testutil.Lot(t, db, p.ID, 3, testutil.Date(2025, 9, 1))
	testutil.Lot(t, db, p.ID, 0, testutil.Date(2025, 12, 1))

	lots, err := repo.FindAllocatable(context.Background(), nil, p.ID, now)
	require.NoError(t, err)
	require.Len(t, lots, 2)
	assert.Equal(t, tot.ID, lots[0].ID)
	assert.Equal(t, tard.ID, lots[1].ID)

	dispo, err := repo.AvailableQuantity(context.Background(), p.ID, now)
	require.NoError(t, err)
	assert.Equal(t, 6, dispo)

	parMed, err := repo.AvailableByMedicament(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 6, parMed[p.ID])
}

func TestLotRepository_DecrementGuard(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewLotRepository(db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	lot := testutil.Lot(t, db, p.ID, 5, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.DecrementTx(ctx, tx, lot.ID, 5)
	}))
	assert.Equal(t, 0, testutil.Quantite(t, db, lot.ID))

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.DecrementTx(ctx, tx, lot.ID, 1)
	})
	assert.ErrorIs(t, err, repository.ErrInsufficientLotQuantity)
	assert.Equal(t, 0, testutil.Quantite(t, db, lot.ID))

	err = db.Transaction(func(tx *gorm.DB) error {
		return repo.DecrementTx(ctx, tx, uuid.New(), 1)
	})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestLotRepository_IncrementCappedAtInitial(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewLotRepository(db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	lot := testutil.Lot(t, db, p.ID, 5, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.DecrementTx(ctx, tx, lot.ID, 3)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.IncrementTx(ctx, tx, lot.ID, 3)
	}))
	assert.Equal(t, 5, testutil.Quantite(t, db, lot.ID))

	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.IncrementTx(ctx, tx, lot.ID, 1)
	})
	assert.ErrorIs(t, err, repository.ErrLotOverflow)
	assert.Equal(t, 5, testutil.Quantite(t, db, lot.ID))
}

func TestLotRepository_RecountRaisesRestockCeiling(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewLotRepository(db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	lot := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.DecrementTx(ctx, tx, lot.ID, 5)
	}))
	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.AddRecountedTx(ctx, tx, lot.ID, 5)
	}))
	err := db.Transaction(func(tx *gorm.DB) error {
		return repo.AddRecountedTx(ctx, tx, lot.ID, 1)
	})
	assert.ErrorIs(t, err, repository.ErrLotOverflow)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return repo.IncrementTx(ctx, tx, lot.ID, 5)
	}))
	err = db.Transaction(func(tx *gorm.DB) error {
		return repo.IncrementTx(ctx, tx, lot.ID, 1)
	})
	assert.ErrorIs(t, err, repository.ErrLotOverflow)

	got, err := repo.FindByID(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, got.QuantiteActuelle)
	assert.Equal(t, 5, got.QuantiteAjoutee)
}

func TestLotRepository_ListNearExpiry(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := repository.NewLotRepository(db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	proche := testutil.Lot(t, db, p.ID, 2, testutil.Date(2025, 10, 15))
	testutil.Lot(t, db, p.ID, 2, testutil.Date(2025, 12, 15))
	testutil.Lot(t, db, p.ID, 0, testutil.Date(2025, 10, 10))
	testutil.Lot(t, db, p.ID, 2, testutil.Date(2025, 9, 15))

	lots, err := repo.ListNearExpiry(context.Background(), now, now.AddDate(0, 0, 30))
	require.NoError(t, err)
	require.Len(t, lots, 1)
	assert.Equal(t, proche.ID, lots[0].ID)
	require.NotNil(t, lots[0].Medicament)
	assert.Equal(t, "Doliprane", lots[0].Medicament.Nom)
}
