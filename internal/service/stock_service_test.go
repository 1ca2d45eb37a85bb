package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/service"
	"github.com/kananavy/pharmacie/internal/testutil"
)

func pharmacien() model.Acteur {
	return model.Acteur{UtilisateurID: uuid.New(), Rol: "pharmacien"}
}

func receptionReq(med uuid.UUID, q int, exp string) dto.ReceptionLotRequest {
	return dto.ReceptionLotRequest{
		MedicamentID:   med.String(),
		NumeroLot:      "LOT-2025-001",
		Quantite:       q,
		PrixAchat:      dec("1.20"),
		DateExpiration: exp,
	}
}

func TestRecevoirLot_WritesReceptionMovement(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	ctx := context.Background()

	req := receptionReq(p.ID, 40, "2026-03-31")
	fab := "2025-03-01"
	req.DateFabrication = &fab
	lot, err := e.stock.RecevoirLot(ctx, pharmacien(), req)
	require.NoError(t, err)
	assert.Equal(t, 40, lot.QuantiteInitiale)
	assert.Equal(t, 40, lot.QuantiteActuelle)
	assert.Equal(t, "2026-03-31", lot.DateExpiration)
	assert.Equal(t, "Doliprane", lot.Medicament)

	liste, err := e.stock.ListerMouvements(ctx, dto.MouvementFilter{LotID: lot.ID, Page: 1, Limit: 100})
	require.NoError(t, err)
	require.Len(t, liste.Data, 1)
	assert.Equal(t, "reception", liste.Data[0].Type)
	assert.Equal(t, 40, liste.Data[0].Quantite)
	assert.Equal(t, int64(1), liste.Total)

	lots := e.rec.Of("lot")
	require.Len(t, lots, 1)
}

func TestRecevoirLot_Rejections(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	ctx := context.Background()

	cases := map[string]dto.ReceptionLotRequest{
		"already expired": receptionReq(p.ID, 10, "2025-09-01"),
		"expires today":   receptionReq(p.ID, 10, "2025-10-01"),
		"zero quantity":   receptionReq(p.ID, 0, "2026-03-31"),
		"bad date":        receptionReq(p.ID, 10, "31/03/2026"),
	}
	apres := receptionReq(p.ID, 10, "2026-03-31")
	fab := "2026-04-01"
	apres.DateFabrication = &fab
	cases["made after expiry"] = apres

	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.stock.RecevoirLot(ctx, pharmacien(), req)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
	assert.Equal(t, int64(0), count(t, db, &model.Lot{}))

	_, err := e.stock.RecevoirLot(ctx, pharmacien(), receptionReq(uuid.New(), 10, "2026-03-31"))
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAjusterLot(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	lot := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	l, err := e.stock.AjusterLot(ctx, pharmacien(), lot.ID, dto.AjustementLotRequest{Delta: -3, Motif: "casse"})
	require.NoError(t, err)
	assert.Equal(t, 7, l.QuantiteActuelle)

	l, err = e.stock.AjusterLot(ctx, pharmacien(), lot.ID, dto.AjustementLotRequest{Delta: 2, Motif: "recomptage"})
	require.NoError(t, err)
	assert.Equal(t, 9, l.QuantiteActuelle)

	_, err = e.stock.AjusterLot(ctx, pharmacien(), lot.ID, dto.AjustementLotRequest{Delta: -10, Motif: "casse"})
	var stock *service.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 9, stock.Disponible)

	_, err = e.stock.AjusterLot(ctx, pharmacien(), lot.ID, dto.AjustementLotRequest{Delta: 2, Motif: "recomptage"})
	assert.ErrorIs(t, err, service.ErrLotOverflow)

	_, err = e.stock.AjusterLot(ctx, pharmacien(), lot.ID, dto.AjustementLotRequest{Delta: 0, Motif: "rien"})
	assert.ErrorIs(t, err, service.ErrValidation)

	_, err = e.stock.AjusterLot(ctx, pharmacien(), uuid.New(), dto.AjustementLotRequest{Delta: 1, Motif: "rien"})
	assert.ErrorIs(t, err, service.ErrNotFound)

	assert.Equal(t, 9, testutil.Quantite(t, db, lot.ID))
	parLot, err := e.ledger.SumByLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, parLot)

	liste, err := e.stock.ListerMouvements(ctx, dto.MouvementFilter{
		LotID: lot.ID.String(), Type: string(model.MouvementAjustement), Page: 1, Limit: 100,
	})
	require.NoError(t, err)
	assert.Len(t, liste.Data, 2)
}

func TestAlertes(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	bas := testutil.Medicament(t, db, "Smecta", "5.00", false)
	ok := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	testutil.Medicament(t, db, "Ventoline", "8.00", false)

	testutil.Lot(t, db, bas.ID, 4, testutil.Date(2026, 6, 1))
	testutil.Lot(t, db, bas.ID, 50, testutil.Date(2025, 9, 1)) // expired, not counted
	testutil.Lot(t, db, ok.ID, 80, testutil.Date(2026, 6, 1))
	proche := testutil.Lot(t, db, ok.ID, 5, testutil.Date(2025, 10, 20))
	testutil.Lot(t, db, ok.ID, 5, testutil.Date(2025, 11, 15))

	alertes, err := e.stock.Alertes(context.Background())
	require.NoError(t, err)

	sous := map[string]int{}
	for _, s := range alertes.SousSeuil {
		sous[s.Medicament.Nom] = s.StockDisponible
	}
	assert.Equal(t, map[string]int{"Smecta": 4, "Ventoline": 0}, sous)

	require.Len(t, alertes.ProchesExpiration, 1)
	assert.Equal(t, proche.ID.String(), alertes.ProchesExpiration[0].ID)
	assert.Equal(t, "Doliprane", alertes.ProchesExpiration[0].Medicament)
}

func TestListerLots_IncludesEmptyAndExpiredInFEFOOrder(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	autre := testutil.Medicament(t, db, "Sirop", "4.00", false)
	tard := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 6, 1))
	perime := testutil.Lot(t, db, p.ID, 3, testutil.Date(2025, 9, 1))
	vide := testutil.Lot(t, db, p.ID, 2, testutil.Date(2026, 1, 1))
	testutil.Lot(t, db, autre.ID, 5, testutil.Date(2026, 1, 1))
	ctx := context.Background()
	_, err := e.ventes.CreerVente(ctx, caissier(), venteReq("carte", "0", ligne(p.ID, 2)))
	require.NoError(t, err)

	lots, err := e.stock.ListerLots(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, lots, 3)
	assert.Equal(t, 0, lots[1].QuantiteActuelle)
	assert.Equal(t, []string{perime.ID.String(), vide.ID.String(), tard.ID.String()},
		[]string{lots[0].ID, lots[1].ID, lots[2].ID})
	assert.Equal(t, "Doliprane", lots[0].Medicament)

	_, err = e.stock.ListerLots(ctx, uuid.New())
	assert.ErrorIs(t, err, service.ErrNotFound)
}

func TestAjusterLot_RecountedUnitsLeaveRoomForSaleRestock(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	lot := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	v, err := e.ventes.CreerVente(ctx, caissier(), venteReq("carte", "0", ligne(p.ID, 5)))
	require.NoError(t, err)

	l, err := e.stock.AjusterLot(ctx, pharmacien(), lot.ID, dto.AjustementLotRequest{Delta: 5, Motif: "recomptage"})
	require.NoError(t, err)
	assert.Equal(t, 10, l.QuantiteActuelle)
	assert.Equal(t, 5, l.QuantiteAjoutee)

	_, err = e.ventes.AnnulerVente(ctx, pharmacien(), uuid.MustParse(v.ID), dto.AnnulerVenteRequest{Motif: "erreur"})
	require.NoError(t, err)
	assert.Equal(t, 15, testutil.Quantite(t, db, lot.ID))

	parLot, err := e.ledger.SumByLot(ctx, lot.ID)
	require.NoError(t, err)
	assert.Equal(t, 15, parLot)

	// a recount alone still cannot push the lot past its received quantity
	_, err = e.stock.AjusterLot(ctx, pharmacien(), lot.ID, dto.AjustementLotRequest{Delta: 1, Motif: "recomptage"})
	assert.ErrorIs(t, err, service.ErrLotOverflow)
}
