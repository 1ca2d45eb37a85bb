package service_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/service"
	"github.com/kananavy/pharmacie/internal/testutil"
)

func venteReq(mode string, recu string, lignes ...dto.LigneVenteRequest) dto.CreerVenteRequest {
	return dto.CreerVenteRequest{Lignes: lignes, ModePaiement: mode, MontantRecu: dec(recu)}
}

func ligne(id uuid.UUID, q int) dto.LigneVenteRequest {
	return dto.LigneVenteRequest{MedicamentID: id.String(), Quantite: q}
}

// ── Allocation ───────────────────────────────────────────────────────────────

func TestCreerVente_SplitsAcrossLotsFEFO(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Paracétamol 500", "12.50", false)
	lotB := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 6, 1))
	lotA := testutil.Lot(t, db, p.ID, 5, testutil.Date(2026, 1, 1))

	v, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "100", ligne(p.ID, 7)))
	require.NoError(t, err)

	require.Len(t, v.Lignes, 2)
	assert.Equal(t, lotA.ID.String(), *v.Lignes[0].LotID)
	assert.Equal(t, 5, v.Lignes[0].Quantite)
	assert.Equal(t, lotB.ID.String(), *v.Lignes[1].LotID)
	assert.Equal(t, 2, v.Lignes[1].Quantite)
	assert.Equal(t, "87.50", v.Total.StringFixed(2))
	assert.Equal(t, "12.50", v.MontantRendu.StringFixed(2))
	assert.Equal(t, "completed", v.Statut)

	assert.Equal(t, 0, testutil.Quantite(t, db, lotA.ID))
	assert.Equal(t, 8, testutil.Quantite(t, db, lotB.ID))

	var mouvements []model.MouvementStock
	require.NoError(t, db.Where("vente_id = ? AND type = ?", v.ID, model.MouvementVente).
		Order("quantite ASC").Find(&mouvements).Error)
	require.Len(t, mouvements, 2)
	assert.Equal(t, -5, mouvements[0].Quantite)
	assert.Equal(t, lotA.ID, *mouvements[0].LotID)
	assert.Equal(t, -2, mouvements[1].Quantite)
	assert.Equal(t, lotB.ID, *mouvements[1].LotID)
}

func TestCreerVente_NeverTouchesLaterLotWhileEarlierHasStock(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Amoxicilline", "3.00", false)
	d3 := testutil.Lot(t, db, p.ID, 4, testutil.Date(2026, 9, 1))
	d1 := testutil.Lot(t, db, p.ID, 4, testutil.Date(2026, 1, 1))
	d2 := testutil.Lot(t, db, p.ID, 4, testutil.Date(2026, 3, 1))

	_, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "50", ligne(p.ID, 6)))
	require.NoError(t, err)

	assert.Equal(t, 0, testutil.Quantite(t, db, d1.ID))
	assert.Equal(t, 2, testutil.Quantite(t, db, d2.ID))
	assert.Equal(t, 4, testutil.Quantite(t, db, d3.ID))
}

func TestCreerVente_SkipsExpiredLots(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Ibuprofène", "4.00", false)
	perime := testutil.Lot(t, db, p.ID, 10, testutil.Date(2025, 9, 30))
	valide := testutil.Lot(t, db, p.ID, 3, testutil.Date(2026, 2, 1))

	_, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "100", ligne(p.ID, 5)))
	var stock *service.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, 3, stock.Disponible)
	assert.Equal(t, 5, stock.Demande)

	v, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "100", ligne(p.ID, 3)))
	require.NoError(t, err)
	require.Len(t, v.Lignes, 1)
	assert.Equal(t, valide.ID.String(), *v.Lignes[0].LotID)
	assert.Equal(t, 10, testutil.Quantite(t, db, perime.ID))
}

func TestCreerVente_MergesDuplicateLines(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Vitamine C", "2.00", false)
	lot := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 5, 1))

	v, err := e.ventes.CreerVente(context.Background(), caissier(),
		venteReq("especes", "10", ligne(p.ID, 2), ligne(p.ID, 3)))
	require.NoError(t, err)
	require.Len(t, v.Lignes, 1)
	assert.Equal(t, 5, v.Lignes[0].Quantite)
	assert.Equal(t, 5, testutil.Quantite(t, db, lot.ID))
}

// ── Validation before any write ──────────────────────────────────────────────

func TestCreerVente_InsufficientStockWritesNothing(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	ok := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	court := testutil.Medicament(t, db, "Smecta", "5.00", false)
	lotOK := testutil.Lot(t, db, ok.ID, 10, testutil.Date(2026, 1, 1))
	lotCourt := testutil.Lot(t, db, court.ID, 3, testutil.Date(2026, 1, 1))

	_, err := e.ventes.CreerVente(context.Background(), caissier(),
		venteReq("especes", "100", ligne(ok.ID, 2), ligne(court.ID, 5)))

	var stock *service.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, court.ID, stock.MedicamentID)
	assert.Equal(t, 3, stock.Disponible)
	assert.Equal(t, 5, stock.Demande)
	assert.ErrorIs(t, err, service.ErrInsufficientStock)

	assert.Equal(t, int64(0), count(t, db, &model.Vente{}))
	assert.Equal(t, int64(0), count(t, db, &model.MouvementStock{}, "type = ?", model.MouvementVente))
	assert.Equal(t, 10, testutil.Quantite(t, db, lotOK.ID))
	assert.Equal(t, 3, testutil.Quantite(t, db, lotCourt.ID))
	assert.Empty(t, e.rec.Of("vente"))
}

func TestCreerVente_PrescriptionRequired(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Tramadol", "9.00", true)
	testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))

	_, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "20", ligne(p.ID, 1)))
	var presc *service.PrescriptionRequiredError
	require.ErrorAs(t, err, &presc)
	assert.Equal(t, p.ID, presc.MedicamentID)
	assert.Equal(t, int64(0), count(t, db, &model.Vente{}))

	req := venteReq("especes", "20", ligne(p.ID, 1))
	req.Ordonnance = &dto.OrdonnanceRequest{Numero: "ORD-1", Medecin: "Dr Rabe", DateOrdonnance: "2025-09-29"}
	v, err := e.ventes.CreerVente(context.Background(), caissier(), req)
	require.NoError(t, err)
	require.NotNil(t, v.OrdonnanceID)
	assert.Equal(t, int64(1), count(t, db, &model.Ordonnance{}))
}

func TestCreerVente_UnknownPrescriptionRollsBack(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Tramadol", "9.00", true)
	lot := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))

	req := venteReq("especes", "20", ligne(p.ID, 1))
	inconnue := uuid.NewString()
	req.OrdonnanceID = &inconnue
	_, err := e.ventes.CreerVente(context.Background(), caissier(), req)
	assert.ErrorIs(t, err, service.ErrNotFound)
	assert.Equal(t, 10, testutil.Quantite(t, db, lot.ID))
}

func TestCreerVente_UnknownMedicament(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)

	_, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "20", ligne(uuid.New(), 1)))
	var nf *service.NotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, "medicament", nf.Entite)
}

func TestCreerVente_InvalidInput(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)

	cases := map[string]dto.CreerVenteRequest{
		"no lines":      venteReq("especes", "10"),
		"zero quantity": venteReq("especes", "10", ligne(p.ID, 0)),
		"bad mode":      venteReq("cheque", "10", ligne(p.ID, 1)),
		"bad id":        venteReq("especes", "10", dto.LigneVenteRequest{MedicamentID: "nope", Quantite: 1}),
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.ventes.CreerVente(context.Background(), caissier(), req)
			assert.ErrorIs(t, err, service.ErrValidation)
		})
	}
}

// ── Payment ──────────────────────────────────────────────────────────────────

func TestCreerVente_InsufficientPayment(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	lot := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))

	_, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "9.99", ligne(p.ID, 4)))
	var pay *service.InsufficientPaymentError
	require.ErrorAs(t, err, &pay)
	assert.Equal(t, "10.00", pay.Du.StringFixed(2))
	assert.Equal(t, "9.99", pay.Recu.StringFixed(2))
	assert.Equal(t, 10, testutil.Quantite(t, db, lot.ID))
}

func TestCreerVente_CardWithoutTenderedAmountIsExact(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Doliprane", "2.50", false)
	testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))

	v, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("carte", "0", ligne(p.ID, 4)))
	require.NoError(t, err)
	assert.Equal(t, "10.00", v.MontantRecu.StringFixed(2))
	assert.True(t, v.MontantRendu.IsZero())
}

func TestCreerVente_InsuranceSplit(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Insuline", "10.00", false)
	testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))

	req := venteReq("especes", "21", ligne(p.ID, 3))
	req.TauxAssurance = decPtr("30")
	v, err := e.ventes.CreerVente(context.Background(), caissier(), req)
	require.NoError(t, err)

	assert.Equal(t, "30.00", v.Total.StringFixed(2))
	assert.Equal(t, "9.00", v.MontantDuParAssurance.StringFixed(2))
	assert.Equal(t, "21.00", v.MontantPayeClient.StringFixed(2))
	assert.True(t, v.MontantRendu.IsZero())
	assert.Equal(t, "21.00", v.Lignes[0].PartClient.StringFixed(2))
	assert.Equal(t, "9.00", v.Lignes[0].PartAssurance.StringFixed(2))
}

func TestCreerVente_AmountOwedRoundedPerLotBeforeAndAfterLocking(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Compresse", "0.01", false)
	for _, m := range []int{1, 2, 3} {
		testutil.Lot(t, db, p.ID, 1, testutil.Date(2026, time.Month(m), 1))
	}

	// Each one-cent slice leaves 0.00 to the client once the insurer's half
	// is rounded up; the merged line would have left 0.01.
	req := venteReq("especes", "0", ligne(p.ID, 3))
	req.TauxAssurance = decPtr("50")
	v, err := e.ventes.CreerVente(context.Background(), caissier(), req)
	require.NoError(t, err)

	require.Len(t, v.Lignes, 3)
	assert.Equal(t, "0.03", v.Total.StringFixed(2))
	assert.Equal(t, "0.00", v.MontantPayeClient.StringFixed(2))
	assert.Equal(t, "0.03", v.MontantDuParAssurance.StringFixed(2))
	assert.True(t, v.MontantRendu.IsZero())
}

// ── Cancellation ─────────────────────────────────────────────────────────────

func TestAnnulerVente_RestoresLotsAndIsTerminal(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Paracétamol", "12.50", false)
	lotA := testutil.Lot(t, db, p.ID, 5, testutil.Date(2026, 1, 1))
	lotB := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 6, 1))
	ctx := context.Background()

	v, err := e.ventes.CreerVente(ctx, caissier(), venteReq("especes", "100", ligne(p.ID, 7)))
	require.NoError(t, err)
	id := uuid.MustParse(v.ID)

	annulee, err := e.ventes.AnnulerVente(ctx, caissier(), id, dto.AnnulerVenteRequest{Motif: "erreur de saisie"})
	require.NoError(t, err)
	assert.Equal(t, "cancelled", annulee.Statut)
	assert.Equal(t, 5, testutil.Quantite(t, db, lotA.ID))
	assert.Equal(t, 10, testutil.Quantite(t, db, lotB.ID))

	var retours []model.MouvementStock
	require.NoError(t, db.Where("vente_id = ? AND type = ?", id, model.MouvementRetour).Find(&retours).Error)
	total := 0
	for _, m := range retours {
		total += m.Quantite
	}
	assert.Equal(t, 7, total)

	_, err = e.ventes.AnnulerVente(ctx, caissier(), id, dto.AnnulerVenteRequest{Motif: "encore"})
	var deja *service.AlreadyProcessedError
	require.ErrorAs(t, err, &deja)
	assert.Equal(t, "cancelled", deja.Statut)
	assert.Equal(t, 5, testutil.Quantite(t, db, lotA.ID))
}

func TestAnnulerVente_RejectedAfterPartialReturn(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Paracétamol", "1.00", false)
	testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	v, err := e.ventes.CreerVente(ctx, caissier(), venteReq("especes", "10", ligne(p.ID, 4)))
	require.NoError(t, err)
	id := uuid.MustParse(v.ID)
	_, err = e.ventes.RetournerPartiel(ctx, caissier(), id, dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: v.Lignes[0].ID, Quantite: 1}},
		Motif:  "boîte abîmée",
	})
	require.NoError(t, err)

	_, err = e.ventes.AnnulerVente(ctx, caissier(), id, dto.AnnulerVenteRequest{Motif: "annulation"})
	var deja *service.AlreadyProcessedError
	require.ErrorAs(t, err, &deja)
	assert.Equal(t, "returned_partially", deja.Statut)
}

func TestAnnulerVente_NotFound(t *testing.T) {
	e := newEnv(t, testutil.OpenDB(t))
	_, err := e.ventes.AnnulerVente(context.Background(), caissier(), uuid.New(), dto.AnnulerVenteRequest{Motif: "xxx"})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

// ── Partial returns ──────────────────────────────────────────────────────────

func TestRetournerPartiel_MarksOriginalOnceAndBoundsQuantities(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Paracétamol", "12.50", false)
	lotA := testutil.Lot(t, db, p.ID, 5, testutil.Date(2026, 1, 1))
	lotB := testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 6, 1))
	ctx := context.Background()

	v, err := e.ventes.CreerVente(ctx, caissier(), venteReq("especes", "100", ligne(p.ID, 7)))
	require.NoError(t, err)
	id := uuid.MustParse(v.ID)
	ligneA, ligneB := v.Lignes[0].ID, v.Lignes[1].ID

	// first return: 2 units from lot A
	r1, err := e.ventes.RetournerPartiel(ctx, caissier(), id, dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: ligneA, Quantite: 2}},
		Motif:  "retour client",
	})
	require.NoError(t, err)
	assert.Equal(t, "returned", r1.Retour.Statut)
	assert.Equal(t, "-25.00", r1.Retour.Total.StringFixed(2))
	require.Len(t, r1.Retour.Lignes, 1)
	assert.Equal(t, -2, r1.Retour.Lignes[0].Quantite)
	assert.Equal(t, ligneA, *r1.Retour.Lignes[0].LigneOrigineID)
	assert.Equal(t, v.ID, *r1.Retour.VenteOrigineID)
	assert.Equal(t, "returned_partially", r1.Originale.Statut)
	assert.Equal(t, 2, testutil.Quantite(t, db, lotA.ID))

	// second return on another line: original stays returned_partially
	r2, err := e.ventes.RetournerPartiel(ctx, caissier(), id, dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: ligneB, Quantite: 1}},
		Motif:  "retour client",
	})
	require.NoError(t, err)
	assert.Equal(t, "returned_partially", r2.Originale.Statut)
	assert.Equal(t, 9, testutil.Quantite(t, db, lotB.ID))

	var marquages int
	for _, ev := range e.rec.Of("vente") {
		if ev.EntiteID.String() == v.ID && ev.Action == audit.Updated {
			marquages++
		}
	}
	assert.Equal(t, 1, marquages)

	// line A: 5 sold, 2 returned, 4 requested
	_, err = e.ventes.RetournerPartiel(ctx, caissier(), id, dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: ligneA, Quantite: 4}},
		Motif:  "retour client",
	})
	var exces *service.ReturnExceedsOriginalError
	require.ErrorAs(t, err, &exces)
	assert.Equal(t, 5, exces.Vendu)
	assert.Equal(t, 2, exces.DejaRetourne)
	assert.Equal(t, 4, exces.Demande)
	assert.Equal(t, 2, testutil.Quantite(t, db, lotA.ID))

	// returning exactly what is left fully restores the lot
	_, err = e.ventes.RetournerPartiel(ctx, caissier(), id, dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: ligneA, Quantite: 3}},
		Motif:  "retour client",
	})
	require.NoError(t, err)
	assert.Equal(t, 5, testutil.Quantite(t, db, lotA.ID))

	detail, err := e.ventes.ObtenirVente(ctx, id)
	require.NoError(t, err)
	assert.Len(t, detail.Retours, 3)
}

func TestRetournerPartiel_SplitRequestLinesAreSummed(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Sirop", "6.00", false)
	testutil.Lot(t, db, p.ID, 3, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	v, err := e.ventes.CreerVente(ctx, caissier(), venteReq("especes", "20", ligne(p.ID, 3)))
	require.NoError(t, err)

	_, err = e.ventes.RetournerPartiel(ctx, caissier(), uuid.MustParse(v.ID), dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{
			{LigneID: v.Lignes[0].ID, Quantite: 2},
			{LigneID: v.Lignes[0].ID, Quantite: 2},
		},
		Motif: "double saisie",
	})
	var exces *service.ReturnExceedsOriginalError
	require.ErrorAs(t, err, &exces)
	assert.Equal(t, 4, exces.Demande)
}

func TestRetournerPartiel_OnCancelledSaleFails(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Sirop", "6.00", false)
	lot := testutil.Lot(t, db, p.ID, 3, testutil.Date(2026, 1, 1))
	ctx := context.Background()

	v, err := e.ventes.CreerVente(ctx, caissier(), venteReq("especes", "20", ligne(p.ID, 3)))
	require.NoError(t, err)
	id := uuid.MustParse(v.ID)
	_, err = e.ventes.AnnulerVente(ctx, caissier(), id, dto.AnnulerVenteRequest{Motif: "annulée"})
	require.NoError(t, err)

	_, err = e.ventes.RetournerPartiel(ctx, caissier(), id, dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: v.Lignes[0].ID, Quantite: 1}},
		Motif:  "retour",
	})
	var deja *service.AlreadyProcessedError
	require.ErrorAs(t, err, &deja)
	assert.Equal(t, "cancelled", deja.Statut)
	assert.Equal(t, 3, testutil.Quantite(t, db, lot.ID))
}

func TestRetournerPartiel_UnknownLine(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Sirop", "6.00", false)
	testutil.Lot(t, db, p.ID, 3, testutil.Date(2026, 1, 1))

	v, err := e.ventes.CreerVente(context.Background(), caissier(), venteReq("especes", "20", ligne(p.ID, 1)))
	require.NoError(t, err)
	_, err = e.ventes.RetournerPartiel(context.Background(), caissier(), uuid.MustParse(v.ID), dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: uuid.NewString(), Quantite: 1}},
		Motif:  "retour",
	})
	assert.ErrorIs(t, err, service.ErrNotFound)
}

// ── Ledger conservation ──────────────────────────────────────────────────────

func TestLedgerReconcilesWithLots(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Paracétamol", "1.00", false)
	testutil.Lot(t, db, p.ID, 5, testutil.Date(2026, 1, 1))
	testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 6, 1))
	ctx := context.Background()

	v1, err := e.ventes.CreerVente(ctx, caissier(), venteReq("especes", "100", ligne(p.ID, 7)))
	require.NoError(t, err)
	v2, err := e.ventes.CreerVente(ctx, caissier(), venteReq("especes", "100", ligne(p.ID, 3)))
	require.NoError(t, err)
	r, err := e.ventes.RetournerPartiel(ctx, caissier(), uuid.MustParse(v1.ID), dto.RetourVenteRequest{
		Lignes: []dto.LigneRetourRequest{{LigneID: v1.Lignes[1].ID, Quantite: 2}},
		Motif:  "retour",
	})
	require.NoError(t, err)
	_, err = e.ventes.AnnulerVente(ctx, caissier(), uuid.MustParse(v2.ID), dto.AnnulerVenteRequest{Motif: "annulée"})
	require.NoError(t, err)

	// Per transaction: the sale keeps its outflow, the return carries the
	// inflow, and a cancelled sale nets out.
	for id, attendu := range map[string]int{v1.ID: -7, r.Retour.ID: 2, v2.ID: 0} {
		parVente, err := e.ledger.SumByVente(ctx, uuid.MustParse(id))
		require.NoError(t, err)
		assert.Equal(t, attendu, parVente, "vente %s", id)
	}

	var lots []model.Lot
	require.NoError(t, db.Where("medicament_id = ?", p.ID).Find(&lots).Error)
	initial, courant := 0, 0
	for _, l := range lots {
		initial += l.QuantiteInitiale
		courant += l.QuantiteActuelle
		parLot, err := e.ledger.SumByLot(ctx, l.ID)
		require.NoError(t, err)
		assert.Equal(t, l.QuantiteActuelle, parLot, "lot %s", l.NumeroLot)
	}

	sommes := map[model.TypeMouvement]int{}
	var mouvements []model.MouvementStock
	require.NoError(t, db.Where("medicament_id = ?", p.ID).Find(&mouvements).Error)
	for _, m := range mouvements {
		sommes[m.Type] += m.Quantite
	}
	assert.Equal(t, initial, sommes[model.MouvementReception])
	assert.Equal(t, initial-courant, -(sommes[model.MouvementVente] + sommes[model.MouvementRetour]))
	assert.Equal(t, 15-7-3+2+3, courant)
}

func TestCreerVente_PublishesAuditAfterCommit(t *testing.T) {
	db := testutil.OpenDB(t)
	e := newEnv(t, db)
	p := testutil.Medicament(t, db, "Paracétamol", "12.50", false)
	testutil.Lot(t, db, p.ID, 5, testutil.Date(2026, 1, 1))
	testutil.Lot(t, db, p.ID, 10, testutil.Date(2026, 6, 1))

	acteur := caissier()
	v, err := e.ventes.CreerVente(context.Background(), acteur, venteReq("especes", "100", ligne(p.ID, 7)))
	require.NoError(t, err)

	ventes := e.rec.Of("vente")
	require.Len(t, ventes, 1)
	assert.Equal(t, audit.Created, ventes[0].Action)
	assert.Equal(t, v.ID, ventes[0].EntiteID.String())
	assert.Equal(t, acteur.UtilisateurID, ventes[0].UtilisateurID)

	lots := e.rec.Of("lot")
	require.Len(t, lots, 2)
	assert.Equal(t, 5, lots[0].Avant["quantite_actuelle"])
	assert.Equal(t, 0, lots[0].Apres["quantite_actuelle"])
}

func TestObtenirVente_NotFound(t *testing.T) {
	e := newEnv(t, testutil.OpenDB(t))
	_, err := e.ventes.ObtenirVente(context.Background(), uuid.New())
	assert.True(t, errors.Is(err, service.ErrNotFound))
}
