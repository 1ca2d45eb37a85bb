package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/repository"
)

// ── Sale engine ──────────────────────────────────────────────────────────────
// Shared by direct sales and order payment. A sale goes through two passes:
//   1. valider: every line is checked (existence, prescription, stock,
//      payment) before anything is written.
//   2. executerTx: inside the caller's transaction, lots are locked in
//      medicament-id order, re-planned FEFO under lock, and the sale, its
//      lines, the lot decrements and the ledger entries are written together.

type ligneDemandee struct {
	MedicamentID uuid.UUID
	Quantite     int
}

type demandeVente struct {
	Lignes        []ligneDemandee
	ModePaiement  model.ModePaiement
	MontantRecu   decimal.Decimal
	TauxAssurance *decimal.Decimal
	PatientID     *uuid.UUID
	OrdonnanceID  *uuid.UUID
	// Ordonnance is created in the sale transaction when set.
	Ordonnance *model.Ordonnance
	CommandeID *uuid.UUID
	Acteur     model.Acteur
}

// venteValidee is a request that passed every pre-flight check.
type venteValidee struct {
	demandeVente
	medicaments map[uuid.UUID]model.Medicament
}

// lotModifie records a lot quantity change for the audit trail.
type lotModifie struct {
	LotID        uuid.UUID
	MedicamentID uuid.UUID
	Avant        int
	Apres        int
}

type moteurVente struct {
	medicaments repository.MedicamentRepository
	lots        repository.LotRepository
	mouvements  repository.MouvementStockWriter
	ventes      repository.VenteRepository
	ordonnances repository.OrdonnanceRepository
	now         func() time.Time
}

var cent = decimal.NewFromInt(100)

func decimalInt(n int) decimal.Decimal { return decimal.NewFromInt(int64(n)) }

// repartir splits a line amount between the client and the insurer. The
// insurer's share is rounded to the cent; the client pays the rest.
func repartir(sousTotal decimal.Decimal, taux *decimal.Decimal) (client, assurance decimal.Decimal) {
	if taux == nil || taux.IsZero() {
		return sousTotal, decimal.Zero
	}
	assurance = sousTotal.Mul(*taux).Div(cent).Round(2)
	return sousTotal.Sub(assurance), assurance
}

func modePaiementValide(m model.ModePaiement) bool {
	switch m {
	case model.PaiementEspeces, model.PaiementCarte, model.PaiementMobileMoney:
		return true
	}
	return false
}

// fusionnerLignes merges repeated medicaments, keeping first-seen order.
func fusionnerLignes(lignes []ligneDemandee) ([]ligneDemandee, error) {
	if len(lignes) == 0 {
		return nil, invalide("lignes", "au moins une ligne est requise")
	}
	index := make(map[uuid.UUID]int, len(lignes))
	out := make([]ligneDemandee, 0, len(lignes))
	for i, l := range lignes {
		if l.MedicamentID == uuid.Nil {
			return nil, invalide(fmt.Sprintf("lignes[%d].medicament_id", i), "requis")
		}
		if l.Quantite <= 0 {
			return nil, invalide(fmt.Sprintf("lignes[%d].quantite", i), "doit être positive")
		}
		if j, ok := index[l.MedicamentID]; ok {
			out[j].Quantite += l.Quantite
			continue
		}
		index[l.MedicamentID] = len(out)
		out = append(out, l)
	}
	return out, nil
}

func idsDe(lignes []ligneDemandee) []uuid.UUID {
	ids := make([]uuid.UUID, len(lignes))
	for i, l := range lignes {
		ids[i] = l.MedicamentID
	}
	return ids
}

// valider runs the whole validation pass outside any transaction. Reads are
// retried on transient storage errors; the stock check is repeated under lock
// by executerTx.
func (m *moteurVente) valider(ctx context.Context, d demandeVente) (*venteValidee, error) {
	if !modePaiementValide(d.ModePaiement) {
		return nil, invalide("mode_paiement", "mode de paiement inconnu: %q", d.ModePaiement)
	}
	if d.MontantRecu.IsNegative() {
		return nil, invalide("montant_recu", "ne peut pas être négatif")
	}
	if d.TauxAssurance != nil && (d.TauxAssurance.IsNegative() || d.TauxAssurance.GreaterThan(cent)) {
		return nil, invalide("taux_assurance", "doit être compris entre 0 et 100")
	}
	lignes, err := fusionnerLignes(d.Lignes)
	if err != nil {
		return nil, err
	}
	d.Lignes = lignes

	var meds map[uuid.UUID]model.Medicament
	if err := retryRead(ctx, func() (err error) {
		meds, err = m.medicaments.FindByIDsTx(ctx, nil, idsDe(lignes))
		return err
	}); err != nil {
		return nil, fmt.Errorf("lecture catalogue: %w", err)
	}

	avecOrdonnance := d.OrdonnanceID != nil || d.Ordonnance != nil
	now := m.now()
	du := decimal.Zero
	for _, l := range lignes {
		med, ok := meds[l.MedicamentID]
		if !ok {
			return nil, &NotFoundError{Entite: "medicament", ID: l.MedicamentID}
		}
		if !med.Actif {
			return nil, invalide("lignes", "%s n'est plus commercialisé", med.Nom)
		}
		if med.OrdonnanceRequise && !avecOrdonnance {
			return nil, &PrescriptionRequiredError{MedicamentID: med.ID, Nom: med.Nom}
		}

		// Same FEFO plan as under lock, so the amount owed is rounded per lot
		// slice exactly as the committed sale will be.
		var lots []model.Lot
		if err := retryRead(ctx, func() (err error) {
			lots, err = m.lots.FindAllocatable(ctx, nil, med.ID, now)
			return err
		}); err != nil {
			return nil, fmt.Errorf("lecture stock %s: %w", med.Nom, err)
		}
		plan, err := planAllocation(med, lots, l.Quantite, now)
		if err != nil {
			return nil, err
		}
		for _, p := range plan {
			_, client, _ := chiffrer(med.Prix, p, d.TauxAssurance)
			du = du.Add(client)
		}
	}

	if recu := montantEncaisse(d.ModePaiement, d.MontantRecu, du); recu.LessThan(du) {
		return nil, &InsufficientPaymentError{Du: du, Recu: recu}
	}
	return &venteValidee{demandeVente: d, medicaments: meds}, nil
}

// chiffrer prices one lot slice and splits it between client and insurer.
func chiffrer(prix decimal.Decimal, p prelevement, taux *decimal.Decimal) (sousTotal, client, assurance decimal.Decimal) {
	sousTotal = prix.Mul(decimal.NewFromInt(int64(p.Quantite)))
	client, assurance = repartir(sousTotal, taux)
	return sousTotal, client, assurance
}

// montantEncaisse: card and mobile-money payments with no tendered amount are
// charged exactly what the client owes.
func montantEncaisse(mode model.ModePaiement, recu, du decimal.Decimal) decimal.Decimal {
	if mode != model.PaiementEspeces && recu.IsZero() {
		return du
	}
	return recu
}

// executerTx writes the sale inside tx. Any error rolls the whole
// transaction back.
func (m *moteurVente) executerTx(ctx context.Context, tx *gorm.DB, v *venteValidee) (*model.Vente, []lotModifie, error) {
	now := m.now()

	ordonnanceID := v.OrdonnanceID
	if v.Ordonnance != nil {
		o := *v.Ordonnance
		o.CreatedAt = now
		if err := m.ordonnances.CreateTx(ctx, tx, &o); err != nil {
			return nil, nil, fmt.Errorf("création ordonnance: %w", err)
		}
		ordonnanceID = &o.ID
	} else if ordonnanceID != nil {
		if _, err := m.ordonnances.FindByIDTx(ctx, tx, *ordonnanceID); err != nil {
			return nil, nil, notFound(err, "ordonnance", *ordonnanceID)
		}
	}

	quantites := make(map[uuid.UUID]int, len(v.Lignes))
	for _, l := range v.Lignes {
		quantites[l.MedicamentID] = l.Quantite
	}
	plans := make(map[uuid.UUID][]prelevement, len(v.Lignes))
	for _, id := range ordreVerrouillage(idsDe(v.Lignes)) {
		lots, err := m.lots.FindAllocatable(ctx, tx, id, now)
		if err != nil {
			return nil, nil, fmt.Errorf("verrouillage lots: %w", err)
		}
		plan, err := planAllocation(v.medicaments[id], lots, quantites[id], now)
		if err != nil {
			return nil, nil, err
		}
		plans[id] = plan
	}

	vente := &model.Vente{
		CaissierID:   v.Acteur.UtilisateurID,
		CommandeID:   v.CommandeID,
		OrdonnanceID: ordonnanceID,
		PatientID:    v.PatientID,
		ModePaiement: v.ModePaiement,
		Statut:       model.VenteCompleted,
		CreatedAt:    now,
	}
	total, du, assurance := decimal.Zero, decimal.Zero, decimal.Zero
	for _, l := range v.Lignes {
		med := v.medicaments[l.MedicamentID]
		for _, p := range plans[l.MedicamentID] {
			lotID := p.Lot.ID
			sousTotal, client, part := chiffrer(med.Prix, p, v.TauxAssurance)
			vente.Lignes = append(vente.Lignes, model.DetailVente{
				MedicamentID:  med.ID,
				LotID:         &lotID,
				Rang:          len(vente.Lignes),
				Quantite:      p.Quantite,
				PrixUnitaire:  med.Prix,
				TauxAssurance: v.TauxAssurance,
				PartClient:    client,
				PartAssurance: part,
				CreatedAt:     now,
			})
			total = total.Add(sousTotal)
			du = du.Add(client)
			assurance = assurance.Add(part)
		}
	}

	recu := montantEncaisse(v.ModePaiement, v.MontantRecu, du)
	if recu.LessThan(du) {
		return nil, nil, &InsufficientPaymentError{Du: du, Recu: recu}
	}
	vente.Total = total
	vente.MontantPayeClient = du
	vente.MontantDuParAssurance = assurance
	vente.MontantRecu = recu
	vente.MontantRendu = recu.Sub(du)

	if err := m.ventes.CreateTx(ctx, tx, vente); err != nil {
		return nil, nil, fmt.Errorf("création vente: %w", err)
	}

	var modifies []lotModifie
	mouvements := make([]*model.MouvementStock, 0, len(vente.Lignes))
	for _, l := range v.Lignes {
		med := v.medicaments[l.MedicamentID]
		for _, p := range plans[l.MedicamentID] {
			if err := m.lots.DecrementTx(ctx, tx, p.Lot.ID, p.Quantite); err != nil {
				if errors.Is(err, repository.ErrInsufficientLotQuantity) {
					return nil, nil, &InsufficientStockError{
						MedicamentID: med.ID, Nom: med.Nom, Disponible: p.Lot.QuantiteActuelle, Demande: l.Quantite,
					}
				}
				return nil, nil, fmt.Errorf("décrément lot %s: %w", p.Lot.ID, err)
			}
			lotID := p.Lot.ID
			mouvements = append(mouvements, &model.MouvementStock{
				MedicamentID:  med.ID,
				LotID:         &lotID,
				VenteID:       &vente.ID,
				Quantite:      -p.Quantite,
				Type:          model.MouvementVente,
				Motif:         "Vente",
				UtilisateurID: v.Acteur.UtilisateurID,
				CreatedAt:     now,
			})
			modifies = append(modifies, lotModifie{
				LotID:        p.Lot.ID,
				MedicamentID: med.ID,
				Avant:        p.Lot.QuantiteActuelle,
				Apres:        p.Lot.QuantiteActuelle - p.Quantite,
			})
		}
	}
	if err := m.mouvements.AppendTx(ctx, tx, mouvements...); err != nil {
		return nil, nil, fmt.Errorf("écriture mouvements: %w", err)
	}

	for i := range vente.Lignes {
		med := v.medicaments[vente.Lignes[i].MedicamentID]
		vente.Lignes[i].Medicament = &med
	}
	return vente, modifies, nil
}

// ── Audit snapshots ──────────────────────────────────────────────────────────

func snapshotVente(v *model.Vente) map[string]any {
	return map[string]any{
		"statut":                   v.Statut,
		"total":                    v.Total.StringFixed(2),
		"caissier_id":              v.CaissierID,
		"mode_paiement":            v.ModePaiement,
		"montant_recu":             v.MontantRecu.StringFixed(2),
		"montant_rendu":            v.MontantRendu.StringFixed(2),
		"montant_paye_client":      v.MontantPayeClient.StringFixed(2),
		"montant_du_par_assurance": v.MontantDuParAssurance.StringFixed(2),
		"lignes":                   len(v.Lignes),
	}
}

func evenementsLots(modifies []lotModifie, acteur model.Acteur, at time.Time) []audit.Event {
	events := make([]audit.Event, 0, len(modifies))
	for _, m := range modifies {
		events = append(events, audit.Event{
			Entite:        "lot",
			EntiteID:      m.LotID,
			Action:        audit.Updated,
			UtilisateurID: acteur.UtilisateurID,
			Avant:         map[string]any{"quantite_actuelle": m.Avant},
			Apres:         map[string]any{"quantite_actuelle": m.Apres},
			At:            at,
		})
	}
	return events
}

func evenementCreation(entite string, id uuid.UUID, acteur model.Acteur, apres map[string]any, at time.Time) audit.Event {
	return audit.Event{
		Entite:        entite,
		EntiteID:      id,
		Action:        audit.Created,
		UtilisateurID: acteur.UtilisateurID,
		Apres:         apres,
		At:            at,
	}
}
