package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kananavy/pharmacie/internal/audit"
	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
	"github.com/kananavy/pharmacie/internal/repository"
)

// VenteService is the sale transaction engine: direct sales, cancellation and
// partial returns.
type VenteService interface {
	CreerVente(ctx context.Context, acteur model.Acteur, req dto.CreerVenteRequest) (*dto.VenteResponse, error)
	ObtenirVente(ctx context.Context, id uuid.UUID) (*dto.VenteResponse, error)
	AnnulerVente(ctx context.Context, acteur model.Acteur, id uuid.UUID, req dto.AnnulerVenteRequest) (*dto.VenteResponse, error)
	RetournerPartiel(ctx context.Context, acteur model.Acteur, id uuid.UUID, req dto.RetourVenteRequest) (*dto.RetourVenteResponse, error)
}

type venteService struct {
	moteur *moteurVente
	ventes repository.VenteRepository
	lots   repository.LotRepository
	ledger repository.MouvementStockWriter
	sink   audit.Sink
	now    func() time.Time
}

type VenteDeps struct {
	Medicaments repository.MedicamentRepository
	Lots        repository.LotRepository
	Mouvements  repository.MouvementStockWriter
	Ventes      repository.VenteRepository
	Ordonnances repository.OrdonnanceRepository
	Sink        audit.Sink
	// Now defaults to time.Now in UTC.
	Now func() time.Time
}

func (d VenteDeps) moteur() *moteurVente {
	return &moteurVente{
		medicaments: d.Medicaments,
		lots:        d.Lots,
		mouvements:  d.Mouvements,
		ventes:      d.Ventes,
		ordonnances: d.Ordonnances,
		now:         d.horloge(),
	}
}

func (d VenteDeps) horloge() func() time.Time {
	if d.Now != nil {
		return d.Now
	}
	return utcNow
}

func NewVenteService(deps VenteDeps) VenteService {
	return &venteService{
		moteur: deps.moteur(),
		ventes: deps.Ventes,
		lots:   deps.Lots,
		ledger: deps.Mouvements,
		sink:   deps.Sink,
		now:    deps.horloge(),
	}
}

// demandeDepuisRequete converts the wire request; inline prescriptions win
// over a referenced one.
func demandeDepuisRequete(acteur model.Acteur, lignes []dto.LigneVenteRequest, patient, ordonnanceID *string, ordonnance *dto.OrdonnanceRequest) (demandeVente, error) {
	d := demandeVente{Acteur: acteur}
	for i, l := range lignes {
		id, err := parseUUID(fmt.Sprintf("lignes[%d].medicament_id", i), l.MedicamentID)
		if err != nil {
			return d, err
		}
		d.Lignes = append(d.Lignes, ligneDemandee{MedicamentID: id, Quantite: l.Quantite})
	}
	var err error
	if d.PatientID, err = parseUUIDPtr("patient_id", patient); err != nil {
		return d, err
	}
	if ordonnance != nil {
		o, err := ordonnanceDepuisRequete(*ordonnance)
		if err != nil {
			return d, err
		}
		d.Ordonnance = o
		return d, nil
	}
	if d.OrdonnanceID, err = parseUUIDPtr("ordonnance_id", ordonnanceID); err != nil {
		return d, err
	}
	return d, nil
}

func ordonnanceDepuisRequete(req dto.OrdonnanceRequest) (*model.Ordonnance, error) {
	if req.Numero == "" || req.Medecin == "" {
		return nil, invalide("ordonnance", "numéro et médecin requis")
	}
	date, err := parseDate("ordonnance.date_ordonnance", req.DateOrdonnance)
	if err != nil {
		return nil, err
	}
	return &model.Ordonnance{
		Numero:         req.Numero,
		Medecin:        req.Medecin,
		DateOrdonnance: date,
		PatientNom:     req.PatientNom,
	}, nil
}

// ── CreerVente ───────────────────────────────────────────────────────────────

func (s *venteService) CreerVente(ctx context.Context, acteur model.Acteur, req dto.CreerVenteRequest) (*dto.VenteResponse, error) {
	d, err := demandeDepuisRequete(acteur, req.Lignes, req.PatientID, req.OrdonnanceID, req.Ordonnance)
	if err != nil {
		return nil, err
	}
	d.ModePaiement = model.ModePaiement(req.ModePaiement)
	d.MontantRecu = req.MontantRecu
	d.TauxAssurance = req.TauxAssurance

	validee, err := s.moteur.valider(ctx, d)
	if err != nil {
		return nil, err
	}

	var (
		vente    *model.Vente
		modifies []lotModifie
	)
	err = runTx(ctx, s.ventes.DB(), func(tx *gorm.DB) error {
		vente, modifies, err = s.moteur.executerTx(ctx, tx, validee)
		return err
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("vente_id", vente.ID.String()).
		Str("caissier_id", acteur.UtilisateurID.String()).
		Str("total", vente.Total.StringFixed(2)).
		Int("lignes", len(vente.Lignes)).
		Msg("vente enregistrée")
	publier(ctx, s.sink, append(
		[]audit.Event{evenementCreation("vente", vente.ID, acteur, snapshotVente(vente), vente.CreatedAt)},
		evenementsLots(modifies, acteur, vente.CreatedAt)...,
	)...)

	resp := venteToResponse(vente)
	return &resp, nil
}

func (s *venteService) ObtenirVente(ctx context.Context, id uuid.UUID) (*dto.VenteResponse, error) {
	v, err := s.ventes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "vente", id)
	}
	resp := venteToResponse(v)
	retours, err := s.ventes.ListRetours(ctx, id)
	if err != nil {
		return nil, err
	}
	for i := range retours {
		resp.Retours = append(resp.Retours, venteToResponse(&retours[i]))
	}
	return &resp, nil
}

// ── Compensation helpers ─────────────────────────────────────────────────────

// verrouillerLots locks the distinct lots referenced by lines, in the order
// a sale would lock them, and returns their quantities before the restock.
func (s *venteService) verrouillerLots(ctx context.Context, tx *gorm.DB, lignes []model.DetailVente) (map[uuid.UUID]int, error) {
	var ids []uuid.UUID
	vus := make(map[uuid.UUID]bool)
	for _, l := range lignes {
		if l.LotID != nil && !vus[*l.LotID] {
			vus[*l.LotID] = true
			ids = append(ids, *l.LotID)
		}
	}
	// Medicament and expiry never change once a lot exists, so an unlocked
	// read is enough to order the locks.
	lots, err := s.lots.FindByIDsTx(ctx, tx, ids)
	if err != nil {
		return nil, err
	}
	trouves := make(map[uuid.UUID]bool, len(lots))
	for _, l := range lots {
		trouves[l.ID] = true
	}
	for _, id := range ids {
		if !trouves[id] {
			return nil, notFound(gorm.ErrRecordNotFound, "lot", id)
		}
	}
	avant := make(map[uuid.UUID]int, len(ids))
	for _, l := range ordreVerrouillageLots(lots) {
		lot, err := s.lots.FindByIDForUpdateTx(ctx, tx, l.ID)
		if err != nil {
			return nil, notFound(err, "lot", l.ID)
		}
		avant[l.ID] = lot.QuantiteActuelle
	}
	return avant, nil
}

// restocker puts quantite units back into each line's lot and appends the
// matching "retour" movements, attributed to venteID.
func (s *venteService) restocker(ctx context.Context, tx *gorm.DB, acteur model.Acteur, venteID uuid.UUID, lignes []model.DetailVente, quantites []int, motif string, avant map[uuid.UUID]int) ([]lotModifie, error) {
	now := s.now()
	apres := make(map[uuid.UUID]int, len(avant))
	for id, q := range avant {
		apres[id] = q
	}
	mouvements := make([]*model.MouvementStock, 0, len(lignes))
	for i, l := range lignes {
		q := quantites[i]
		if l.LotID != nil {
			if err := s.lots.IncrementTx(ctx, tx, *l.LotID, q); err != nil {
				return nil, fmt.Errorf("réintégration lot %s: %w", *l.LotID, err)
			}
			apres[*l.LotID] += q
		}
		mouvements = append(mouvements, &model.MouvementStock{
			MedicamentID:  l.MedicamentID,
			LotID:         l.LotID,
			VenteID:       &venteID,
			Quantite:      q,
			Type:          model.MouvementRetour,
			Motif:         motif,
			UtilisateurID: acteur.UtilisateurID,
			CreatedAt:     now,
		})
	}
	if err := s.ledger.AppendTx(ctx, tx, mouvements...); err != nil {
		return nil, fmt.Errorf("écriture mouvements: %w", err)
	}

	modifies := make([]lotModifie, 0, len(avant))
	for _, id := range ordreVerrouillage(keys(avant)) {
		modifies = append(modifies, lotModifie{LotID: id, Avant: avant[id], Apres: apres[id]})
	}
	return modifies, nil
}

func keys(m map[uuid.UUID]int) []uuid.UUID {
	out := make([]uuid.UUID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

// ── AnnulerVente ─────────────────────────────────────────────────────────────
// completed → cancelled. Every line's quantity goes back to its lot.

func (s *venteService) AnnulerVente(ctx context.Context, acteur model.Acteur, id uuid.UUID, req dto.AnnulerVenteRequest) (*dto.VenteResponse, error) {
	if req.Motif == "" {
		return nil, invalide("motif", "requis")
	}

	var (
		vente    *model.Vente
		avant    map[string]any
		modifies []lotModifie
	)
	err := runTx(ctx, s.ventes.DB(), func(tx *gorm.DB) error {
		v, err := s.ventes.FindByIDForUpdateTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "vente", id)
		}
		if !v.Statut.PeutPasserA(model.VenteCancelled) {
			return &AlreadyProcessedError{Entite: "vente", Statut: string(v.Statut)}
		}
		avant = snapshotVente(v)

		lots, err := s.verrouillerLots(ctx, tx, v.Lignes)
		if err != nil {
			return err
		}
		quantites := make([]int, len(v.Lignes))
		for i, l := range v.Lignes {
			quantites[i] = l.Quantite
		}
		if modifies, err = s.restocker(ctx, tx, acteur, v.ID, v.Lignes, quantites, "Annulation: "+req.Motif, lots); err != nil {
			return err
		}

		motif, at := req.Motif, s.now()
		if err := s.ventes.AnnulerTx(ctx, tx, v.ID, v.Statut, acteur.UtilisateurID, at, motif); err != nil {
			return fmt.Errorf("mise à jour statut: %w", err)
		}
		v.Statut = model.VenteCancelled
		v.Motif = &motif
		v.AnnuleeLe = &at
		v.AnnuleePar = &acteur.UtilisateurID
		vente = v
		return nil
	})
	if err != nil {
		return nil, err
	}

	now := s.now()
	log.Info().Str("vente_id", id.String()).Str("motif", req.Motif).Msg("vente annulée")
	publier(ctx, s.sink, append([]audit.Event{{
		Entite:        "vente",
		EntiteID:      vente.ID,
		Action:        audit.Updated,
		UtilisateurID: acteur.UtilisateurID,
		Avant:         avant,
		Apres:         snapshotVente(vente),
		At:            now,
	}}, evenementsLots(modifies, acteur, now)...)...)

	resp := venteToResponse(vente)
	return &resp, nil
}

// ── RetournerPartiel ─────────────────────────────────────────────────────────
// Creates a new "returned" sale holding negative lines for the returned
// subset. The original is stamped returned_partially on its first return only.

func (s *venteService) RetournerPartiel(ctx context.Context, acteur model.Acteur, id uuid.UUID, req dto.RetourVenteRequest) (*dto.RetourVenteResponse, error) {
	if req.Motif == "" {
		return nil, invalide("motif", "requis")
	}
	demandes, ordre, err := fusionnerRetours(req.Lignes)
	if err != nil {
		return nil, err
	}

	var (
		retour, originale *model.Vente
		avant             map[string]any
		modifies          []lotModifie
	)
	err = runTx(ctx, s.ventes.DB(), func(tx *gorm.DB) error {
		v, err := s.ventes.FindByIDForUpdateTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "vente", id)
		}
		if !v.Statut.PeutPasserA(model.VenteReturnedPartially) {
			return &AlreadyProcessedError{Entite: "vente", Statut: string(v.Statut)}
		}
		avant = snapshotVente(v)

		deja, err := s.ventes.QuantitesRetourneesTx(ctx, tx, v.ID)
		if err != nil {
			return err
		}
		parID := make(map[uuid.UUID]model.DetailVente, len(v.Lignes))
		for _, l := range v.Lignes {
			parID[l.ID] = l
		}

		var (
			lignes    []model.DetailVente
			quantites []int
		)
		for _, ligneID := range ordre {
			l, ok := parID[ligneID]
			if !ok {
				return &NotFoundError{Entite: "ligne de vente", ID: ligneID}
			}
			q := demandes[ligneID]
			if q > l.Quantite-deja[ligneID] {
				return &ReturnExceedsOriginalError{
					LigneID: ligneID, Vendu: l.Quantite, DejaRetourne: deja[ligneID], Demande: q,
				}
			}
			lignes = append(lignes, l)
			quantites = append(quantites, q)
		}

		now := s.now()
		r := &model.Vente{
			CaissierID:     acteur.UtilisateurID,
			OrdonnanceID:   v.OrdonnanceID,
			PatientID:      v.PatientID,
			VenteOrigineID: &v.ID,
			ModePaiement:   v.ModePaiement,
			Statut:         model.VenteReturned,
			Motif:          &req.Motif,
			CreatedAt:      now,
		}
		total, client, assurance := decimal.Zero, decimal.Zero, decimal.Zero
		for i, l := range lignes {
			ligneOrigine := l.ID
			sousTotal := l.PrixUnitaire.Mul(decimalInt(-quantites[i]))
			partClient, partAssurance := repartir(sousTotal, l.TauxAssurance)
			r.Lignes = append(r.Lignes, model.DetailVente{
				MedicamentID:   l.MedicamentID,
				LotID:          l.LotID,
				LigneOrigineID: &ligneOrigine,
				Rang:           i,
				Quantite:       -quantites[i],
				PrixUnitaire:   l.PrixUnitaire,
				TauxAssurance:  l.TauxAssurance,
				PartClient:     partClient,
				PartAssurance:  partAssurance,
				CreatedAt:      now,
			})
			total = total.Add(sousTotal)
			client = client.Add(partClient)
			assurance = assurance.Add(partAssurance)
		}
		r.Total = total
		r.MontantPayeClient = client
		r.MontantDuParAssurance = assurance
		r.MontantRendu = client.Neg()
		if err := s.ventes.CreateTx(ctx, tx, r); err != nil {
			return fmt.Errorf("création retour: %w", err)
		}

		lots, err := s.verrouillerLots(ctx, tx, lignes)
		if err != nil {
			return err
		}
		if modifies, err = s.restocker(ctx, tx, acteur, r.ID, lignes, quantites, "Retour: "+req.Motif, lots); err != nil {
			return err
		}

		if v.Statut == model.VenteCompleted {
			if err := s.ventes.UpdateStatutTx(ctx, tx, v.ID, v.Statut, model.VenteReturnedPartially, nil); err != nil {
				return fmt.Errorf("mise à jour statut: %w", err)
			}
			v.Statut = model.VenteReturnedPartially
		}
		retour, originale = r, v
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("vente_id", id.String()).
		Str("retour_id", retour.ID.String()).
		Str("total", retour.Total.StringFixed(2)).
		Msg("retour partiel enregistré")
	events := []audit.Event{evenementCreation("vente", retour.ID, acteur, snapshotVente(retour), retour.CreatedAt)}
	if avant["statut"] != originale.Statut {
		events = append(events, audit.Event{
			Entite:        "vente",
			EntiteID:      originale.ID,
			Action:        audit.Updated,
			UtilisateurID: acteur.UtilisateurID,
			Avant:         avant,
			Apres:         snapshotVente(originale),
			At:            retour.CreatedAt,
		})
	}
	publier(ctx, s.sink, append(events, evenementsLots(modifies, acteur, retour.CreatedAt)...)...)

	return &dto.RetourVenteResponse{
		Retour:    venteToResponse(retour),
		Originale: venteToResponse(originale),
	}, nil
}

// fusionnerRetours sums quantities per sold line, keeping first-seen order.
func fusionnerRetours(lignes []dto.LigneRetourRequest) (map[uuid.UUID]int, []uuid.UUID, error) {
	if len(lignes) == 0 {
		return nil, nil, invalide("lignes", "au moins une ligne est requise")
	}
	quantites := make(map[uuid.UUID]int, len(lignes))
	var ordre []uuid.UUID
	for i, l := range lignes {
		id, err := parseUUID(fmt.Sprintf("lignes[%d].ligne_id", i), l.LigneID)
		if err != nil {
			return nil, nil, err
		}
		if l.Quantite <= 0 {
			return nil, nil, invalide(fmt.Sprintf("lignes[%d].quantite", i), "doit être positive")
		}
		if _, ok := quantites[id]; !ok {
			ordre = append(ordre, id)
		}
		quantites[id] += l.Quantite
	}
	return quantites, ordre, nil
}
