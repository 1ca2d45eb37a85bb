package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
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

// CommandeService stages orders. A pending order reserves nothing; stock is
// only checked when the cashier takes payment.
type CommandeService interface {
	CreerCommande(ctx context.Context, acteur model.Acteur, req dto.CreerCommandeRequest) (*dto.CommandeResponse, error)
	ObtenirCommande(ctx context.Context, id uuid.UUID) (*dto.CommandeResponse, error)
	ListerEnAttente(ctx context.Context) ([]dto.CommandeResponse, error)
	PayerCommande(ctx context.Context, acteur model.Acteur, id uuid.UUID, req dto.PayerCommandeRequest) (*dto.PaiementCommandeResponse, error)
	AnnulerCommande(ctx context.Context, acteur model.Acteur, id uuid.UUID) (*dto.CommandeResponse, error)
}

type commandeService struct {
	moteur      *moteurVente
	commandes   repository.CommandeRepository
	medicaments repository.MedicamentRepository
	ordonnances repository.OrdonnanceRepository
	sink        audit.Sink
	now         func() time.Time
}

func NewCommandeService(commandes repository.CommandeRepository, deps VenteDeps) CommandeService {
	return &commandeService{
		moteur:      deps.moteur(),
		commandes:   commandes,
		medicaments: deps.Medicaments,
		ordonnances: deps.Ordonnances,
		sink:        deps.Sink,
		now:         deps.horloge(),
	}
}

const prefixeTicket = "CMD-"

func jourTicket(jour time.Time) string { return jour.UTC().Format("20060102") }

// numeroTicket formats the n-th ticket of the day as CMD-YYYYMMDD-NNN.
func numeroTicket(jour time.Time, n int) string {
	return fmt.Sprintf("%s%s-%03d", prefixeTicket, jourTicket(jour), n)
}

// rangTicket is the sequence number of dernier when it was issued on jour,
// 0 otherwise.
func rangTicket(jour time.Time, dernier string) int {
	suffixe, ok := strings.CutPrefix(dernier, prefixeTicket+jourTicket(jour)+"-")
	if !ok {
		return 0
	}
	n, _ := strconv.Atoi(suffixe)
	return n
}

func snapshotCommande(c *model.Commande) map[string]any {
	snap := map[string]any{
		"numero_ticket": c.NumeroTicket,
		"statut":        c.Statut,
		"total":         c.Total.StringFixed(2),
		"lignes":        len(c.Lignes),
	}
	if c.VenteID != nil {
		snap["vente_id"] = *c.VenteID
	}
	return snap
}

// ── CreerCommande ────────────────────────────────────────────────────────────

func (s *commandeService) CreerCommande(ctx context.Context, acteur model.Acteur, req dto.CreerCommandeRequest) (*dto.CommandeResponse, error) {
	d, err := demandeDepuisRequete(acteur, req.Lignes, req.PatientID, req.OrdonnanceID, req.Ordonnance)
	if err != nil {
		return nil, err
	}
	lignes, err := fusionnerLignes(d.Lignes)
	if err != nil {
		return nil, err
	}

	meds, err := s.medicaments.FindByIDsTx(ctx, nil, idsDe(lignes))
	if err != nil {
		return nil, fmt.Errorf("lecture catalogue: %w", err)
	}
	avecOrdonnance := d.OrdonnanceID != nil || d.Ordonnance != nil
	total := decimal.Zero
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
		total = total.Add(med.Prix.Mul(decimalInt(l.Quantite)))
	}

	now := s.now()
	c := &model.Commande{
		VendeurID:    acteur.UtilisateurID,
		PatientID:    d.PatientID,
		OrdonnanceID: d.OrdonnanceID,
		Statut:       model.CommandePending,
		Total:        total,
		Notes:        req.Notes,
		CreatedAt:    now,
	}
	for i, l := range lignes {
		c.Lignes = append(c.Lignes, model.DetailCommande{
			MedicamentID: l.MedicamentID,
			Rang:         i,
			Quantite:     l.Quantite,
			PrixUnitaire: meds[l.MedicamentID].Prix,
		})
	}

	err = runTx(ctx, s.commandes.DB(), func(tx *gorm.DB) error {
		if d.Ordonnance != nil {
			o := *d.Ordonnance
			o.CreatedAt = now
			if err := s.ordonnances.CreateTx(ctx, tx, &o); err != nil {
				return fmt.Errorf("création ordonnance: %w", err)
			}
			c.OrdonnanceID = &o.ID
		} else if c.OrdonnanceID != nil {
			if _, err := s.ordonnances.FindByIDTx(ctx, tx, *c.OrdonnanceID); err != nil {
				return notFound(err, "ordonnance", *c.OrdonnanceID)
			}
		}

		// Tickets already stored for the day seed a counter created late.
		dernier, err := s.commandes.LastTicketTx(ctx, tx, prefixeTicket+jourTicket(now)+"-")
		if err != nil {
			return err
		}
		n, err := s.commandes.NextTicketTx(ctx, tx, jourTicket(now), rangTicket(now, dernier))
		if err != nil {
			return fmt.Errorf("numéro de ticket: %w", err)
		}
		c.NumeroTicket = numeroTicket(now, n)
		return s.commandes.CreateTx(ctx, tx, c)
	})
	if err != nil {
		return nil, err
	}

	for i := range c.Lignes {
		med := meds[c.Lignes[i].MedicamentID]
		c.Lignes[i].Medicament = &med
	}
	log.Info().Str("commande_id", c.ID.String()).Str("ticket", c.NumeroTicket).Msg("commande créée")
	publier(ctx, s.sink, evenementCreation("commande", c.ID, acteur, snapshotCommande(c), now))

	resp := commandeToResponse(c)
	return &resp, nil
}

func (s *commandeService) ObtenirCommande(ctx context.Context, id uuid.UUID) (*dto.CommandeResponse, error) {
	c, err := s.commandes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "commande", id)
	}
	resp := commandeToResponse(c)
	return &resp, nil
}

func (s *commandeService) ListerEnAttente(ctx context.Context) ([]dto.CommandeResponse, error) {
	commandes, err := s.commandes.ListPending(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]dto.CommandeResponse, 0, len(commandes))
	for i := range commandes {
		out = append(out, commandeToResponse(&commandes[i]))
	}
	return out, nil
}

// ── PayerCommande ────────────────────────────────────────────────────────────
// pending → paid, producing exactly one sale at the current catalog price.

func (s *commandeService) PayerCommande(ctx context.Context, acteur model.Acteur, id uuid.UUID, req dto.PayerCommandeRequest) (*dto.PaiementCommandeResponse, error) {
	c, err := s.commandes.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "commande", id)
	}
	if c.Statut != model.CommandePending {
		return nil, &AlreadyProcessedError{Entite: "commande", Statut: string(c.Statut)}
	}

	d := demandeVente{
		ModePaiement:  model.ModePaiement(req.ModePaiement),
		MontantRecu:   req.MontantRecu,
		TauxAssurance: req.TauxAssurance,
		PatientID:     c.PatientID,
		OrdonnanceID:  c.OrdonnanceID,
		CommandeID:    &c.ID,
		Acteur:        acteur,
	}
	for _, l := range c.Lignes {
		d.Lignes = append(d.Lignes, ligneDemandee{MedicamentID: l.MedicamentID, Quantite: l.Quantite})
	}
	validee, err := s.moteur.valider(ctx, d)
	if err != nil {
		return nil, err
	}

	var (
		vente    *model.Vente
		modifies []lotModifie
		avant    map[string]any
	)
	err = runTx(ctx, s.commandes.DB(), func(tx *gorm.DB) error {
		locked, err := s.commandes.FindByIDForUpdateTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "commande", id)
		}
		if locked.Statut != model.CommandePending {
			return &AlreadyProcessedError{Entite: "commande", Statut: string(locked.Statut)}
		}
		avant = snapshotCommande(locked)

		if vente, modifies, err = s.moteur.executerTx(ctx, tx, validee); err != nil {
			return err
		}
		if err := s.commandes.MarkPaidTx(ctx, tx, id, vente.ID); err != nil {
			return fmt.Errorf("commande %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.Statut = model.CommandePaid
	c.VenteID = &vente.ID
	log.Info().
		Str("commande_id", id.String()).
		Str("vente_id", vente.ID.String()).
		Str("total", vente.Total.StringFixed(2)).
		Msg("commande payée")
	events := []audit.Event{
		{
			Entite:        "commande",
			EntiteID:      c.ID,
			Action:        audit.Updated,
			UtilisateurID: acteur.UtilisateurID,
			Avant:         avant,
			Apres:         snapshotCommande(c),
			At:            vente.CreatedAt,
		},
		evenementCreation("vente", vente.ID, acteur, snapshotVente(vente), vente.CreatedAt),
	}
	publier(ctx, s.sink, append(events, evenementsLots(modifies, acteur, vente.CreatedAt)...)...)

	return &dto.PaiementCommandeResponse{
		Commande: commandeToResponse(c),
		Vente:    venteToResponse(vente),
	}, nil
}

// ── AnnulerCommande ──────────────────────────────────────────────────────────

func (s *commandeService) AnnulerCommande(ctx context.Context, acteur model.Acteur, id uuid.UUID) (*dto.CommandeResponse, error) {
	var (
		c     *model.Commande
		avant map[string]any
	)
	err := runTx(ctx, s.commandes.DB(), func(tx *gorm.DB) error {
		locked, err := s.commandes.FindByIDForUpdateTx(ctx, tx, id)
		if err != nil {
			return notFound(err, "commande", id)
		}
		if locked.Statut != model.CommandePending {
			return &AlreadyProcessedError{Entite: "commande", Statut: string(locked.Statut)}
		}
		avant = snapshotCommande(locked)
		if err := s.commandes.MarkCancelledTx(ctx, tx, id); err != nil {
			return fmt.Errorf("commande %s: %w", id, err)
		}
		locked.Statut = model.CommandeCancelled
		c = locked
		return nil
	})
	if err != nil {
		return nil, err
	}

	log.Info().Str("commande_id", id.String()).Msg("commande annulée")
	publier(ctx, s.sink, audit.Event{
		Entite:        "commande",
		EntiteID:      c.ID,
		Action:        audit.Updated,
		UtilisateurID: acteur.UtilisateurID,
		Avant:         avant,
		Apres:         snapshotCommande(c),
		At:            s.now(),
	})

	resp := commandeToResponse(c)
	return &resp, nil
}
