package service

import (
	"bytes"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kananavy/pharmacie/internal/model"
)

// prelevement is the quantity taken from one lot for one sale line.
type prelevement struct {
	Lot      model.Lot
	Quantite int
}

// trierFEFO orders lots by expiry date, then by id.
func trierFEFO(lots []model.Lot) {
	sort.SliceStable(lots, func(i, j int) bool {
		if !lots[i].DateExpiration.Equal(lots[j].DateExpiration) {
			return lots[i].DateExpiration.Before(lots[j].DateExpiration)
		}
		return bytes.Compare(lots[i].ID[:], lots[j].ID[:]) < 0
	})
}

// planAllocation walks the allocatable lots in FEFO order, consuming each one
// to exhaustion before touching the next, until demande units are covered.
// Nothing is taken when the lots cannot cover the whole quantity.
func planAllocation(med model.Medicament, lots []model.Lot, demande int, now time.Time) ([]prelevement, error) {
	allouables := make([]model.Lot, 0, len(lots))
	disponible := 0
	for _, l := range lots {
		if l.MedicamentID == med.ID && l.Allouable(now) {
			allouables = append(allouables, l)
			disponible += l.QuantiteActuelle
		}
	}
	if disponible < demande {
		return nil, &InsufficientStockError{
			MedicamentID: med.ID,
			Nom:          med.Nom,
			Disponible:   disponible,
			Demande:      demande,
		}
	}
	trierFEFO(allouables)

	restant := demande
	plan := make([]prelevement, 0, 2)
	for _, l := range allouables {
		if restant == 0 {
			break
		}
		pris := min(restant, l.QuantiteActuelle)
		plan = append(plan, prelevement{Lot: l, Quantite: pris})
		restant -= pris
	}
	return plan, nil
}

// ordreVerrouillage returns medicament ids ascending so that concurrent sales
// lock lots in the same order.
func ordreVerrouillage(ids []uuid.UUID) []uuid.UUID {
	out := append([]uuid.UUID(nil), ids...)
	sort.Slice(out, func(i, j int) bool { return bytes.Compare(out[i][:], out[j][:]) < 0 })
	return out
}

// ordreVerrouillageLots sorts lots the way a sale acquires them: medicament
// in ordreVerrouillage order, then FEFO within a medicament. Compensations
// that lock lots of several medicaments must follow the same order.
func ordreVerrouillageLots(lots []model.Lot) []model.Lot {
	out := append([]model.Lot(nil), lots...)
	sort.SliceStable(out, func(i, j int) bool {
		if c := bytes.Compare(out[i].MedicamentID[:], out[j].MedicamentID[:]); c != 0 {
			return c < 0
		}
		if !out[i].DateExpiration.Equal(out[j].DateExpiration) {
			return out[i].DateExpiration.Before(out[j].DateExpiration)
		}
		return bytes.Compare(out[i].ID[:], out[j].ID[:]) < 0
	})
	return out
}
