package service

import (
	"time"

	"github.com/google/uuid"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/model"
)

func idPtr(id *uuid.UUID) *string {
	if id == nil {
		return nil
	}
	s := id.String()
	return &s
}

func horodatage(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func venteToResponse(v *model.Vente) dto.VenteResponse {
	resp := dto.VenteResponse{
		ID:                    v.ID.String(),
		Statut:                string(v.Statut),
		Total:                 v.Total,
		CaissierID:            v.CaissierID.String(),
		CommandeID:            idPtr(v.CommandeID),
		OrdonnanceID:          idPtr(v.OrdonnanceID),
		PatientID:             idPtr(v.PatientID),
		VenteOrigineID:        idPtr(v.VenteOrigineID),
		ModePaiement:          string(v.ModePaiement),
		MontantRecu:           v.MontantRecu,
		MontantRendu:          v.MontantRendu,
		MontantPayeClient:     v.MontantPayeClient,
		MontantDuParAssurance: v.MontantDuParAssurance,
		Motif:                 v.Motif,
		Lignes:                make([]dto.LigneVenteResponse, 0, len(v.Lignes)),
		CreatedAt:             horodatage(v.CreatedAt),
		AnnuleePar:            idPtr(v.AnnuleePar),
	}
	if v.AnnuleeLe != nil {
		h := horodatage(*v.AnnuleeLe)
		resp.AnnuleeLe = &h
	}
	for _, l := range v.Lignes {
		ligne := dto.LigneVenteResponse{
			ID:             l.ID.String(),
			MedicamentID:   l.MedicamentID.String(),
			LotID:          idPtr(l.LotID),
			LigneOrigineID: idPtr(l.LigneOrigineID),
			Quantite:       l.Quantite,
			PrixUnitaire:   l.PrixUnitaire,
			SousTotal:      l.SousTotal(),
			TauxAssurance:  l.TauxAssurance,
			PartClient:     l.PartClient,
			PartAssurance:  l.PartAssurance,
		}
		if l.Medicament != nil {
			ligne.Medicament = l.Medicament.Nom
		}
		resp.Lignes = append(resp.Lignes, ligne)
	}
	return resp
}

func commandeToResponse(c *model.Commande) dto.CommandeResponse {
	resp := dto.CommandeResponse{
		ID:           c.ID.String(),
		NumeroTicket: c.NumeroTicket,
		Statut:       string(c.Statut),
		VendeurID:    c.VendeurID.String(),
		PatientID:    idPtr(c.PatientID),
		OrdonnanceID: idPtr(c.OrdonnanceID),
		VenteID:      idPtr(c.VenteID),
		Notes:        c.Notes,
		Total:        c.Total,
		Lignes:       make([]dto.LigneCommandeResponse, 0, len(c.Lignes)),
		CreatedAt:    horodatage(c.CreatedAt),
	}
	for _, l := range c.Lignes {
		ligne := dto.LigneCommandeResponse{
			MedicamentID: l.MedicamentID.String(),
			Quantite:     l.Quantite,
			PrixUnitaire: l.PrixUnitaire,
			SousTotal:    l.PrixUnitaire.Mul(decimalInt(l.Quantite)),
		}
		if l.Medicament != nil {
			ligne.Medicament = l.Medicament.Nom
		}
		resp.Lignes = append(resp.Lignes, ligne)
	}
	return resp
}

func medicamentToResponse(m *model.Medicament) dto.MedicamentResponse {
	return dto.MedicamentResponse{
		ID:                m.ID.String(),
		Nom:               m.Nom,
		Code:              m.Code,
		Categorie:         m.Categorie,
		Prix:              m.Prix,
		PrixAchat:         m.PrixAchat,
		OrdonnanceRequise: m.OrdonnanceRequise,
		SeuilAlerte:       m.SeuilAlerte,
		MaxStock:          m.MaxStock,
		Actif:             m.Actif,
	}
}

func lotToResponse(l *model.Lot) dto.LotResponse {
	resp := dto.LotResponse{
		ID:               l.ID.String(),
		MedicamentID:     l.MedicamentID.String(),
		FournisseurID:    idPtr(l.FournisseurID),
		NumeroLot:        l.NumeroLot,
		QuantiteInitiale: l.QuantiteInitiale,
		QuantiteActuelle: l.QuantiteActuelle,
		QuantiteAjoutee:  l.QuantiteAjoutee,
		PrixAchat:        l.PrixAchat,
		DateExpiration:   l.DateExpiration.UTC().Format(dateLayout),
	}
	if l.DateFabrication != nil {
		s := l.DateFabrication.UTC().Format(dateLayout)
		resp.DateFabrication = &s
	}
	if l.Medicament != nil {
		resp.Medicament = l.Medicament.Nom
	}
	return resp
}

func mouvementToResponse(m *model.MouvementStock) dto.MouvementResponse {
	resp := dto.MouvementResponse{
		ID:            m.ID.String(),
		MedicamentID:  m.MedicamentID.String(),
		LotID:         idPtr(m.LotID),
		VenteID:       idPtr(m.VenteID),
		Quantite:      m.Quantite,
		Type:          string(m.Type),
		Motif:         m.Motif,
		UtilisateurID: m.UtilisateurID.String(),
		CreatedAt:     horodatage(m.CreatedAt),
	}
	if m.Medicament != nil {
		resp.Medicament = m.Medicament.Nom
	}
	return resp
}

func clotureToResponse(c *model.ClotureCaisse) dto.ClotureResponse {
	return dto.ClotureResponse{
		ID:             c.ID.String(),
		CaissierID:     c.CaissierID.String(),
		DateOuverture:  horodatage(c.DateOuverture),
		DateCloture:    horodatage(c.DateCloture),
		TotalTheorique: c.TotalTheorique,
		TotalReel:      c.TotalReel,
		Ecart:          c.Ecart,
		Commentaires:   c.Commentaires,
	}
}
