package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/middleware"
	"github.com/kananavy/pharmacie/internal/service"
)

type VentesHandler struct{ svc service.VenteService }

func NewVentesHandler(svc service.VenteService) *VentesHandler { return &VentesHandler{svc: svc} }

// Creer godoc
// @Summary      Enregistrer une vente
// @Description  Valide toutes les lignes, alloue les lots FEFO et écrit la vente, les décréments et le journal dans une transaction.
// @Tags         ventes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        body body dto.CreerVenteRequest true "Lignes et paiement"
// @Success      201  {object} dto.VenteResponse
// @Failure      409  {object} apierror.APIError
// @Failure      422  {object} apierror.APIError
// @Router       /v1/ventes [post]
func (h *VentesHandler) Creer(c *gin.Context) {
	var req dto.CreerVenteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreerVente(c.Request.Context(), middleware.Acteur(c), req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Obtenir godoc
// @Summary      Détail d'une vente avec ses retours
// @Tags         ventes
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string true "UUID de la vente"
// @Success      200  {object} dto.VenteResponse
// @Failure      404  {object} apierror.APIError
// @Router       /v1/ventes/{id} [get]
func (h *VentesHandler) Obtenir(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ObtenirVente(c.Request.Context(), id)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Annuler godoc
// @Summary      Annuler une vente
// @Description  completed → cancelled; chaque ligne est réintégrée dans son lot.
// @Tags         ventes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                  true "UUID de la vente"
// @Param        body body     dto.AnnulerVenteRequest true "Motif"
// @Success      200  {object} dto.VenteResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/ventes/{id}/annulation [post]
func (h *VentesHandler) Annuler(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req dto.AnnulerVenteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AnnulerVente(c.Request.Context(), middleware.Acteur(c), id, req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Retourner godoc
// @Summary      Retour partiel
// @Description  Crée une transaction de retour aux lignes négatives et réintègre les quantités.
// @Tags         ventes
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        id   path     string                 true "UUID de la vente d'origine"
// @Param        body body     dto.RetourVenteRequest true "Lignes retournées"
// @Success      201  {object} dto.RetourVenteResponse
// @Failure      409  {object} apierror.APIError
// @Router       /v1/ventes/{id}/retours [post]
func (h *VentesHandler) Retourner(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req dto.RetourVenteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RetournerPartiel(c.Request.Context(), middleware.Acteur(c), id, req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
