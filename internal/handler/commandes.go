package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/middleware"
	"github.com/kananavy/pharmacie/internal/service"
)

type CommandesHandler struct{ svc service.CommandeService }

func NewCommandesHandler(svc service.CommandeService) *CommandesHandler {
	return &CommandesHandler{svc: svc}
}

func (h *CommandesHandler) Creer(c *gin.Context) {
	var req dto.CreerCommandeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreerCommande(c.Request.Context(), middleware.Acteur(c), req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CommandesHandler) EnAttente(c *gin.Context) {
	resp, err := h.svc.ListerEnAttente(c.Request.Context())
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CommandesHandler) Obtenir(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ObtenirCommande(c.Request.Context(), id)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Payer converts the pending order into exactly one sale.
func (h *CommandesHandler) Payer(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req dto.PayerCommandeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.PayerCommande(c.Request.Context(), middleware.Acteur(c), id, req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CommandesHandler) Annuler(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	resp, err := h.svc.AnnulerCommande(c.Request.Context(), middleware.Acteur(c), id)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
