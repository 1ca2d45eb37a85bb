package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/middleware"
	"github.com/kananavy/pharmacie/internal/service"
)

// CaisseHandler reconciles the authenticated cashier's own register.
type CaisseHandler struct{ svc service.CaisseService }

func NewCaisseHandler(svc service.CaisseService) *CaisseHandler { return &CaisseHandler{svc: svc} }

func (h *CaisseHandler) Courante(c *gin.Context) {
	resp, err := h.svc.CaisseCourante(c.Request.Context(), middleware.Acteur(c))
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CaisseHandler) Cloturer(c *gin.Context) {
	var req dto.CloturerCaisseRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Cloturer(c.Request.Context(), middleware.Acteur(c), req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CaisseHandler) Historique(c *gin.Context) {
	var q dto.HistoriqueCaisseQuery
	if !bindQuery(c, &q) {
		return
	}
	resp, err := h.svc.Historique(c.Request.Context(), middleware.Acteur(c), q.Limit)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
