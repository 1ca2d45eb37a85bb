package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/middleware"
	"github.com/kananavy/pharmacie/internal/service"
)

type StockHandler struct{ svc service.StockService }

func NewStockHandler(svc service.StockService) *StockHandler { return &StockHandler{svc: svc} }

func (h *StockHandler) RecevoirLot(c *gin.Context) {
	var req dto.ReceptionLotRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecevoirLot(c.Request.Context(), middleware.Acteur(c), req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *StockHandler) AjusterLot(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	var req dto.AjustementLotRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AjusterLot(c.Request.Context(), middleware.Acteur(c), id, req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Alertes(c *gin.Context) {
	resp, err := h.svc.Alertes(c.Request.Context())
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Mouvements(c *gin.Context) {
	var filter dto.MouvementFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListerMouvements(c.Request.Context(), filter)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LotsDuMedicament lists the lots of the medicament named in the path.
func (h *StockHandler) LotsDuMedicament(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	resp, err := h.svc.ListerLots(c.Request.Context(), id)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
