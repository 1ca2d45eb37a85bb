package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kananavy/pharmacie/internal/dto"
	"github.com/kananavy/pharmacie/internal/middleware"
	"github.com/kananavy/pharmacie/internal/service"
)

type MedicamentsHandler struct{ svc service.CatalogueService }

func NewMedicamentsHandler(svc service.CatalogueService) *MedicamentsHandler {
	return &MedicamentsHandler{svc: svc}
}

func (h *MedicamentsHandler) Creer(c *gin.Context) {
	var req dto.CreerMedicamentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Creer(c.Request.Context(), middleware.Acteur(c), req)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *MedicamentsHandler) Lister(c *gin.Context) {
	var filter dto.MedicamentFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.Lister(c.Request.Context(), filter)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *MedicamentsHandler) Obtenir(c *gin.Context) {
	id, ok := paramID(c)
	if !ok {
		return
	}
	resp, err := h.svc.Obtenir(c.Request.Context(), id)
	if err != nil {
		echec(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
