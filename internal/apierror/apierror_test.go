package apierror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kananavy/pharmacie/internal/service"
)

func TestFromError(t *testing.T) {
	id := uuid.New()
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", &service.ValidationError{Field: "lignes", Msg: "requis"}, http.StatusUnprocessableEntity, CodeValidation},
		{"not found", &service.NotFoundError{Entite: "vente", ID: id}, http.StatusNotFound, CodeNotFound},
		{"stock", &service.InsufficientStockError{MedicamentID: id, Disponible: 3, Demande: 5}, http.StatusConflict, CodeInsufficientStock},
		{"prescription", &service.PrescriptionRequiredError{MedicamentID: id}, http.StatusUnprocessableEntity, CodePrescriptionRequired},
		{"already processed", &service.AlreadyProcessedError{Entite: "commande", Statut: "paid"}, http.StatusConflict, CodeAlreadyProcessed},
		{"payment", &service.InsufficientPaymentError{Du: decimal.NewFromInt(10), Recu: decimal.NewFromInt(5)}, http.StatusUnprocessableEntity, CodeInsufficientPayment},
		{"return", &service.ReturnExceedsOriginalError{LigneID: id, Vendu: 2, Demande: 3}, http.StatusConflict, CodeReturnExceeds},
		{"theoretical", &service.TheoreticalMismatchError{Fourni: decimal.NewFromInt(1), Recalcule: decimal.NewFromInt(2)}, http.StatusConflict, CodeTheoreticalMismatch},
		{"overflow wrapped", fmt.Errorf("ajustement: %w", service.ErrLotOverflow), http.StatusUnprocessableEntity, CodeLotOverflow},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			status, body, ok := FromError(fmt.Errorf("contexte: %w", tc.err))
			require.True(t, ok)
			assert.Equal(t, tc.status, status)
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Detail)
		})
	}
}

func TestFromError_ContextCarriesStructuredFields(t *testing.T) {
	id := uuid.New()
	_, body, _ := FromError(&service.InsufficientStockError{MedicamentID: id, Disponible: 3, Demande: 5})
	assert.Equal(t, id.String(), body.Context["medicament_id"])
	assert.Equal(t, 3, body.Context["disponible"])
	assert.Equal(t, 5, body.Context["demande"])
}

func TestFromError_UnknownIsInternal(t *testing.T) {
	status, body, ok := FromError(errors.New("pq: connection refused"))
	assert.False(t, ok)
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.NotContains(t, body.Detail, "pq")
}
