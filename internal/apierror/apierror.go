// Package apierror provides standardized error response structures for the API.
// All errors returned to clients go through this package to ensure consistency
// and to prevent leaking internal details (stack traces, DB errors, etc.).
package apierror

import (
	"errors"
	"net/http"

	"github.com/kananavy/pharmacie/internal/service"
)

// Stable machine-readable codes carried in APIError.Code.
const (
	CodeValidation           = "validation"
	CodeNotFound             = "not_found"
	CodeInsufficientStock    = "insufficient_stock"
	CodePrescriptionRequired = "prescription_required"
	CodeAlreadyProcessed     = "already_processed"
	CodeInsufficientPayment  = "insufficient_payment"
	CodeReturnExceeds        = "return_exceeds_original"
	CodeTheoreticalMismatch  = "theoretical_mismatch"
	CodeLotOverflow          = "lot_overflow"
	CodeConflict             = "conflict"
	CodeUnauthorized         = "unauthorized"
	CodeForbidden            = "forbidden"
	CodeRateLimited          = "rate_limited"
	CodeInternal             = "internal"
)

// APIError is the canonical error envelope for all 4xx/5xx HTTP responses.
type APIError struct {
	Detail  string         `json:"detail"`
	Code    string         `json:"code,omitempty"`
	Context map[string]any `json:"context,omitempty"`
}

func New(msg string) *APIError {
	return &APIError{Detail: msg}
}

func WithCode(code, msg string) *APIError {
	return &APIError{Detail: msg, Code: code}
}

// Validation wraps multiple field errors.
type ValidationError struct {
	Detail string            `json:"detail"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields"`
}

func NewValidation(fields map[string]string) *ValidationError {
	return &ValidationError{Detail: "Erreur de validation", Code: CodeValidation, Fields: fields}
}

// FromError maps a service error to its HTTP status and envelope. ok is false
// for errors the domain does not know about; those must be logged and
// answered with a generic 500.
func FromError(err error) (status int, body *APIError, ok bool) {
	var (
		validation *service.ValidationError
		notFound   *service.NotFoundError
		stock      *service.InsufficientStockError
		presc      *service.PrescriptionRequiredError
		deja       *service.AlreadyProcessedError
		paiement   *service.InsufficientPaymentError
		retour     *service.ReturnExceedsOriginalError
		theorique  *service.TheoreticalMismatchError
	)
	switch {
	case errors.As(err, &validation):
		return http.StatusUnprocessableEntity, &APIError{
			Detail:  err.Error(),
			Code:    CodeValidation,
			Context: map[string]any{"field": validation.Field},
		}, true
	case errors.As(err, &notFound):
		return http.StatusNotFound, &APIError{
			Detail:  err.Error(),
			Code:    CodeNotFound,
			Context: map[string]any{"entite": notFound.Entite, "id": notFound.ID.String()},
		}, true
	case errors.As(err, &stock):
		return http.StatusConflict, &APIError{
			Detail: err.Error(),
			Code:   CodeInsufficientStock,
			Context: map[string]any{
				"medicament_id": stock.MedicamentID.String(),
				"disponible":    stock.Disponible,
				"demande":       stock.Demande,
			},
		}, true
	case errors.As(err, &presc):
		return http.StatusUnprocessableEntity, &APIError{
			Detail:  err.Error(),
			Code:    CodePrescriptionRequired,
			Context: map[string]any{"medicament_id": presc.MedicamentID.String()},
		}, true
	case errors.As(err, &deja):
		return http.StatusConflict, &APIError{
			Detail:  err.Error(),
			Code:    CodeAlreadyProcessed,
			Context: map[string]any{"entite": deja.Entite, "statut": deja.Statut},
		}, true
	case errors.As(err, &paiement):
		return http.StatusUnprocessableEntity, &APIError{
			Detail: err.Error(),
			Code:   CodeInsufficientPayment,
			Context: map[string]any{
				"du":   paiement.Du.StringFixed(2),
				"recu": paiement.Recu.StringFixed(2),
			},
		}, true
	case errors.As(err, &retour):
		return http.StatusConflict, &APIError{
			Detail: err.Error(),
			Code:   CodeReturnExceeds,
			Context: map[string]any{
				"ligne_id":      retour.LigneID.String(),
				"vendu":         retour.Vendu,
				"deja_retourne": retour.DejaRetourne,
				"demande":       retour.Demande,
			},
		}, true
	case errors.As(err, &theorique):
		return http.StatusConflict, &APIError{
			Detail: err.Error(),
			Code:   CodeTheoreticalMismatch,
			Context: map[string]any{
				"fourni":    theorique.Fourni.StringFixed(2),
				"recalcule": theorique.Recalcule.StringFixed(2),
			},
		}, true
	case errors.Is(err, service.ErrLotOverflow):
		return http.StatusUnprocessableEntity, WithCode(CodeLotOverflow, "la quantité dépasserait la quantité initiale du lot"), true
	case errors.Is(err, service.ErrInsufficientLotQuantity):
		return http.StatusConflict, WithCode(CodeConflict, "quantité du lot insuffisante"), true
	case errors.Is(err, service.ErrNotFound):
		return http.StatusNotFound, WithCode(CodeNotFound, err.Error()), true
	case errors.Is(err, service.ErrValidation):
		return http.StatusUnprocessableEntity, WithCode(CodeValidation, err.Error()), true
	}
	return http.StatusInternalServerError, WithCode(CodeInternal, "Erreur interne du serveur"), false
}
