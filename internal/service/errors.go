package service

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/kananavy/pharmacie/internal/repository"
)

// Sentinels. Each typed error below unwraps to its own sentinel so callers
// can match with errors.Is and still reach the structured context with
// errors.As. The lot sentinels come back from quantity guards as is.
var (
	ErrValidation            = errors.New("validation error")
	ErrNotFound              = errors.New("not found")
	ErrInsufficientStock     = errors.New("insufficient stock")
	ErrPrescriptionRequired  = errors.New("prescription required")
	ErrAlreadyProcessed      = errors.New("already processed")
	ErrInsufficientPayment   = errors.New("insufficient payment")
	ErrReturnExceedsOriginal = errors.New("return exceeds original quantity")
	ErrTheoreticalMismatch   = errors.New("theoretical total mismatch")

	ErrInsufficientLotQuantity = repository.ErrInsufficientLotQuantity
	ErrLotOverflow             = repository.ErrLotOverflow
)

// ValidationError reports malformed input.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string { return fmt.Sprintf("%s: %s", e.Field, e.Msg) }
func (e *ValidationError) Unwrap() error { return ErrValidation }

func invalide(field, format string, args ...interface{}) error {
	return &ValidationError{Field: field, Msg: fmt.Sprintf(format, args...)}
}

type NotFoundError struct {
	Entite string
	ID     uuid.UUID
}

func (e *NotFoundError) Error() string { return fmt.Sprintf("%s %s introuvable", e.Entite, e.ID) }
func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// InsufficientStockError: the allocatable quantity does not cover the request.
type InsufficientStockError struct {
	MedicamentID uuid.UUID
	Nom          string
	Disponible   int
	Demande      int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("stock insuffisant pour %s: disponible %d, demandé %d", e.Nom, e.Disponible, e.Demande)
}
func (e *InsufficientStockError) Unwrap() error { return ErrInsufficientStock }

type PrescriptionRequiredError struct {
	MedicamentID uuid.UUID
	Nom          string
}

func (e *PrescriptionRequiredError) Error() string {
	return fmt.Sprintf("%s requiert une ordonnance", e.Nom)
}
func (e *PrescriptionRequiredError) Unwrap() error { return ErrPrescriptionRequired }

// AlreadyProcessedError: the entity is in a state that forbids the transition.
type AlreadyProcessedError struct {
	Entite string
	Statut string
}

func (e *AlreadyProcessedError) Error() string {
	return fmt.Sprintf("%s déjà traitée (statut %s)", e.Entite, e.Statut)
}
func (e *AlreadyProcessedError) Unwrap() error { return ErrAlreadyProcessed }

type InsufficientPaymentError struct {
	Du   decimal.Decimal
	Recu decimal.Decimal
}

func (e *InsufficientPaymentError) Error() string {
	return fmt.Sprintf("paiement insuffisant: dû %s, reçu %s", e.Du.StringFixed(2), e.Recu.StringFixed(2))
}
func (e *InsufficientPaymentError) Unwrap() error { return ErrInsufficientPayment }

type ReturnExceedsOriginalError struct {
	LigneID      uuid.UUID
	Vendu        int
	DejaRetourne int
	Demande      int
}

func (e *ReturnExceedsOriginalError) Error() string {
	return fmt.Sprintf("retour de %d unités sur la ligne %s: vendu %d, déjà retourné %d",
		e.Demande, e.LigneID, e.Vendu, e.DejaRetourne)
}
func (e *ReturnExceedsOriginalError) Unwrap() error { return ErrReturnExceedsOriginal }

type TheoreticalMismatchError struct {
	Fourni    decimal.Decimal
	Recalcule decimal.Decimal
}

func (e *TheoreticalMismatchError) Error() string {
	return fmt.Sprintf("total théorique fourni %s différent du total recalculé %s",
		e.Fourni.StringFixed(2), e.Recalcule.StringFixed(2))
}
func (e *TheoreticalMismatchError) Unwrap() error { return ErrTheoreticalMismatch }
