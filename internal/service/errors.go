package service

import (
	"errors"
	"fmt"

	"github.com/KotFed0t/copytrade_backoffice/internal/model"
	"github.com/shopspring/decimal"
)

var (
	ErrNotFound  = errors.New("error not found")
	ErrForbidden = errors.New("error forbidden")
)

type ErrorKind int

const (
	KindOptionNotFound ErrorKind = iota + 1
	KindBelowMinimumInvestment
	KindInsufficientFunds
	KindNoPortfolioEntries
	KindInsufficientPortfolioValue
	KindInvalidStatusTransition
	KindTargetIsAdmin
	KindUserNotFound
	KindImmutableField
)

var kindNames = map[ErrorKind]string{
	KindOptionNotFound:             "OptionNotFound",
	KindBelowMinimumInvestment:     "BelowMinimumInvestment",
	KindInsufficientFunds:          "InsufficientFunds",
	KindNoPortfolioEntries:         "NoPortfolioEntries",
	KindInsufficientPortfolioValue: "InsufficientPortfolioValue",
	KindInvalidStatusTransition:    "InvalidStatusTransition",
	KindTargetIsAdmin:              "TargetIsAdmin",
	KindUserNotFound:               "UserNotFound",
	KindImmutableField:             "ImmutableField",
}

func (k ErrorKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ErrorKind(%d)", int(k))
}

// Payloads carried by DomainError.Data, one shape per kind.

type MinimumInvestmentData struct {
	Minimum  decimal.Decimal `json:"minimum"`
	Provided decimal.Decimal `json:"provided"`
}

type ShortfallData struct {
	Required  decimal.Decimal `json:"required"`
	Available decimal.Decimal `json:"available"`
}

type StatusTransitionData struct {
	From model.PurchaseStatus `json:"from"`
	To   model.PurchaseStatus `json:"to"`
}

type FieldData struct {
	Field  string               `json:"field"`
	Status model.PurchaseStatus `json:"status"`
}

type ResourceData struct {
	ID int64 `json:"id"`
}

// DomainError is a business rule violation raised by the purchase workflow.
type DomainError struct {
	Kind    ErrorKind
	Message string
	Data    any
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// AsDomainError reports whether err wraps a *DomainError and returns it.
func AsDomainError(err error) (*DomainError, bool) {
	var de *DomainError
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// IsKind reports whether err wraps a *DomainError of the given kind.
func IsKind(err error, kind ErrorKind) bool {
	de, ok := AsDomainError(err)
	return ok && de.Kind == kind
}

func NewOptionNotFound(optionID int64) *DomainError {
	return &DomainError{
		Kind:    KindOptionNotFound,
		Message: "copytrade option not found",
		Data:    ResourceData{ID: optionID},
	}
}

func NewBelowMinimumInvestment(minimum, provided decimal.Decimal) *DomainError {
	return &DomainError{
		Kind:    KindBelowMinimumInvestment,
		Message: fmt.Sprintf("minimum investment is %s", minimum.String()),
		Data:    MinimumInvestmentData{Minimum: minimum, Provided: provided},
	}
}

func NewInsufficientFunds(required, available decimal.Decimal) *DomainError {
	return &DomainError{
		Kind:    KindInsufficientFunds,
		Message: "insufficient account balance",
		Data:    ShortfallData{Required: required, Available: available},
	}
}

func NewNoPortfolioEntries(userID int64) *DomainError {
	return &DomainError{
		Kind:    KindNoPortfolioEntries,
		Message: "user has no portfolio entries",
		Data:    ResourceData{ID: userID},
	}
}

func NewInsufficientPortfolioValue(required, available decimal.Decimal) *DomainError {
	return &DomainError{
		Kind:    KindInsufficientPortfolioValue,
		Message: "insufficient portfolio value",
		Data:    ShortfallData{Required: required, Available: available},
	}
}

func NewInvalidStatusTransition(from, to model.PurchaseStatus) *DomainError {
	return &DomainError{
		Kind:    KindInvalidStatusTransition,
		Message: fmt.Sprintf("cannot change purchase status from %s to %s", from, to),
		Data:    StatusTransitionData{From: from, To: to},
	}
}

func NewTargetIsAdmin(userID int64) *DomainError {
	return &DomainError{
		Kind:    KindTargetIsAdmin,
		Message: "cannot create purchase for an administrator",
		Data:    ResourceData{ID: userID},
	}
}

func NewUserNotFound(userID int64) *DomainError {
	return &DomainError{
		Kind:    KindUserNotFound,
		Message: "user not found",
		Data:    ResourceData{ID: userID},
	}
}

func NewImmutableField(field string, status model.PurchaseStatus) *DomainError {
	return &DomainError{
		Kind:    KindImmutableField,
		Message: fmt.Sprintf("%s cannot be changed once the purchase is %s", field, status),
		Data:    FieldData{Field: field, Status: status},
	}
}
