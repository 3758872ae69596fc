package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeUnauthorized      ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden         ErrorCode = "FORBIDDEN"
	ErrCodeBadRequest        ErrorCode = "BAD_REQUEST"
	ErrCodeConflict          ErrorCode = "CONFLICT"
	ErrCodeInvalidState      ErrorCode = "INVALID_STATE"
	ErrCodeArithmetic        ErrorCode = "ARITHMETIC_ERROR"
	ErrCodeInsufficientFunds ErrorCode = "INSUFFICIENT_FUNDS"
	ErrCodeInternal          ErrorCode = "INTERNAL_ERROR"
	ErrCodeValidation        ErrorCode = "VALIDATION_ERROR"
	ErrCodeDatabaseError     ErrorCode = "DATABASE_ERROR"
)

type AppError struct {
	Code       ErrorCode
	Message    string
	HTTPStatus int
	Cause      error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is сравнивает по коду и сообщению, чтобы errors.Is работал с сентинелами
// даже после Wrap.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
	}
}

func Wrap(err error, code ErrorCode, message string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: codeToHTTPStatus(code),
		Cause:      err,
	}
}

// Validation короткий конструктор для ошибок входных данных.
func Validation(format string, args ...any) *AppError {
	return New(ErrCodeValidation, fmt.Sprintf(format, args...))
}

// Lift оставляет AppError как есть, остальные ошибки оборачивает в DATABASE_ERROR.
func Lift(err error, message string) error {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return err
	}
	return Wrap(err, ErrCodeDatabaseError, message)
}

func codeToHTTPStatus(code ErrorCode) int {
	switch code {
	case ErrCodeNotFound:
		return http.StatusNotFound
	case ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case ErrCodeForbidden:
		return http.StatusForbidden
	case ErrCodeBadRequest, ErrCodeValidation:
		return http.StatusBadRequest
	case ErrCodeConflict, ErrCodeInvalidState:
		return http.StatusConflict
	case ErrCodeArithmetic:
		return http.StatusUnprocessableEntity
	case ErrCodeInsufficientFunds:
		return http.StatusPaymentRequired
	default:
		return http.StatusInternalServerError
	}
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

func IsNotFound(err error) bool {
	return hasCode(err, ErrCodeNotFound)
}

func IsForbidden(err error) bool {
	return hasCode(err, ErrCodeForbidden)
}

func IsValidation(err error) bool {
	return hasCode(err, ErrCodeValidation)
}

func IsInvalidState(err error) bool {
	return hasCode(err, ErrCodeInvalidState)
}

func IsConflict(err error) bool {
	return hasCode(err, ErrCodeConflict)
}

func IsArithmetic(err error) bool {
	return hasCode(err, ErrCodeArithmetic)
}

var (
	ErrUnauthorized  = New(ErrCodeUnauthorized, "требуется авторизация")
	ErrForbidden     = New(ErrCodeForbidden, "недостаточно прав")
	ErrNotOrderParty = New(ErrCodeForbidden, "пользователь не является участником заказа")

	ErrListingNotFound   = New(ErrCodeNotFound, "объявление не найдено")
	ErrOrderNotFound     = New(ErrCodeNotFound, "заказ не найден")
	ErrEscrowNotFound    = New(ErrCodeNotFound, "эскроу не найден")
	ErrDisputeNotFound   = New(ErrCodeNotFound, "спор не найден")
	ErrMilestoneNotFound = New(ErrCodeNotFound, "этап не найден")
	ErrProfileNotFound   = New(ErrCodeNotFound, "профиль не найден")

	ErrListingInactive = New(ErrCodeInvalidState, "объявление неактивно")
	ErrSelfPurchase    = New(ErrCodeValidation, "продавец не может купить собственное объявление")

	ErrInvalidOrderStatus    = New(ErrCodeInvalidState, "недопустимый статус заказа для операции")
	ErrRevisionLimitExceeded = New(ErrCodeInvalidState, "превышен лимит доработок")
	ErrDeadlineNotPassed     = New(ErrCodeInvalidState, "срок выполнения заказа ещё не истёк")
	ErrAutoReleaseNotDue     = New(ErrCodeInvalidState, "автоматическая выплата ещё недоступна")
	ErrReviewAlreadyExists   = New(ErrCodeConflict, "отзыв по этому заказу уже оставлен")

	ErrEscrowAlreadyFunded   = New(ErrCodeInvalidState, "эскроу уже пополнен")
	ErrEscrowAlreadyReleased = New(ErrCodeInvalidState, "средства эскроу уже выплачены")
	ErrEscrowLocked          = New(ErrCodeInvalidState, "эскроу заблокирован спором")
	ErrEscrowNotFunded       = New(ErrCodeInvalidState, "эскроу не пополнен")
	ErrSplitExceedsEscrow    = New(ErrCodeArithmetic, "сумма распределения превышает остаток эскроу")

	ErrDisputeAlreadyExists = New(ErrCodeConflict, "спор по заказу уже открыт")
	ErrDisputePeriodExpired = New(ErrCodeInvalidState, "срок открытия спора истёк")
	ErrInvalidDisputeStatus = New(ErrCodeInvalidState, "недопустимый статус спора для операции")

	ErrInvalidMilestoneStatus       = New(ErrCodeInvalidState, "недопустимый статус этапа для операции")
	ErrAllMilestonesMustBeCompleted = New(ErrCodeInvalidState, "все этапы должны быть завершены")
	ErrMilestoneBudgetExceeded      = New(ErrCodeArithmetic, "сумма выплат по этапам превышает сумму эскроу")

	ErrArithmeticOverflow = New(ErrCodeArithmetic, "арифметическое переполнение")
	ErrInsufficientFunds  = New(ErrCodeInsufficientFunds, "недостаточно средств")
	ErrVersionConflict    = New(ErrCodeConflict, "запись изменена параллельной операцией, повторите запрос")
)
