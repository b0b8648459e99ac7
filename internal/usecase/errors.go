package usecase

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
)

type ErrorKind string

const (
	KindValidation   ErrorKind = "validation"
	KindUnauthorized ErrorKind = "unauthorized"
	KindNotFound     ErrorKind = "not_found"
	KindConflict     ErrorKind = "conflict"
	KindAvailability ErrorKind = "availability"
	KindTransient    ErrorKind = "transient"
	KindInternal     ErrorKind = "internal"
)

// 商品ごとの不足・不可理由
type ItemIssue struct {
	ProductID int64  `json:"product_id,omitempty"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason"`
	Requested int64  `json:"requested,omitempty"`
	Available int64  `json:"available,omitempty"`
}

const (
	IssueNotFound          = "product_not_found"
	IssueInsufficientStock = "insufficient_stock"
	IssueCODPincode        = "cod_unavailable_for_pincode"
	IssueCODLimit          = "cod_limit_exceeded"
)

type HTTPError struct {
	Status  int
	Kind    ErrorKind
	Message string
	Details []ItemIssue
	cause   error
}

func (e *HTTPError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%d: %s: %v", e.Status, e.Message, e.cause)
	}
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func (e *HTTPError) Unwrap() error {
	return e.cause
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Kind:    kindForStatus(status),
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

func IsKind(err error, kind ErrorKind) bool {
	he, ok := AsHTTPError(err)
	return ok && he.Kind == kind
}

func newValidationError(message string) error {
	return &HTTPError{Status: http.StatusBadRequest, Kind: KindValidation, Message: message}
}

func newNotFoundError(message string) error {
	return &HTTPError{Status: http.StatusNotFound, Kind: KindNotFound, Message: message}
}

// 不正な状態遷移は400、番号採番の枯渇などは409
func newConflictError(status int, message string) error {
	return &HTTPError{Status: status, Kind: KindConflict, Message: message}
}

func newAvailabilityError(issues []ItemIssue) error {
	return &HTTPError{
		Status:  http.StatusBadRequest,
		Kind:    KindAvailability,
		Message: "items unavailable",
		Details: issues,
	}
}

func newTransientError(op string, cause error) error {
	return &HTTPError{
		Status:  http.StatusServiceUnavailable,
		Kind:    KindTransient,
		Message: op + " temporarily unavailable",
		cause:   cause,
	}
}

func newInternalError(op string, cause error) error {
	return &HTTPError{
		Status:  http.StatusInternalServerError,
		Kind:    KindInternal,
		Message: "db error",
		cause:   fmt.Errorf("%s: %w", op, cause),
	}
}

func kindForStatus(status int) ErrorKind {
	switch status {
	case http.StatusBadRequest:
		return KindValidation
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindUnauthorized
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusConflict:
		return KindConflict
	case http.StatusServiceUnavailable:
		return KindTransient
	default:
		return KindInternal
	}
}

// infraErrorはリポジトリのエラーを分類する（NotFoundは呼び出し側で先に処理する）
func infraError(op string, err error) error {
	if he, ok := AsHTTPError(err); ok {
		return he
	}
	if isTransient(err) {
		return newTransientError(op, err)
	}
	return newInternalError(op, err)
}

// タイムアウト・接続断はリトライ可能
func isTransient(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// 08: connection exception, 40001: serialization, 40P01: deadlock, 57P01: admin shutdown
		switch {
		case len(pgErr.Code) >= 2 && pgErr.Code[:2] == "08":
			return true
		case pgErr.Code == "40001", pgErr.Code == "40P01", pgErr.Code == "57P01":
			return true
		}
	}
	return pgconn.SafeToRetry(err)
}

func isNotFound(err error) bool {
	return errors.Is(err, repo.ErrNotFound)
}

// withTimeoutは外部呼び出しを一定時間で打ち切る
func withTimeout[T any](ctx context.Context, d time.Duration, fn func(ctx context.Context) (T, error)) (T, error) {
	cctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()
	return fn(cctx)
}
