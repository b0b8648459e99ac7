package repository

import (
	"errors"

	repo "github.com/Israr974/BuyZaar-sub001/internal/repository"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const (
	pgUniqueViolation = "23505"
	pgCheckViolation  = "23514"

	idempotencyConstraint  = "idx_orders_user_idempotency"
	cartQuantityConstraint = "chk_cart_lines_quantity"
)

// 制約違反をrepositoryのエラーに変換する
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return repo.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch {
	case pgErr.Code == pgUniqueViolation && pgErr.ConstraintName == idempotencyConstraint:
		return repo.ErrDuplicateIdempotencyKey
	case pgErr.Code == pgUniqueViolation:
		return repo.ErrDuplicateKey
	case pgErr.Code == pgCheckViolation && pgErr.ConstraintName == cartQuantityConstraint:
		return repo.ErrQuantityLimit
	}
	return err
}
