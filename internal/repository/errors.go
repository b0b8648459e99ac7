package repository

import "errors"

var (
	ErrNotFound = errors.New("not found")

	// 一意制約違反（注文番号など）
	ErrDuplicateKey = errors.New("duplicate key")

	// (user_id, idempotency_key) の一意制約違反
	ErrDuplicateIdempotencyKey = errors.New("duplicate idempotency key")

	// 条件付き減算で0行（在庫不足）
	ErrInsufficientStock = errors.New("insufficient stock")

	// 数量が0以下
	ErrInvalidQuantity = errors.New("invalid quantity")

	// 明細の数量上限を超える
	ErrQuantityLimit = errors.New("quantity limit exceeded")
)
