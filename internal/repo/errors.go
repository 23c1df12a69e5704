package repo

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Ошибки слоя хранения. Обработчики API мапят их на HTTP-статусы.
var (
	// ErrNotFound — run, schedule или решение с таким ID не найдены.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — конфликт уникальности: повторный ID или
	// idempotency key в рамках тенанта.
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция не применима к текущему статусу записи.
	ErrInvalidState = errors.New("invalid state")
)

// uniqueViolation — код unique_violation в Postgres.
const uniqueViolation = "23505"

// isUniqueViolation распознаёт нарушение уникального ограничения.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
