package repository

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestTranslateMapsRecordNotFound(t *testing.T) {
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound), ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("lookup: %w", gorm.ErrRecordNotFound)), ErrNotFound)
}

func TestTranslateMapsUniqueViolation(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "idx_promotions_code"}
	assert.ErrorIs(t, translate(pgErr), ErrDuplicate)
}

func TestTranslateLeavesOtherErrorsAlone(t *testing.T) {
	assert.NoError(t, translate(nil))

	infra := errors.New("connection refused")
	assert.Same(t, infra, translate(infra))

	otherPg := &pgconn.PgError{Code: "40001"}
	assert.Same(t, error(otherPg), translate(otherPg))
}
