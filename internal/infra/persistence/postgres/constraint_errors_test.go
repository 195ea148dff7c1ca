package postgres

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestConstraintHelpers(t *testing.T) {
	unique := errors.New(`ERROR: duplicate key value violates unique constraint "idx_appointments_doctor_slot_active" (SQLSTATE 23505)`)
	foreign := errors.New(`ERROR: insert or update on table "appointments" violates foreign key constraint "fk_appointments_doctor" (SQLSTATE 23503)`)
	notNull := errors.New(`ERROR: null value in column "email" violates not-null constraint (SQLSTATE 23502)`)

	assert.True(t, isUniqueConstraintViolation(unique))
	assert.True(t, isUniqueConstraintViolation(errors.Wrap(gorm.ErrDuplicatedKey, "create")))
	assert.False(t, isUniqueConstraintViolation(foreign))
	assert.False(t, isUniqueConstraintViolation(nil))

	assert.True(t, isForeignKeyConstraintViolation(foreign))
	assert.True(t, isForeignKeyConstraintViolation(gorm.ErrForeignKeyViolated))
	assert.False(t, isForeignKeyConstraintViolation(unique))

	assert.True(t, isNotNullConstraintViolation(notNull))
	assert.False(t, isNotNullConstraintViolation(unique))
}
