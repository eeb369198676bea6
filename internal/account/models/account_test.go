package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "accounting/pkg/domain-errors"
)

func TestNewAccount(t *testing.T) {
	a, err := NewAccount("A001", " Petty cash ")
	require.NoError(t, err)
	assert.Equal(t, "Petty cash", a.Name)
	assert.Zero(t, a.ID)

	_, err = NewAccount("", "Petty cash")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))

	_, err = NewAccount("A001", "")
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
}
