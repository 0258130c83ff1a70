package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateOfferPolicyEmpty(t *testing.T) {
	ok, err := EvaluateOfferPolicy("", 1, 100, nil)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestEvaluateOfferPolicyFloor(t *testing.T) {
	policy := "amount >= initial * 0.5"

	ok, err := EvaluateOfferPolicy(policy, 60, 100, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateOfferPolicy(policy, 40, 100, nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateOfferPolicySeesCurrent(t *testing.T) {
	cur := 80.0
	ok, err := EvaluateOfferPolicy("amount > current", 85, 100, &cur)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = EvaluateOfferPolicy("amount > current", 75, 100, &cur)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestEvaluateOfferPolicyInvalidExpression(t *testing.T) {
	_, err := EvaluateOfferPolicy("amount >=", 10, 100, nil)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestEvaluateOfferPolicyNonBoolean(t *testing.T) {
	_, err := EvaluateOfferPolicy("amount + initial", 10, 100, nil)
	assert.ErrorIs(t, err, ErrValidation)
}
