package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testPayload struct {
	ProductType string  `validate:"required,oneof=plano curso assinatura"`
	ProductID   string  `validate:"required"`
	Price       float64 `validate:"gte=0"`
	Currency    string  `validate:"omitempty,len=3"`
}

func TestValidate_Success(t *testing.T) {
	p := testPayload{
		ProductType: "plano",
		ProductID:   "p1",
		Price:       199.9,
		Currency:    "BRL",
	}
	assert.NoError(t, Validate(p))
}

func TestValidate_MissingRequired(t *testing.T) {
	p := testPayload{ProductType: "curso"}

	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	fields := valErr.Fields()
	assert.Contains(t, fields, "ProductID")
	assert.Equal(t, "is required", fields["ProductID"])
}

func TestValidate_OneOf(t *testing.T) {
	p := testPayload{ProductType: "bundle", ProductID: "p1"}

	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields()["ProductType"], "must be one of")
}

func TestValidate_NegativePrice(t *testing.T) {
	p := testPayload{ProductType: "plano", ProductID: "p1", Price: -1}

	err := Validate(p)
	require.Error(t, err)

	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	assert.Contains(t, valErr.Fields(), "Price")
}

func TestValidationError_Message(t *testing.T) {
	p := testPayload{}

	err := Validate(p)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "field 'ProductType' is required")
}
