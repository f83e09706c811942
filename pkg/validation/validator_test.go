package validation

import (
	"encoding/json"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type address struct {
	City string `json:"city" validate:"required"`
}

type sample struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,pwd"`
	Slug     string   `json:"slug" validate:"omitempty,slug"`
	BrandID  string   `json:"brand_id" validate:"required,objectid"`
	Gender   string   `json:"gender" validate:"oneof=men women unisex"`
	Qty      int      `json:"qty" validate:"min=1,max=10"`
	Images   []string `json:"images" validate:"max=2"`
	Address  address  `json:"address"`
}

func newValidator() *validator.Validate {
	v := validator.New()
	Register(v)
	return v
}

func TestToDetails_ValidationErrors(t *testing.T) {
	v := newValidator()

	err := v.Struct(sample{
		Email:    "not-an-email",
		Password: "short",
		Slug:     "Bad Slug",
		BrandID:  "123",
		Gender:   "kids",
		Qty:      11,
		Images:   []string{"a", "b", "c"},
	})
	require.Error(t, err)

	details := ToDetails(err)
	assert.Equal(t, "must be a valid email", details["email"])
	assert.Equal(t, "min length 8", details["password"])
	assert.Equal(t, "must be lowercase letters, digits and dashes", details["slug"])
	assert.Equal(t, "must be a valid id", details["brand_id"])
	assert.Equal(t, "must be one of: men, women, unisex", details["gender"])
	assert.Equal(t, "must be at most 10", details["qty"])
	assert.Equal(t, "must contain at most 2 items", details["images"])
	assert.Equal(t, "is required", details["address.city"])
}

func TestToDetails_Valid(t *testing.T) {
	v := newValidator()

	err := v.Struct(sample{
		Email:    "a@b.co",
		Password: "longenough",
		Slug:     "oud-wood-100ml",
		BrandID:  "65a1b2c3d4e5f60718293a4b",
		Gender:   "unisex",
		Qty:      2,
		Address:  address{City: "Pune"},
	})
	assert.NoError(t, err)
	assert.Nil(t, ToDetails(err))
}

func TestToDetails_JSONErrors(t *testing.T) {
	var dst struct {
		Qty int `json:"qty"`
	}
	err := json.Unmarshal([]byte(`{"qty": "two"}`), &dst)
	assert.Equal(t, map[string]string{"qty": "must be of type int"}, ToDetails(err))

	err = json.Unmarshal([]byte(`{qty}`), &dst)
	assert.Equal(t, map[string]string{"payload": "invalid json"}, ToDetails(err))
}
