package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKebab(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Acme", "acme"},
		{"Acme Corp.", "acme-corp"},
		{"  spaced   out  ", "spaced-out"},
		{"MobileApp", "mobile-app"},
		{"checkout_v2", "checkout-v2"},
		{"!!!", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Kebab(tt.in))
		})
	}
}

func TestUniqueSlug(t *testing.T) {
	assert.Equal(t, "acme", UniqueSlug("acme", nil))
	assert.Equal(t, "acme", UniqueSlug("acme", []string{"acme-corp", "acme1"}))
	assert.Equal(t, "acme1", UniqueSlug("acme", []string{"acme"}))
	assert.Equal(t, "acme3", UniqueSlug("acme", []string{"acme", "acme1", "acme2"}))
}

func TestNewToken(t *testing.T) {
	a, b := newToken(), newToken()
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, "-")
}

func TestLookupModel(t *testing.T) {
	m, ok := LookupModel(DefaultModelSlug)
	assert.True(t, ok)
	assert.Equal(t, "Google", m.Provider)

	_, ok = LookupModel("gpt-0")
	assert.False(t, ok)

	for _, m := range Models() {
		assert.NotEmpty(t, m.Provider, m.Slug)
		assert.NotEmpty(t, m.Tier, m.Slug)
	}
}
