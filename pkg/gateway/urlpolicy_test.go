package gateway

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestURLPolicyEmptyPermitsEverything(t *testing.T) {
	p, err := NewURLPolicy(nil, nil)
	require.NoError(t, err)

	assert.True(t, p.Permits("https://example.com"))
	assert.True(t, p.Permits("http://anything.invalid/path?q=1"))
}

func TestURLPolicyDenyWins(t *testing.T) {
	p, err := NewURLPolicy(
		[]string{"https://example.com*"},
		[]string{"https://example.com/admin*"},
	)
	require.NoError(t, err)

	assert.True(t, p.Permits("https://example.com/products"))
	assert.False(t, p.Permits("https://example.com/admin/users"), "deny must override allow")
}

func TestURLPolicyAllowListRestricts(t *testing.T) {
	p, err := NewURLPolicy([]string{"https://*.example.com/*", "https://example.com/*"}, nil)
	require.NoError(t, err)

	assert.True(t, p.Permits("https://shop.example.com/cart"))
	assert.True(t, p.Permits("https://example.com/about"))
	assert.False(t, p.Permits("https://evil.test/phish"))
}

func TestURLPolicyBlocksMetadataEndpoint(t *testing.T) {
	p, err := NewURLPolicy(nil, []string{
		"http://169.254.169.254*",
		"*://localhost*",
		"*://127.0.0.1*",
	})
	require.NoError(t, err)

	assert.False(t, p.Permits("http://169.254.169.254/latest/meta-data/"))
	assert.False(t, p.Permits("http://localhost:8080/"))
	assert.False(t, p.Permits("https://127.0.0.1/secret"))
	assert.True(t, p.Permits("https://example.com"))
}

func TestURLPolicyRejectsBadPattern(t *testing.T) {
	_, err := NewURLPolicy([]string{"https://example.com/["}, nil)
	assert.Error(t, err)

	_, err = NewURLPolicy(nil, []string{"["})
	assert.Error(t, err)
}
