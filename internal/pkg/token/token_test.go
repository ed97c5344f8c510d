package token

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRequestToken_Is128BitHex(t *testing.T) {
	tok, err := NewRequestToken()
	require.NoError(t, err)
	assert.Len(t, tok, 32)
	_, err = hex.DecodeString(tok)
	assert.NoError(t, err)
}

func TestNewRequestToken_Unique(t *testing.T) {
	a, err := NewRequestToken()
	require.NoError(t, err)
	b, err := NewRequestToken()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
