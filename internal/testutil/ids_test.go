package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFixedIDGenerator(t *testing.T) {
	g := NewFixedIDGenerator("me")
	assert.Equal(t, "me", g.Generate())
	assert.Equal(t, "me", g.Generate())
}

func TestFixedIDGenerator_EmptyDefaults(t *testing.T) {
	assert.Equal(t, "local", NewFixedIDGenerator("").Generate())
}
