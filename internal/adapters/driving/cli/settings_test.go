package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "(unset)", maskKey(""))
	assert.Equal(t, "****", maskKey("short"))
	assert.Equal(t, "sk-a...wxyz", maskKey("sk-abcdefgh-tuvwxyz"))
}

func TestOrUnset(t *testing.T) {
	assert.Equal(t, "(unset)", orUnset(""))
	assert.Equal(t, "llama3.2", orUnset("llama3.2"))
}
