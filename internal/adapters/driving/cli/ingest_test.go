package cli

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseSince(t *testing.T) {
	since, err := parseSince("")
	require.NoError(t, err)
	assert.Nil(t, since)

	since, err = parseSince("30d")
	require.NoError(t, err)
	require.NotNil(t, since)
	assert.WithinDuration(t, time.Now().UTC().Add(-30*24*time.Hour), *since, time.Minute)

	since, err = parseSince("12h")
	require.NoError(t, err)
	require.NotNil(t, since)
	assert.WithinDuration(t, time.Now().UTC().Add(-12*time.Hour), *since, time.Minute)
}

func TestParseSinceInvalid(t *testing.T) {
	for _, bad := range []string{"30", "d", "-5d", "30w", "abc"} {
		_, err := parseSince(bad)
		assert.Error(t, err, "input %q", bad)
	}
}
