package store

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgeText(t *testing.T) {
	for _, age := range []uint{0, 1, 42, math.MaxInt64, math.MaxInt64 + 1, ^uint(0)} {
		text := formatAge(age)
		got, err := parseAge(text)
		require.NoError(t, err, text)
		assert.Equal(t, age, got)
	}
	assert.Equal(t, "18446744073709551615", formatAge(^uint(0)))

	_, err := parseAge("-1")
	assert.Error(t, err)
}
