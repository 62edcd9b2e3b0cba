package mathutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRoundToTenth(t *testing.T) {
	cases := []struct {
		in   float64
		want float64
	}{
		{66.666, 66.7},
		{66.64, 66.6},
		{100, 100},
		{0, 0},
		{33.349, 33.3},
	}
	for _, c := range cases {
		assert.InDelta(t, c.want, RoundToTenth(c.in), 1e-9)
	}
}

func TestPercentage(t *testing.T) {
	assert.InDelta(t, 50.0, Percentage(1, 2), 1e-9)
	assert.InDelta(t, 0.0, Percentage(0, 0), 1e-9)
	assert.InDelta(t, 66.7, Percentage(2, 3), 1e-9)
}
