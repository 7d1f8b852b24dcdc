package convert

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestToFloat64(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{0.5, 0.5, true},
		{3, 3, true},
		{int64(7), 7, true},
		{json.Number("1.25"), 1.25, true},
		{" 0.7 ", 0.7, true},
		{"momentum", 0, false},
		{nil, 0, false},
		{math.NaN(), 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := ToFloat64(tc.in)
		assert.Equal(t, tc.ok, ok, "%v", tc.in)
		assert.InDelta(t, tc.want, got, 1e-12, "%v", tc.in)
	}
}

func TestKeyAndNormalize(t *testing.T) {
	assert.Equal(t, "0.5", Key(0.5))
	assert.Equal(t, "3", Key(3))
	assert.Equal(t, "breakout", Key(" breakout "))
	assert.Equal(t, 2.0, Normalize(2))
	assert.Equal(t, "a", Normalize(" a "))
	assert.Equal(t, true, Normalize(true))
}
