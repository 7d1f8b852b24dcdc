package bayes

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var thresholdBounds = []Bound{{Name: "confidence_threshold", Lower: 0.4, Upper: 0.9}}

func rising() []Sample {
	var out []Sample
	for i, v := range []float64{0.45, 0.5, 0.55, 0.6, 0.65, 0.7, 0.75} {
		out = append(out, Sample{
			Params:  map[string]float64{"confidence_threshold": v},
			Outcome: float64(i*5 - 10),
		})
	}
	return out
}

func assertInBounds(t *testing.T, s Suggestion, bounds []Bound) {
	t.Helper()
	for _, b := range bounds {
		v, ok := s.Values[b.Name]
		require.True(t, ok, b.Name)
		assert.Greater(t, v, b.Lower)
		assert.Less(t, v, b.Upper)
	}
}

func TestSuggestFollowsRisingOutcome(t *testing.T) {
	s := New(7).Suggest(rising(), thresholdBounds)
	require.Equal(t, MethodSurrogate, s.Method)
	assertInBounds(t, s, thresholdBounds)
	assert.Greater(t, s.Values["confidence_threshold"], 0.65)

	atCurrent, ok := s.Predict(map[string]float64{"confidence_threshold": 0.6})
	require.True(t, ok)
	assert.Greater(t, s.Predicted, atCurrent)
}

func TestSuggestStaysBelowUpperWhenSamplesReachIt(t *testing.T) {
	var history []Sample
	for i, v := range []float64{0.4, 0.5, 0.6, 0.7, 0.8, 0.9} {
		history = append(history, Sample{
			Params:  map[string]float64{"confidence_threshold": v},
			Outcome: float64(i * 10),
		})
	}
	for seed := int64(1); seed <= 5; seed++ {
		s := New(seed).Suggest(history, thresholdBounds)
		require.Equal(t, MethodSurrogate, s.Method)
		v := s.Values["confidence_threshold"]
		assert.Greater(t, v, 0.7, "seed %d", seed)
		assert.Less(t, v, 0.9, "seed %d", seed)
	}
}

func TestSuggestExploresWithTooFewSamples(t *testing.T) {
	opt := New(1)
	history := rising()[:2]
	history = append(history, Sample{Params: map[string]float64{"other": 1}, Outcome: 3})
	for i := 0; i < 50; i++ {
		s := opt.Suggest(history, thresholdBounds)
		assert.True(t, s.Explored())
		assertInBounds(t, s, thresholdBounds)
		_, ok := s.Predict(map[string]float64{"confidence_threshold": 0.5})
		assert.False(t, ok)
	}
}

func TestSuggestExploresOnFlatOutcome(t *testing.T) {
	history := rising()
	for i := range history {
		history[i].Outcome = 1
	}
	s := New(3).Suggest(history, thresholdBounds)
	assert.True(t, s.Explored())
	assertInBounds(t, s, thresholdBounds)
}

func TestSuggestMultiDimensionalStaysInBox(t *testing.T) {
	bounds := []Bound{
		{Name: "a_weight", Lower: 0, Upper: 2},
		{Name: "b_factor", Lower: -1, Upper: 1},
	}
	var history []Sample
	for i := 0; i < 12; i++ {
		a := float64(i%4) * 0.6
		b := float64(i%3)*0.8 - 0.9
		history = append(history, Sample{
			Params:  map[string]float64{"a_weight": a, "b_factor": b},
			Outcome: a*3 - b*b,
		})
	}
	opt := New(11)
	for i := 0; i < 5; i++ {
		s := opt.Suggest(history, bounds)
		assert.Equal(t, MethodSurrogate, s.Method)
		assertInBounds(t, s, bounds)
	}
}

func TestSuggestWithoutBounds(t *testing.T) {
	s := New(1).Suggest(rising(), nil)
	assert.Empty(t, s.Values)
}
