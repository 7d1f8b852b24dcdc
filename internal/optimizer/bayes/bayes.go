// Package bayes suggests values for bounded continuous parameters from
// (parameters, outcome) history.
//
// The surrogate is a Gaussian-process regression with an RBF kernel; the
// suggestion maximises its posterior mean. With fewer than MinSamples
// complete samples, or when fitting fails, a uniform random point inside
// the bounds is returned instead. Every returned value lies within bounds.
package bayes

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"conductor/internal/logger"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize"
)

const (
	MinSamples    = 3
	lengthScale   = 0.25
	noiseVariance = 0.1
	// edge keeps decoded values strictly inside the bounds.
	edge          = 1e-3
)

// Method names how a suggestion was produced.
type Method string

const (
	MethodRandom    Method = "random"
	MethodSurrogate Method = "surrogate"
)

var errFlatOutcome = errors.New("outcomes have zero variance")

type Bound struct {
	Name  string
	Lower float64
	Upper float64
}

func (b Bound) clamp(v float64) float64 {
	return math.Max(b.Lower, math.Min(b.Upper, v))
}

// decode maps a unit coordinate into the open interval (Lower, Upper).
func (b Bound) decode(u float64) float64 {
	return b.clamp(b.Lower + interior(u)*(b.Upper-b.Lower))
}

type Sample struct {
	Params  map[string]float64
	Outcome float64
}

type Suggestion struct {
	Values    map[string]float64
	Method    Method
	Predicted float64

	model *surrogate
}

// Explored reports whether the suggestion is a random fallback.
func (s Suggestion) Explored() bool { return s.Method == MethodRandom }

// Predict evaluates the fitted surrogate at values. It returns false for
// random suggestions or when a bounded parameter is missing.
func (s Suggestion) Predict(values map[string]float64) (float64, bool) {
	if s.model == nil {
		return 0, false
	}
	x, ok := s.model.encode(values)
	if !ok {
		return 0, false
	}
	return s.model.predict(x), true
}

type Optimizer struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New seeds the exploration source; seed 0 uses the clock.
func New(seed int64) *Optimizer {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	return &Optimizer{rng: rand.New(rand.NewSource(seed))}
}

func (o *Optimizer) Suggest(history []Sample, bounds []Bound) Suggestion {
	if len(bounds) == 0 {
		return Suggestion{Values: map[string]float64{}, Method: MethodRandom}
	}
	complete := completeSamples(history, bounds)
	if len(complete) < MinSamples {
		return o.random(bounds)
	}
	s, err := o.fitAndMaximise(complete, bounds)
	if err != nil {
		logger.Debugf("bayes: surrogate failed, exploring instead: %v", err)
		return o.random(bounds)
	}
	return s
}

func (o *Optimizer) fitAndMaximise(samples []Sample, bounds []Bound) (s Suggestion, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("surrogate panic: %v", r)
		}
	}()
	model, err := fit(samples, bounds)
	if err != nil {
		return Suggestion{}, err
	}
	starts := [][]float64{o.randomUnit(len(bounds)), model.bestInput(), midpoint(len(bounds))}
	var (
		bestX []float64
		bestF = math.Inf(-1)
	)
	for _, start := range starts {
		x, f, err := model.maximise(start)
		if err != nil {
			continue
		}
		if f > bestF {
			bestX, bestF = x, f
		}
	}
	if bestX == nil {
		return Suggestion{}, errors.New("maximisation failed from every start")
	}
	values := make(map[string]float64, len(bounds))
	for i, b := range bounds {
		values[b.Name] = b.decode(bestX[i])
	}
	return Suggestion{Values: values, Method: MethodSurrogate, Predicted: bestF, model: model}, nil
}

func (o *Optimizer) random(bounds []Bound) Suggestion {
	u := o.randomUnit(len(bounds))
	values := make(map[string]float64, len(bounds))
	for i, b := range bounds {
		values[b.Name] = b.decode(u[i])
	}
	return Suggestion{Values: values, Method: MethodRandom}
}

func (o *Optimizer) randomUnit(n int) []float64 {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]float64, n)
	for i := range out {
		out[i] = o.rng.Float64()
	}
	return out
}

func completeSamples(history []Sample, bounds []Bound) []Sample {
	out := make([]Sample, 0, len(history))
	for _, s := range history {
		if math.IsNaN(s.Outcome) || math.IsInf(s.Outcome, 0) {
			continue
		}
		ok := true
		for _, b := range bounds {
			v, present := s.Params[b.Name]
			if !present || math.IsNaN(v) || math.IsInf(v, 0) {
				ok = false
				break
			}
		}
		if ok {
			out = append(out, s)
		}
	}
	return out
}

func midpoint(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = 0.5
	}
	return out
}

// surrogate is a GP fitted on inputs scaled to the unit box and
// standardised outcomes.
type surrogate struct {
	bounds []Bound
	xs     [][]float64
	ys     []float64
	alpha  *mat.VecDense
	mean   float64
	std    float64
}

func fit(samples []Sample, bounds []Bound) (*surrogate, error) {
	n := len(samples)
	m := &surrogate{bounds: bounds, xs: make([][]float64, n), ys: make([]float64, n)}
	for i, s := range samples {
		x, _ := m.encode(s.Params)
		m.xs[i] = x
		m.ys[i] = s.Outcome
	}
	for _, y := range m.ys {
		m.mean += y
	}
	m.mean /= float64(n)
	for _, y := range m.ys {
		m.std += (y - m.mean) * (y - m.mean)
	}
	m.std = math.Sqrt(m.std / float64(n))
	if m.std < 1e-12 {
		return nil, errFlatOutcome
	}

	k := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			v := kernel(m.xs[i], m.xs[j])
			if i == j {
				v += noiseVariance
			}
			k.SetSym(i, j, v)
		}
	}
	var chol mat.Cholesky
	if ok := chol.Factorize(k); !ok {
		return nil, errors.New("kernel matrix is not positive definite")
	}
	y := mat.NewVecDense(n, nil)
	for i, v := range m.ys {
		y.SetVec(i, (v-m.mean)/m.std)
	}
	m.alpha = mat.NewVecDense(n, nil)
	if err := chol.SolveVecTo(m.alpha, y); err != nil {
		return nil, fmt.Errorf("solve kernel system: %w", err)
	}
	return m, nil
}

func (m *surrogate) encode(values map[string]float64) ([]float64, bool) {
	x := make([]float64, len(m.bounds))
	for i, b := range m.bounds {
		v, ok := values[b.Name]
		if !ok {
			return nil, false
		}
		x[i] = (b.clamp(v) - b.Lower) / (b.Upper - b.Lower)
	}
	return x, true
}

// predict returns the posterior mean at unit-box point x in outcome units.
func (m *surrogate) predict(x []float64) float64 {
	var z float64
	for i, xi := range m.xs {
		z += kernel(x, xi) * m.alpha.AtVec(i)
	}
	return m.mean + m.std*z
}

func (m *surrogate) bestInput() []float64 {
	best := 0
	for i, y := range m.ys {
		if y > m.ys[best] {
			best = i
		}
	}
	return append([]float64(nil), m.xs[best]...)
}

// maximise runs Nelder-Mead on logit coordinates so every candidate maps
// back inside the unit box.
func (m *surrogate) maximise(start []float64) ([]float64, float64, error) {
	z0 := make([]float64, len(start))
	for i, u := range start {
		z0[i] = logit(u)
	}
	toUnit := func(z []float64) []float64 {
		x := make([]float64, len(z))
		for i, zi := range z {
			x[i] = interior(sigmoid(zi))
		}
		return x
	}
	problem := optimize.Problem{
		Func: func(z []float64) float64 { return -m.predict(toUnit(z)) },
	}
	settings := &optimize.Settings{MajorIterations: 200, FuncEvaluations: 2000}
	res, err := optimize.Minimize(problem, z0, settings, &optimize.NelderMead{})
	if res == nil {
		if err == nil {
			err = errors.New("optimizer returned no result")
		}
		return nil, 0, err
	}
	x := toUnit(res.X)
	f := m.predict(x)
	if math.IsNaN(f) {
		return nil, 0, errors.New("surrogate prediction is NaN")
	}
	return x, f, nil
}

func kernel(a, b []float64) float64 {
	var d2 float64
	for i := range a {
		d := a[i] - b[i]
		d2 += d * d
	}
	return math.Exp(-d2 / (2 * lengthScale * lengthScale))
}

func sigmoid(z float64) float64 { return 1 / (1 + math.Exp(-z)) }

func logit(u float64) float64 {
	u = interior(u)
	return math.Log(u / (1 - u))
}

func interior(u float64) float64 {
	return math.Max(edge, math.Min(1-edge, u))
}
