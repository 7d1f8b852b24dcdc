// Package optimizer tunes module parameters from settled trade history and
// applies confident proposals back to live module configuration.
package optimizer

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"conductor/internal/logger"
	"conductor/internal/optimizer/bayes"
	"conductor/internal/pkg/convert"
	"conductor/internal/types"
)

// Settings bound when and how aggressively parameters change.
type Settings struct {
	Cooldown       time.Duration
	MinSamples     int
	LookbackDays   int
	MinDelta       float64
	MinImprovement float64
	MaxConfidence  float64

	MinCorrelation float64
	MinWinRateDiff float64
	MinVariance    float64
	MinBucketSize  int
}

func DefaultSettings() Settings {
	return Settings{
		Cooldown:       6 * time.Hour,
		MinSamples:     10,
		LookbackDays:   7,
		MinDelta:       0.05,
		MinImprovement: 0.02,
		MaxConfidence:  0.85,
		MinCorrelation: 0.15,
		MinWinRateDiff: 0.10,
		MinVariance:    0.02,
		MinBucketSize:  3,
	}
}

// HistoryStore is the slice of persistence the optimizer reads.
type HistoryStore interface {
	GetRecentPerformanceData(ctx context.Context, moduleName string, daysBack int) ([]types.PerformanceRecord, error)
	GetCurrentModuleParameters(ctx context.Context, moduleName string) (map[string]any, error)
}

type ParameterOptimizer struct {
	store    HistoryStore
	tunables *Tunables
	bayes    *bayes.Optimizer
	settings Settings

	mu            sync.Mutex
	lastOptimized map[string]time.Time
	nowFn         func() time.Time
}

func NewParameterOptimizer(store HistoryStore, tunables *Tunables, bo *bayes.Optimizer, settings Settings) *ParameterOptimizer {
	if tunables == nil {
		tunables = NewTunables(nil, true)
	}
	if bo == nil {
		bo = bayes.New(0)
	}
	return &ParameterOptimizer{
		store:         store,
		tunables:      tunables,
		bayes:         bo,
		settings:      settings,
		lastOptimized: make(map[string]time.Time),
		nowFn:         time.Now,
	}
}

// SetClock overrides the time source; used by tests.
func (p *ParameterOptimizer) SetClock(now func() time.Time) {
	if now == nil {
		now = time.Now
	}
	p.mu.Lock()
	p.nowFn = now
	p.mu.Unlock()
}

// ShouldOptimize requires the cooldown to have elapsed and enough recent samples.
func (p *ParameterOptimizer) ShouldOptimize(ctx context.Context, moduleName string) bool {
	p.mu.Lock()
	last, seen := p.lastOptimized[moduleName]
	now := p.nowFn()
	p.mu.Unlock()
	if seen && now.Sub(last) < p.settings.Cooldown {
		return false
	}
	recs, err := p.store.GetRecentPerformanceData(ctx, moduleName, p.settings.LookbackDays)
	if err != nil {
		logger.Warnf("optimizer: load history for %s failed: %v", moduleName, err)
		return false
	}
	return len(recs) >= p.settings.MinSamples
}

func (p *ParameterOptimizer) MarkOptimized(moduleName string) {
	p.mu.Lock()
	p.lastOptimized[moduleName] = p.nowFn()
	p.mu.Unlock()
}

func (p *ParameterOptimizer) LastOptimized(moduleName string) (time.Time, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	t, ok := p.lastOptimized[moduleName]
	return t, ok
}

// field gathers one parameter's observations across records.
type field struct {
	name     string
	numeric  []float64
	numOut   []float64
	values   []any
	outcomes []float64
	latest   any
}

// Optimize proposes parameter changes for a module. A failure analysing one
// parameter is logged and skipped.
func (p *ParameterOptimizer) Optimize(ctx context.Context, moduleName string) ([]types.ParameterOptimizationResult, error) {
	recs, err := p.store.GetRecentPerformanceData(ctx, moduleName, p.settings.LookbackDays)
	if err != nil {
		return nil, fmt.Errorf("load history for %s: %w", moduleName, err)
	}
	if len(recs) == 0 {
		return nil, nil
	}
	current, err := p.store.GetCurrentModuleParameters(ctx, moduleName)
	if err != nil {
		logger.Warnf("optimizer: load current params for %s failed, using observed values: %v", moduleName, err)
		current = nil
	}

	var out []types.ParameterOptimizationResult
	for _, f := range collectFields(recs) {
		if !p.tunables.Matches(f.name) {
			continue
		}
		cur, ok := current[f.name]
		if !ok {
			cur = f.latest
		}
		if res, ok := p.optimizeField(moduleName, f, cur); ok {
			out = append(out, res)
		}
	}
	return out, nil
}

func (p *ParameterOptimizer) optimizeField(moduleName string, f field, cur any) (res types.ParameterOptimizationResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warnf("optimizer: %s.%s analysis panicked: %v", moduleName, f.name, r)
			ok = false
		}
	}()
	if !p.worthOptimizing(f) {
		return res, false
	}
	if t, declared := p.tunables.Lookup(f.name); declared && t.Bounded() && len(f.numeric) > 0 {
		return p.optimizeContinuous(moduleName, f, t, cur)
	}
	return p.optimizeDiscrete(moduleName, f, cur)
}

func (p *ParameterOptimizer) worthOptimizing(f field) bool {
	if len(f.numeric) > 0 && len(f.numeric) == len(f.values) {
		s := measure(f.numeric, f.numOut)
		return math.Abs(s.correlation) > p.settings.MinCorrelation ||
			s.winRateDiff > p.settings.MinWinRateDiff ||
			(s.variance > p.settings.MinVariance && s.n >= p.settings.MinSamples)
	}
	populated := 0
	for _, b := range bucketize(f) {
		if len(b.outcomes) >= p.settings.MinBucketSize {
			populated++
		}
	}
	return populated >= 2
}

// roundInside rounds v to 4 decimals unless that would land on or past a bound.
func roundInside(v, lower, upper float64) float64 {
	r := math.Round(v*1e4) / 1e4
	if r > lower && r < upper {
		return r
	}
	if r >= upper {
		r = math.Floor(v*1e4) / 1e4
	} else {
		r = math.Ceil(v*1e4) / 1e4
	}
	if r > lower && r < upper {
		return r
	}
	return v
}

func (p *ParameterOptimizer) optimizeContinuous(moduleName string, f field, t Tunable, cur any) (types.ParameterOptimizationResult, bool) {
	curVal, ok := convert.ToFloat64(cur)
	if !ok {
		return types.ParameterOptimizationResult{}, false
	}
	samples := make([]bayes.Sample, len(f.numeric))
	for i, v := range f.numeric {
		samples[i] = bayes.Sample{Params: map[string]float64{t.Name: v}, Outcome: f.numOut[i]}
	}
	sug := p.bayes.Suggest(samples, []bayes.Bound{{Name: t.Name, Lower: t.Lower, Upper: t.Upper}})
	if sug.Explored() {
		return types.ParameterOptimizationResult{}, false
	}
	next := roundInside(sug.Values[t.Name], t.Lower, t.Upper)
	if math.Abs(next-curVal) < p.settings.MinDelta {
		return types.ParameterOptimizationResult{}, false
	}
	predCur, ok := sug.Predict(map[string]float64{t.Name: curVal})
	scale := meanAbs(f.numOut)
	if !ok || scale == 0 {
		return types.ParameterOptimizationResult{}, false
	}
	improvement := (sug.Predicted - predCur) / scale
	if improvement <= p.settings.MinImprovement {
		return types.ParameterOptimizationResult{}, false
	}
	return types.ParameterOptimizationResult{
		ModuleName:          moduleName,
		Parameter:           t.Name,
		OldValue:            curVal,
		NewValue:            next,
		ExpectedImprovement: improvement,
		Confidence:          p.confidence(len(samples)),
		Method:              types.MethodBayesian,
		SampleCount:         len(samples),
	}, true
}

type bucket struct {
	value    any
	outcomes []float64
}

func (b bucket) mean() float64 {
	var sum float64
	for _, o := range b.outcomes {
		sum += o
	}
	return sum / float64(len(b.outcomes))
}

func (p *ParameterOptimizer) optimizeDiscrete(moduleName string, f field, cur any) (types.ParameterOptimizationResult, bool) {
	buckets := bucketize(f)
	curKey := convert.Key(cur)
	var best *bucket
	for i := range buckets {
		b := &buckets[i]
		if len(b.outcomes) < p.settings.MinBucketSize {
			continue
		}
		if best == nil || b.mean() > best.mean() {
			best = b
		}
	}
	if best == nil || convert.Key(best.value) == curKey {
		return types.ParameterOptimizationResult{}, false
	}
	baseline := bucket{outcomes: f.outcomes}
	for _, b := range buckets {
		if convert.Key(b.value) == curKey {
			baseline = b
			break
		}
	}
	scale := meanAbs(f.outcomes)
	if scale == 0 {
		return types.ParameterOptimizationResult{}, false
	}
	improvement := (best.mean() - baseline.mean()) / scale
	if improvement <= 0 {
		return types.ParameterOptimizationResult{}, false
	}
	return types.ParameterOptimizationResult{
		ModuleName:          moduleName,
		Parameter:           f.name,
		OldValue:            cur,
		NewValue:            best.value,
		ExpectedImprovement: improvement,
		Confidence:          p.confidence(len(f.outcomes)),
		Method:              types.MethodDiscreteAnalysis,
		SampleCount:         len(f.outcomes),
	}, true
}

// confidence grows with sample count and never reaches certainty.
func (p *ParameterOptimizer) confidence(n int) float64 {
	c := float64(n) / float64(n+10)
	return math.Min(p.settings.MaxConfidence, c)
}

// collectFields returns every parameter seen in recs, sorted by name.
// Records arrive oldest first, so latest ends on the newest value.
func collectFields(recs []types.PerformanceRecord) []field {
	byName := make(map[string]*field)
	for _, r := range recs {
		outcome := r.Outcome()
		for name, v := range r.Params {
			if v == nil {
				continue
			}
			f, ok := byName[name]
			if !ok {
				f = &field{name: name}
				byName[name] = f
			}
			f.values = append(f.values, v)
			f.outcomes = append(f.outcomes, outcome)
			f.latest = v
			if _, isBool := v.(bool); !isBool {
				if num, ok := convert.ToFloat64(v); ok {
					if _, isString := v.(string); !isString {
						f.numeric = append(f.numeric, num)
						f.numOut = append(f.numOut, outcome)
					}
				}
			}
		}
	}
	out := make([]field, 0, len(byName))
	for _, f := range byName {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// bucketize groups observations by value in first-seen order.
func bucketize(f field) []bucket {
	idx := make(map[string]int)
	var out []bucket
	for i, v := range f.values {
		key := convert.Key(v)
		j, ok := idx[key]
		if !ok {
			j = len(out)
			idx[key] = j
			out = append(out, bucket{value: v})
		}
		out[j].outcomes = append(out[j].outcomes, f.outcomes[i])
	}
	return out
}
