package optimization

import (
	"fmt"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/floats"
)

// SamplerConfig configures the weight sampler.
type SamplerConfig struct {
	// Constrained enables per-asset minimum investment floors.
	Constrained bool
	// Multiplier draws each weight as a non-negative multiple of the asset's floor.
	Multiplier bool
	// MinWeights holds the per-asset floors; required when Constrained is set.
	MinWeights []float64
	// MaxAttempts bounds the number of candidate vectors before falling back.
	MaxAttempts int
	// MaxComboSize bounds the cardinality of floor combinations inspected.
	MaxComboSize int
	// SumTolerance is the absolute tolerance on sum(w) == 1.
	SumTolerance float64
	// Resolution is the granularity of fractional draws.
	Resolution float64
}

// DefaultSamplerConfig returns the unconstrained sampler defaults.
func DefaultSamplerConfig() SamplerConfig {
	return SamplerConfig{
		MaxAttempts:  100,
		MaxComboSize: 2,
		SumTolerance: 1e-4,
		Resolution:   10000,
	}
}

// SamplerState is a state of the constrained sampling loop.
type SamplerState int

const (
	// StateSampling means candidates are still being drawn.
	StateSampling SamplerState = iota
	// StateValidated means a candidate passed every constraint.
	StateValidated
	// StateExhausted means the budget ran out or no diversification is possible.
	StateExhausted
	// StateFallback means a one-hot vector was returned.
	StateFallback
)

func (s SamplerState) String() string {
	switch s {
	case StateSampling:
		return "sampling"
	case StateValidated:
		return "validated"
	case StateExhausted:
		return "exhausted"
	case StateFallback:
		return "fallback"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SampleOutcome describes how a weight vector was produced.
type SampleOutcome struct {
	State    SamplerState
	Attempts int
}

// WeightSampler draws random long-only weight vectors that sum to one. It is
// immutable after construction and safe for concurrent use as long as each
// goroutine passes its own random source.
type WeightSampler struct {
	n   int
	cfg SamplerConfig

	// diversifiable is false when every floor combination already sums to >= 1.
	diversifiable bool
	// candidates are the indices eligible in multiplier mode.
	candidates []int
}

// NewWeightSampler validates the configuration and precomputes the floor
// combinations used by the constrained branch.
func NewWeightSampler(nAssets int, cfg SamplerConfig) (*WeightSampler, error) {
	if nAssets < 1 {
		return nil, &ValidationError{Field: "assets", Reason: "at least one asset is required"}
	}

	def := DefaultSamplerConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.MaxComboSize <= 0 {
		cfg.MaxComboSize = def.MaxComboSize
	}
	if cfg.SumTolerance <= 0 {
		cfg.SumTolerance = def.SumTolerance
	}
	if cfg.Resolution < 1 {
		cfg.Resolution = def.Resolution
	}

	s := &WeightSampler{n: nAssets, cfg: cfg}
	if !cfg.Constrained {
		return s, nil
	}

	if err := validateMinWeights(nAssets, cfg.MinWeights); err != nil {
		return nil, err
	}
	s.cfg.MinWeights = append([]float64(nil), cfg.MinWeights...)
	s.precompute()
	return s, nil
}

func validateMinWeights(n int, minW []float64) error {
	if minW == nil {
		return &ValidationError{Field: "min_weights", Reason: "must be provided when constraints are enabled"}
	}
	for _, x := range minW {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return &ValidationError{Field: "min_weights", Reason: "must be finite numbers"}
		}
	}
	if len(minW) != n {
		return &ValidationError{Field: "min_weights", Reason: fmt.Sprintf("length %d does not match %d assets", len(minW), n)}
	}
	for _, x := range minW {
		if x < 0 {
			return &ValidationError{Field: "min_weights", Reason: "must be positive"}
		}
	}
	for _, x := range minW {
		if x > 1 {
			return &ValidationError{Field: "min_weights", Reason: "must not exceed 1.0"}
		}
	}
	for _, x := range minW {
		if x == 0 {
			return &ValidationError{Field: "min_weights", Reason: "every entry must be greater than 0"}
		}
	}
	return nil
}

// precompute enumerates floor combinations of size 2..min(n, MaxComboSize).
func (s *WeightSampler) precompute() {
	minW := s.cfg.MinWeights
	k := s.cfg.MaxComboSize
	if s.n < k {
		k = s.n
	}

	s.diversifiable = false
	eligible := make(map[float64]bool)

	for r := 2; r <= k; r++ {
		forEachCombination(s.n, r, func(idx []int) {
			sum := 0.0
			for _, i := range idx {
				sum += minW[i]
			}
			if sum < 1.0 {
				s.diversifiable = true
			}
			if sum <= 1.0 {
				for _, i := range idx {
					eligible[minW[i]] = true
				}
			}
		})
	}

	// Every asset sharing a floor value with an eligible combination is a candidate.
	for i, x := range minW {
		if eligible[x] {
			s.candidates = append(s.candidates, i)
		}
	}
}

// forEachCombination calls fn with every r-subset of [0, n) in lexicographic order.
func forEachCombination(n, r int, fn func([]int)) {
	if r > n || r <= 0 {
		return
	}
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	for {
		fn(idx)
		i := r - 1
		for i >= 0 && idx[i] == n-r+i {
			i--
		}
		if i < 0 {
			return
		}
		idx[i]++
		for j := i + 1; j < r; j++ {
			idx[j] = idx[j-1] + 1
		}
	}
}

// NumAssets returns the vector length produced by the sampler.
func (s *WeightSampler) NumAssets() int {
	return s.n
}

// Sample draws one weight vector.
func (s *WeightSampler) Sample(rng *rand.Rand) []float64 {
	w, _ := s.SampleWithOutcome(rng)
	return w
}

// SampleWithOutcome draws one weight vector and reports the terminal state.
func (s *WeightSampler) SampleWithOutcome(rng *rand.Rand) ([]float64, SampleOutcome) {
	if !s.cfg.Constrained {
		return s.uniform(rng), SampleOutcome{State: StateValidated, Attempts: 1}
	}

	w, attempts, err := s.search(rng)
	if err == nil {
		return w, SampleOutcome{State: StateValidated, Attempts: attempts}
	}
	// errSamplingExhausted is the only error search returns.
	return s.oneHot(rng), SampleOutcome{State: StateFallback, Attempts: attempts}
}

// search runs the bounded Sampling -> Validated | Exhausted loop.
func (s *WeightSampler) search(rng *rand.Rand) ([]float64, int, error) {
	state := StateSampling
	if !s.diversifiable {
		state = StateExhausted
	}

	attempts := 0
	var w []float64
	for state == StateSampling {
		attempts++
		if attempts >= s.cfg.MaxAttempts {
			state = StateExhausted
			break
		}
		w = s.candidate(rng)
		if s.valid(w) {
			state = StateValidated
		}
	}

	if state == StateExhausted {
		return nil, attempts, errSamplingExhausted
	}
	return w, attempts, nil
}

// candidate builds one unvalidated weight vector.
func (s *WeightSampler) candidate(rng *rand.Rand) []float64 {
	minW := s.cfg.MinWeights
	w := make([]float64, s.n)

	var order []int
	if s.cfg.Multiplier {
		order = append([]int(nil), s.candidates...)
	} else {
		order = make([]int, s.n)
		for i := range order {
			order[i] = i
		}
	}
	rng.Shuffle(len(order), func(i, j int) { order[i], order[j] = order[j], order[i] })

	sum := 0.0
	for _, i := range order {
		remaining := 1.0 - sum

		var weight float64
		if s.cfg.Multiplier {
			maxMult := int(math.Floor(remaining / minW[i]))
			if maxMult < 1 {
				maxMult = 1
			}
			weight = float64(rng.Intn(maxMult+1)) * minW[i]
		} else {
			upper := math.Max(s.cfg.Resolution*remaining, 1.0)
			weight = float64(rng.Intn(int(upper))) / upper
		}

		if weight < minW[i] {
			w[i] = 0
		} else {
			w[i] = weight
		}

		sum = floats.Sum(w)
		if sum >= 1.0 {
			break
		}
	}

	if !s.cfg.Multiplier || countNonZero(w) == 1 {
		if total := floats.Sum(w); total > 0 {
			floats.Scale(1/total, w)
		}
	}
	return w
}

// valid checks the constrained invariants.
func (s *WeightSampler) valid(w []float64) bool {
	minW := s.cfg.MinWeights
	anyPositive := false
	for i, x := range w {
		if x < 0 || x == 1 {
			return false
		}
		if x != 0 && x < minW[i] {
			return false
		}
		if x > 0 {
			anyPositive = true
		}
	}
	return anyPositive && math.Abs(floats.Sum(w)-1.0) <= s.cfg.SumTolerance
}

func (s *WeightSampler) oneHot(rng *rand.Rand) []float64 {
	w := make([]float64, s.n)
	w[rng.Intn(s.n)] = 1.0
	return w
}

func (s *WeightSampler) uniform(rng *rand.Rand) []float64 {
	w := make([]float64, s.n)
	for i := range w {
		w[i] = rng.Float64()
	}
	total := floats.Sum(w)
	if total == 0 {
		return s.oneHot(rng)
	}
	for i := range w {
		w[i] /= total
	}
	return w
}

func countNonZero(w []float64) int {
	n := 0
	for _, x := range w {
		if x != 0 {
			n++
		}
	}
	return n
}
