// Package strategist implements the epsilon-greedy value-table policy
// described by spec §4.2: Recommend selects a provider for a (state,
// candidates) pair, Update applies the temporal-difference rule from an
// observed reward, and Decay shrinks epsilon once per feedback event.
package strategist

import (
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lattice-compute/routectl/pkg/contracts"
)

// Hyperparameters are the knobs §4.2 names. New does not validate them;
// they are immutable after construction (Decay mutates Epsilon through
// an atomic, not these fields).
type Hyperparameters struct {
	LearningRate      float64 `yaml:"learning_rate" json:"learning_rate"`           // alpha, (0, 1]
	Discount          float64 `yaml:"discount" json:"discount"`                     // gamma, [0, 1]
	BaseEpsilon       float64 `yaml:"base_epsilon" json:"base_epsilon"`             // [0, 1]
	MinEpsilon        float64 `yaml:"min_epsilon" json:"min_epsilon"`               // [0, base_epsilon]
	DecayFactor       float64 `yaml:"decay_factor" json:"decay_factor"`             // (0, 1]
	SignalSensitivity float64 `yaml:"signal_sensitivity" json:"signal_sensitivity"` // k in eps*(1-k*signal)
}

// DefaultHyperparameters documents the calibration this implementation
// chose to satisfy testable property (1) in spec §8 — see DESIGN.md's
// "reward weighting constants" entry for the rationale.
func DefaultHyperparameters() Hyperparameters {
	return Hyperparameters{
		LearningRate:      0.1,
		Discount:          0.9,
		BaseEpsilon:       0.2,
		MinEpsilon:        0.01,
		DecayFactor:       0.999,
		SignalSensitivity: 0.8,
	}
}

// Strategist is the request-scoped value-table policy: it is safe for
// concurrent Recommend/Update calls from many goroutines (§5).
type Strategist struct {
	hp    Hyperparameters
	table *valueTable

	epsilonBits uint64 // atomic, stores math.Float64bits(currentEpsilon)

	rngMu sync.Mutex
	rng   *rand.Rand
}

// New constructs a Strategist with the given hyperparameters and an
// optionally-seeded RNG (nil uses an RNG with the fixed seed 1;
// pass a fixed seed for the deterministic-explore test in spec §8
// scenario 2).
func New(hp Hyperparameters, rng *rand.Rand) *Strategist {
	if rng == nil {
		rng = rand.New(rand.NewSource(1))
	}
	s := &Strategist{hp: hp, table: newValueTable(), rng: rng}
	atomic.StoreUint64(&s.epsilonBits, math.Float64bits(hp.BaseEpsilon))
	return s
}

// Epsilon returns the current exploration rate.
func (s *Strategist) Epsilon() float64 {
	return math.Float64frombits(atomic.LoadUint64(&s.epsilonBits))
}

// Size reports the number of populated (state, action) entries, for
// status() aggregation.
func (s *Strategist) Size() int { return s.table.size() }

// ErrNoViableProviders is returned by Recommend when candidates is empty;
// callers classify it as apierr.KindNoViableProviders at the ingress
// boundary.
var ErrNoViableProviders = noViableProvidersError{}

type noViableProvidersError struct{}

func (noViableProvidersError) Error() string { return "no viable providers" }

// Recommendation is the (provider, metadata) pair Recommend returns.
type Recommendation struct {
	ProviderID string
	Metadata   contracts.ActionMetadata
}

// Recommend selects a provider from candidates for the given state,
// applying signal-modulated epsilon-greedy selection per §4.2. candidates
// must already have been filtered by the constraint validator — Recommend
// performs no constraint checks of its own.
func (s *Strategist) Recommend(state string, candidates []string, signal *float64) (Recommendation, error) {
	if len(candidates) == 0 {
		return Recommendation{}, ErrNoViableProviders
	}

	eps := s.effectiveEpsilon(signal)

	s.rngMu.Lock()
	roll := s.rng.Float64()
	s.rngMu.Unlock()

	if roll < eps {
		s.rngMu.Lock()
		idx := s.rng.Intn(len(candidates))
		s.rngMu.Unlock()
		chosen := candidates[idx]
		return Recommendation{
			ProviderID: chosen,
			Metadata: contracts.ActionMetadata{
				Epsilon:        eps,
				Mode:           contracts.ModeExplore,
				AdaptiveSignal: signal,
				QValue:         s.table.get(state, chosen),
			},
		}, nil
	}

	chosen := s.argmax(state, candidates)
	return Recommendation{
		ProviderID: chosen,
		Metadata: contracts.ActionMetadata{
			Epsilon:        eps,
			Mode:           contracts.ModeExploit,
			AdaptiveSignal: signal,
			QValue:         s.table.get(state, chosen),
		},
	}, nil
}

// argmax returns the candidate with the highest value(state, candidate),
// breaking ties by lowest provider-id for determinism (§4.2).
func (s *Strategist) argmax(state string, candidates []string) string {
	sorted := append([]string(nil), candidates...)
	sort.Strings(sorted)

	best := sorted[0]
	bestVal := s.table.get(state, best)
	for _, c := range sorted[1:] {
		if v := s.table.get(state, c); v > bestVal {
			best, bestVal = c, v
		}
	}
	return best
}

// effectiveEpsilon applies the signal-modulation rule: higher signal biases
// toward exploitation. Absent signal leaves epsilon unmodified.
func (s *Strategist) effectiveEpsilon(signal *float64) float64 {
	eps := s.Epsilon()
	if signal == nil {
		return eps
	}
	modulated := eps * (1 - s.hp.SignalSensitivity*(*signal))
	return clamp(modulated, s.hp.MinEpsilon, 1)
}

// Update applies the temporal-difference rule described by §4.2:
//
//	q <- q + alpha*(reward + gamma*max_a(value(nextState, a)) - q)
//
// nextState may be nil for terminal transitions, in which case the
// future-max term is zero. Update is a no-op — and returns false — for a
// non-finite reward; callers must mark the trace poisoned in that case.
func (s *Strategist) Update(state, action string, reward float64, nextState *string, nextCandidates []string) (newQ float64, applied bool) {
	if math.IsNaN(reward) || math.IsInf(reward, 0) {
		return 0, false
	}

	futureMax := 0.0
	if nextState != nil {
		futureMax = s.table.maxOver(*nextState, nextCandidates)
	}

	updated := s.table.set(state, action, func(old float64) float64 {
		return old + s.hp.LearningRate*(reward+s.hp.Discount*futureMax-old)
	})
	return updated, true
}

// Decay shrinks epsilon by DecayFactor, floored at MinEpsilon. It is
// applied exactly once per feedback event by the router, never inside
// Update itself, so tests can exercise Update without perturbing epsilon.
func (s *Strategist) Decay() float64 {
	for {
		old := atomic.LoadUint64(&s.epsilonBits)
		oldVal := math.Float64frombits(old)
		newVal := oldVal * s.hp.DecayFactor
		if newVal < s.hp.MinEpsilon {
			newVal = s.hp.MinEpsilon
		}
		if atomic.CompareAndSwapUint64(&s.epsilonBits, old, math.Float64bits(newVal)) {
			return newVal
		}
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
