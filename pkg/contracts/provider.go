package contracts

// Provider is a mutable fleet record. Base attributes describe the
// provider's nominal operating envelope; Overlay carries the scenario's or
// oracle's current perturbation of them. EffectiveX() methods combine the
// two and clamp into physical ranges — callers must never read BaseX
// directly when making a routing decision.
type Provider struct {
	ID                 string             `json:"id"`
	Regions            map[string]bool    `json:"regions"`
	AcceleratorClasses map[string]bool    `json:"accelerator_classes"`
	PricePerHour       map[string]float64 `json:"price_per_hour"`       // accelerator class -> price
	CreditsPerHour     map[string]float64 `json:"credits_per_hour"`     // accelerator class -> credits
	BaseLatencyMillis  float64            `json:"base_latency_ms"`
	CapacityPerStep    float64            `json:"capacity_per_step"`
	CapacityRemaining  float64            `json:"capacity_remaining"`
	Reputation         float64            `json:"reputation"` // [0, 100]
	Active             bool               `json:"active"`

	Overlay ProviderOverlay `json:"overlay"`
}

// ProviderOverlay is the dynamic perturbation a scenario/oracle controller
// applies on top of a Provider's base attributes. Latency and reputation
// overlays are additive; capacity and price overlays are multiplicative.
// A zero-value overlay (Latency 0, Reputation 0, Capacity 1, Price 1) is the
// identity transform.
type ProviderOverlay struct {
	AdditiveLatencyMillis   float64 `json:"additive_latency_ms"`
	MultiplicativeCapacity  float64 `json:"multiplicative_capacity"`
	MultiplicativePrice     float64 `json:"multiplicative_price"`
	AdditiveReputation      float64 `json:"additive_reputation"`
}

// IdentityOverlay returns the overlay that leaves base attributes unchanged.
func IdentityOverlay() ProviderOverlay {
	return ProviderOverlay{MultiplicativeCapacity: 1, MultiplicativePrice: 1}
}

// EffectiveLatencyMillis clamps base+overlay latency to a non-negative value.
func (p Provider) EffectiveLatencyMillis() float64 {
	return clampMin(p.BaseLatencyMillis+p.Overlay.AdditiveLatencyMillis, 0)
}

// EffectiveCapacity clamps base*overlay capacity to a non-negative value.
// The invariant capacity_remaining <= effective_capacity is enforced by
// callers that mutate CapacityRemaining after a dispatch, not here.
func (p Provider) EffectiveCapacity() float64 {
	mult := p.Overlay.MultiplicativeCapacity
	if mult == 0 {
		mult = 1
	}
	return clampMin(p.CapacityPerStep*mult, 0)
}

// EffectivePrice returns the effective price for an accelerator class, or
// (0, false) if the provider does not support that class.
func (p Provider) EffectivePrice(accelClass string) (float64, bool) {
	base, ok := p.PricePerHour[accelClass]
	if !ok {
		return 0, false
	}
	mult := p.Overlay.MultiplicativePrice
	if mult == 0 {
		mult = 1
	}
	return clampMin(base*mult, 0), true
}

// EffectiveReputation clamps base+overlay reputation to [0, 100].
func (p Provider) EffectiveReputation() float64 {
	r := p.Reputation + p.Overlay.AdditiveReputation
	if r < 0 {
		return 0
	}
	if r > 100 {
		return 100
	}
	return r
}

func clampMin(v, min float64) float64 {
	if v < min {
		return min
	}
	return v
}
