package rates

// CoefficientProvider yields the markup multiplier applied on top of the
// converted provider cost. The default of 2 doubles the raw cost.
type CoefficientProvider interface {
	Coefficient() float64
}

// StaticCoefficient is a fixed markup multiplier
type StaticCoefficient struct {
	Value float64
}

// Coefficient returns the multiplier, substituting the default when the
// configured value is not positive
func (c StaticCoefficient) Coefficient() float64 {
	if c.Value <= 0 {
		return DefaultCoefficient
	}
	return c.Value
}

// DefaultCoefficient is the markup applied when none is configured
const DefaultCoefficient = 2.0
