package cell

import (
	"math"

	"packsim/internal/consts"
)

// Thermal is the lumped thermal parameter block. The heat-transfer model is
// configurable rather than fixed; these values stand in for whatever cooling
// arrangement the pack actually has.
type Thermal struct {
	MassCp float64 // lumped mass x specific heat (J/K)
	HTC    float64 // heat-transfer coefficient to ambient (W/m2.K)
	Area   float64 // cooling surface area (m2)
}

// DefaultThermal approximates a bare 21700 cylindrical cell.
func DefaultThermal() Thermal {
	return Thermal{MassCp: 76.0, HTC: 12.0, Area: 5.3e-3}
}

// Default open-circuit voltage curve for a graphite/NMC cell, interpolated
// linearly between breakpoints.
var (
	defaultOCVSoC = []float64{0.00, 0.05, 0.10, 0.20, 0.30, 0.40, 0.50, 0.60, 0.70, 0.80, 0.90, 1.00}
	defaultOCV    = []float64{3.00, 3.32, 3.45, 3.55, 3.62, 3.66, 3.70, 3.76, 3.84, 3.93, 4.02, 4.10}
)

// ECM is the reference equivalent-circuit cell model: an open-circuit
// voltage source behind a temperature-adjusted series resistance, with a
// lumped single-node thermal update.
type ECM struct {
	capacityAh float64
	r0         float64 // internal resistance at TNOM (ohm)
	tc1        float64 // linear resistance temperature coefficient (1/K)
	tc2        float64 // quadratic resistance temperature coefficient (1/K^2)
	thermal    Thermal
	ocvSoC     []float64
	ocvV       []float64
}

func NewECM(capacityAh, internalRes float64, thermal Thermal) *ECM {
	return &ECM{
		capacityAh: capacityAh,
		r0:         internalRes,
		tc1:        -4.0e-3,
		tc2:        0.0,
		thermal:    thermal,
		ocvSoC:     defaultOCVSoC,
		ocvV:       defaultOCV,
	}
}

// SetOCVTable replaces the open-circuit voltage curve. Breakpoints must be
// sorted by SoC and the two slices must have equal length.
func (m *ECM) SetOCVTable(soc, voltage []float64) {
	m.ocvSoC = soc
	m.ocvV = voltage
}

func (m *ECM) Capacity() float64 { return m.capacityAh }

func (m *ECM) OpenCircuitVoltage(soc, temp float64) float64 {
	if soc <= m.ocvSoC[0] {
		return m.ocvV[0]
	}
	last := len(m.ocvSoC) - 1
	if soc >= m.ocvSoC[last] {
		return m.ocvV[last]
	}
	for i := 1; i <= last; i++ {
		if soc <= m.ocvSoC[i] {
			f := (soc - m.ocvSoC[i-1]) / (m.ocvSoC[i] - m.ocvSoC[i-1])
			return m.ocvV[i-1] + f*(m.ocvV[i]-m.ocvV[i-1])
		}
	}
	return m.ocvV[last]
}

func (m *ECM) InternalResistance(soc, temp float64) float64 {
	dt := temp - consts.TNOM
	factor := 1.0 + m.tc1*dt + m.tc2*dt*dt
	if factor < 0.2 {
		factor = 0.2
	}
	return m.r0 * factor
}

func (m *ECM) Step(st State, current, dt, ambient float64) (State, error) {
	if math.IsNaN(current) || math.IsInf(current, 0) || dt <= 0 {
		return State{}, &DivergenceError{}
	}

	next := st
	next.Current = current
	next.SoC = st.SoC - current*dt/(m.capacityAh*consts.SECS_PER_HOUR)
	if next.SoC < 0 {
		next.SoC = 0
	}
	if next.SoC > 1 {
		next.SoC = 1
	}
	next.DischargedAh = st.DischargedAh + current*dt/consts.SECS_PER_HOUR

	ri := m.InternalResistance(next.SoC, st.Temperature)
	heat := current * current * ri
	cool := m.thermal.HTC * m.thermal.Area * (st.Temperature - ambient)
	if m.thermal.MassCp > 0 {
		next.Temperature = st.Temperature + dt*(heat-cool)/m.thermal.MassCp
	}

	next.Voltage = m.OpenCircuitVoltage(next.SoC, next.Temperature) - current*ri
	if math.IsNaN(next.Voltage) || math.IsInf(next.Voltage, 0) {
		return State{}, &DivergenceError{}
	}

	return next, nil
}
