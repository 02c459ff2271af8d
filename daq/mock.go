package daq

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// PositionFunc reports the probe position, used by the mock to synthesize a
// spatially varying signal
type PositionFunc func() (x, y float64)

// MockSampler synthesizes a Gaussian beam profile centered at (CenterX,
// CenterY) with a little read noise.  With a nil position func it returns
// the peak value every time.
type MockSampler struct {
	sync.Mutex

	// Position reports the probe location at acquire time
	Position PositionFunc

	// CenterX, CenterY locate the synthetic beam
	CenterX, CenterY float64

	// Width is the 1/e^2 radius of the synthetic beam
	Width float64

	// Peak is the voltage at beam center
	Peak float64

	// Noise is the 1-sigma read noise in volts
	Noise float64

	// FaultNext, when non-nil, is returned by the next Acquire call and
	// then cleared.  Used to script fault injection in tests.
	FaultNext error

	settings ChannelSettings
}

// NewMockSampler returns a mock with a 10mm-wide unit-peak beam at the origin
func NewMockSampler(pos PositionFunc) *MockSampler {
	return &MockSampler{
		Position: pos,
		Width:    10,
		Peak:     1,
		Noise:    1e-3}
}

// Configure records the channel settings
func (m *MockSampler) Configure(cs ChannelSettings) error {
	m.Lock()
	defer m.Unlock()
	m.settings = cs
	return nil
}

// Acquire synthesizes a reading at the current probe position
func (m *MockSampler) Acquire() (Sample, error) {
	m.Lock()
	defer m.Unlock()
	if m.FaultNext != nil {
		err := m.FaultNext
		m.FaultNext = nil
		return Sample{}, err
	}
	v := m.Peak
	if m.Position != nil {
		x, y := m.Position()
		dx := x - m.CenterX
		dy := y - m.CenterY
		r2 := dx*dx + dy*dy
		v = m.Peak * math.Exp(-2*r2/(m.Width*m.Width))
	}
	v += rand.NormFloat64() * m.Noise
	return Sample{V: v, Timestamp: time.Now()}, nil
}
