// Package daq provides the acquisition side of the rig: a sampler interface,
// channel configuration, and the sample filtering used to reduce a burst of
// readings to one value per scan point.
package daq

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// FaultKind discriminates the causes of an acquisition fault
type FaultKind int

// the kinds of acquisition fault a driver can report
const (
	FaultTimeout FaultKind = iota
	FaultOverrange
	FaultBusy
	FaultComm
)

func (k FaultKind) String() string {
	switch k {
	case FaultTimeout:
		return "timeout"
	case FaultOverrange:
		return "overrange"
	case FaultBusy:
		return "device busy"
	case FaultComm:
		return "communication loss"
	}
	return "unknown"
}

// Fault is an error reported by the digitizer or its link
type Fault struct {
	// Kind is the category of fault
	Kind FaultKind

	// Cause is the underlying driver error, if any
	Cause error
}

func (f Fault) Error() string {
	if f.Cause != nil {
		return fmt.Sprintf("acquisition fault (%s): %v", f.Kind, f.Cause)
	}
	return fmt.Sprintf("acquisition fault (%s)", f.Kind)
}

// Unwrap returns the underlying driver error
func (f Fault) Unwrap() error { return f.Cause }

// Unrecoverable returns true if no further acquisitions should be attempted
// without operator intervention
func (f Fault) Unrecoverable() bool { return f.Kind == FaultComm }

// Filter selects how a burst of samples is reduced to a single value
type Filter string

// the supported sample filters
const (
	// FilterMean averages all samples
	FilterMean Filter = "mean"

	// FilterMedian takes the middle value, reducing outlier impact
	FilterMedian Filter = "median"

	// FilterRMS takes the root mean square, useful for AC signals
	FilterRMS Filter = "rms"

	// FilterStd discards samples beyond two standard deviations
	// of the mean, then averages the remainder
	FilterStd Filter = "std_filtered"
)

// ChannelSettings configures the acquisition channel before a scan begins
type ChannelSettings struct {
	// Channel is the analog input channel number
	Channel int `yaml:"Channel" json:"channel"`

	// SampleRate is the digitizer sample rate in Hz
	SampleRate float64 `yaml:"SampleRate" json:"sampleRate"`

	// Range is the full-scale input range in volts, symmetric about zero
	Range float64 `yaml:"Range" json:"range"`

	// AcquisitionTime is how long to acquire at each point, in seconds.
	// The number of samples per point is SampleRate * AcquisitionTime.
	AcquisitionTime float64 `yaml:"AcquisitionTime" json:"acquisitionTime"`

	// Filter reduces the burst of samples to one value
	Filter Filter `yaml:"Filter" json:"filter"`
}

// SamplesPerPoint returns the number of raw readings taken at each point
func (cs ChannelSettings) SamplesPerPoint() int {
	n := int(cs.SampleRate * cs.AcquisitionTime)
	if n < 1 {
		n = 1
	}
	return n
}

// Sample is one reduced measurement with its capture timestamp
type Sample struct {
	// V is the measured value in volts
	V float64 `json:"v"`

	// Timestamp is when the measurement was captured
	Timestamp time.Time `json:"timestamp"`
}

// Sampler is the acquisition contract consumed by the scan orchestrator
type Sampler interface {
	// Configure performs one-time channel setup before a scan begins
	Configure(ChannelSettings) error

	// Acquire triggers a measurement and returns the reduced sample
	Acquire() (Sample, error)
}

// Reduce applies a filter to a burst of raw readings
func Reduce(data []float64, f Filter) float64 {
	if len(data) == 0 {
		return math.NaN()
	}
	switch f {
	case FilterMedian:
		return median(data)
	case FilterRMS:
		var sumsq float64
		for _, v := range data {
			sumsq += v * v
		}
		return math.Sqrt(sumsq / float64(len(data)))
	case FilterStd:
		return stdFiltered(data)
	default:
		return mean(data)
	}
}

func mean(data []float64) float64 {
	var sum float64
	for _, v := range data {
		sum += v
	}
	return sum / float64(len(data))
}

func median(data []float64) float64 {
	sorted := make([]float64, len(data))
	copy(sorted, data)
	sort.Float64s(sorted)
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// stdFiltered drops samples more than two standard deviations from the mean
// and averages the rest.  If every sample is an outlier, which happens for
// pathological distributions, it falls back to the plain mean.
func stdFiltered(data []float64) float64 {
	m := mean(data)
	var sumsq float64
	for _, v := range data {
		d := v - m
		sumsq += d * d
	}
	sigma := math.Sqrt(sumsq / float64(len(data)))
	var (
		sum float64
		n   int
	)
	for _, v := range data {
		if math.Abs(v-m) < 2*sigma {
			sum += v
			n++
		}
	}
	if n == 0 {
		return m
	}
	return sum / float64(n)
}
