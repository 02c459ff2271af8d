package daq

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ppfe/macrorig/comm"
)

// SCPISampler reads a bench digitizer or DMM with an SCPI interface over
// TCP or serial.  Each Acquire takes a burst of readings and reduces them
// with the configured filter.
type SCPISampler struct {
	comm.RemoteDevice

	settings   ChannelSettings
	configured bool
}

// NewSCPISampler returns a sampler for an SCPI instrument at addr.
// SCPI instruments terminate with newlines rather than carriage returns.
func NewSCPISampler(addr string, isSerial bool) *SCPISampler {
	rd := comm.NewRemoteDevice(addr, isSerial, nil)
	rd.TxTerm = '\n'
	rd.RxTerm = '\n'
	return &SCPISampler{RemoteDevice: rd}
}

func (s *SCPISampler) writeRead(cmd string) (string, error) {
	resp, err := s.SendRecv([]byte(cmd))
	if err != nil {
		return "", Fault{Kind: FaultComm, Cause: err}
	}
	return strings.TrimSpace(string(resp)), nil
}

func (s *SCPISampler) write(cmds ...string) error {
	for _, cmd := range cmds {
		if err := s.Send([]byte(cmd)); err != nil {
			return Fault{Kind: FaultComm, Cause: err}
		}
	}
	return nil
}

// Configure opens the connection and programs the channel, range, and
// sample rate on the instrument
func (s *SCPISampler) Configure(cs ChannelSettings) error {
	err := s.Open()
	if err != nil {
		return Fault{Kind: FaultComm, Cause: err}
	}
	err = s.write(
		"*CLS",
		fmt.Sprintf(":ROUT:SCAN (@%d)", cs.Channel),
		fmt.Sprintf(":SENS:VOLT:DC:RANG %g", cs.Range),
		fmt.Sprintf(":SENS:VOLT:DC:NPLC %g", nplcFor(cs.SampleRate)),
	)
	if err != nil {
		return err
	}
	s.settings = cs
	s.configured = true
	return nil
}

// nplcFor maps a requested sample rate to the nearest supported
// integration time in power line cycles
func nplcFor(rate float64) float64 {
	switch {
	case rate >= 1000:
		return 0.02
	case rate >= 100:
		return 0.2
	default:
		return 1
	}
}

// Acquire takes SamplesPerPoint readings and reduces them with the
// configured filter
func (s *SCPISampler) Acquire() (Sample, error) {
	if !s.configured {
		return Sample{}, Fault{Kind: FaultBusy, Cause: fmt.Errorf("sampler not configured")}
	}
	n := s.settings.SamplesPerPoint()
	data := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		resp, err := s.writeRead(":MEAS:VOLT:DC?")
		if err != nil {
			return Sample{}, err
		}
		v, err := strconv.ParseFloat(resp, 64)
		if err != nil {
			return Sample{}, Fault{Kind: FaultTimeout, Cause: err}
		}
		// instruments report a sentinel like 9.9e37 when the input
		// exceeds the configured range
		if v > 9e37 || (s.settings.Range > 0 && (v > s.settings.Range || v < -s.settings.Range)) {
			return Sample{}, Fault{Kind: FaultOverrange}
		}
		data = append(data, v)
	}
	return Sample{V: Reduce(data, s.settings.Filter), Timestamp: time.Now()}, nil
}
