package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/ppfe/macrorig/daq"
	"github.com/ppfe/macrorig/export"
	"github.com/ppfe/macrorig/generichttp"
	"github.com/ppfe/macrorig/generichttp/motion"
	"github.com/ppfe/macrorig/scan"
	"github.com/ppfe/macrorig/server/middleware/locker"
	"github.com/ppfe/macrorig/smc"
	"github.com/ppfe/macrorig/util"
)

// MotorSetup holds the connection parameters for the motion controller
type MotorSetup struct {
	// Addr is the network or filesystem address of the controller,
	// e.g. 192.168.100.123:2006 for a device behind a terminal server
	// or /dev/ttyUSB0 for a direct serial cable
	Addr string `yaml:"Addr"`

	// Serial is true for an RS232 link, false for TCP
	Serial bool `yaml:"Serial"`

	// Mock swaps the controller for a simulated one; no hardware is touched
	Mock bool `yaml:"Mock"`

	// XLimit and YLimit are server-side software travel limits in mm
	XLimit util.Limiter `yaml:"XLimit"`
	YLimit util.Limiter `yaml:"YLimit"`
}

// DAQSetup holds the connection parameters for the digitizer
type DAQSetup struct {
	Addr   string `yaml:"Addr"`
	Serial bool   `yaml:"Serial"`

	// Mock swaps the digitizer for a simulated Gaussian beam
	Mock bool `yaml:"Mock"`
}

// ScanSetup holds the orchestrator defaults.  Durations are in seconds to
// keep the YAML plain.
type ScanSetup struct {
	SettleSec          float64             `yaml:"SettleSec"`
	FirstMoveSettleSec float64             `yaml:"FirstMoveSettleSec"`
	MaxRetries         int                 `yaml:"MaxRetries"`
	RetryIntervalSec   float64             `yaml:"RetryIntervalSec"`
	Channel            daq.ChannelSettings `yaml:"Channel"`
}

// Config holds the initialization parameters for the server
type Config struct {
	// Addr is the address to listen at
	Addr string `yaml:"Addr"`

	Motor MotorSetup `yaml:"Motor"`
	DAQ   DAQSetup   `yaml:"DAQ"`
	Scan  ScanSetup  `yaml:"Scan"`
}

func (s ScanSetup) orchestratorConfig() scan.Config {
	return scan.Config{
		Settle:          util.SecsToDuration(s.SettleSec),
		FirstMoveSettle: util.SecsToDuration(s.FirstMoveSettleSec),
		MaxRetries:      s.MaxRetries,
		RetryInterval:   util.SecsToDuration(s.RetryIntervalSec),
		Channel:         s.Channel}
}

// rigController is everything the server needs from a motion driver
type rigController interface {
	motion.Mover
	motion.Enabler
	motion.InPositionQueryer
	motion.Speeder

	// Initialize programs the drive registers and homes the axis
	Initialize(string) error
}

func buildController(c MotorSetup) rigController {
	if c.Mock {
		return smc.NewMockController()
	}
	return smc.NewController(c.Addr, c.Serial)
}

func buildSampler(c DAQSetup, axes *scan.AxisGroup) daq.Sampler {
	if c.Mock {
		return daq.NewMockSampler(func() (float64, float64) {
			pos, err := axes.Position()
			if err != nil {
				return 0, 0
			}
			return pos.X, pos.Y
		})
	}
	return daq.NewSCPISampler(c.Addr, c.Serial)
}

// scanGuard rejects hardware commands while a scan owns the rig
func scanGuard(o *scan.Orchestrator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if st, _ := o.Status(); st == scan.StateRunning {
				http.Error(w, "axes are owned by the running scan", http.StatusLocked)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// BuildMux initializes the rig from the config and assembles the full route
// graph.  The mux serves a special route, /endpoints, which returns a map of
// all routes as JSON.
func BuildMux(c Config) chi.Router {
	ctl := buildController(c.Motor)
	for _, axis := range []string{"X", "Y"} {
		if err := ctl.Initialize(axis); err != nil {
			log.Fatalf("initializing axis %s: %v", axis, err)
		}
	}
	axes := scan.NewAxisGroup(ctl)
	sampler := buildSampler(c.DAQ, axes)
	orch := scan.New(axes, sampler, c.Scan.orchestratorConfig())

	limits := motion.LimitMiddleware{
		Mov: ctl,
		Limits: map[string]util.Limiter{
			"X": c.Motor.XLimit,
			"Y": c.Motor.YLimit}}
	lock := locker.New()

	httpMotion := motion.NewHTTPMotionController(ctl)
	limits.Inject(httpMotion)
	locker.Inject(httpMotion, lock)
	httpDAQ := daq.NewHTTPSampler(sampler)
	httpScan := scan.NewHTTPOrchestrator(orch)
	httpExport := export.NewHTTPExporter(orch.Grid)

	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]string{}

	mount := func(stem string, h generichttp.HTTPer, mw ...func(http.Handler) http.Handler) {
		sub := chi.NewRouter()
		for _, m := range mw {
			sub.Use(m)
		}
		h.RT().Bind(sub)
		supergraph["/"+stem+"/"] = h.RT().Endpoints()
		root.Mount("/"+stem, sub)
	}

	guard := scanGuard(orch)
	mount("motion", httpMotion, limits.Check, lock.Check, guard)
	mount("daq", httpDAQ, guard)
	mount("scan", httpScan)
	mount("export", httpExport)

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root
}
