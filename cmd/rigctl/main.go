// Command rigctl runs a scan from the command line without the HTTP server:
// it drives the rig directly, shows live progress, and writes the results
// to CSV, FITS, and heatmap files.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/theckman/yacspin"

	"github.com/ppfe/macrorig/daq"
	"github.com/ppfe/macrorig/export"
	"github.com/ppfe/macrorig/scan"
	"github.com/ppfe/macrorig/smc"
	"github.com/ppfe/macrorig/util"
)

type options struct {
	motorAddr   string
	motorSerial bool
	daqAddr     string
	daqSerial   bool
	mock        bool

	xmin, xmax, xstep float64
	ymin, ymax, ystep float64
	traversal         string
	boundary          string
	circle            bool

	settle        float64
	firstSettle   float64
	retries       int
	retryInterval float64

	channel    int
	sampleRate float64
	voltRange  float64
	acqTime    float64
	filter     string

	out string
}

func parseFlags() options {
	o := options{}
	flag.StringVar(&o.motorAddr, "motor", "/dev/ttyUSB0", "motion controller address")
	flag.BoolVar(&o.motorSerial, "motor-serial", true, "motion controller is on a serial link")
	flag.StringVar(&o.daqAddr, "daq", "192.168.100.40:5025", "digitizer address")
	flag.BoolVar(&o.daqSerial, "daq-serial", false, "digitizer is on a serial link")
	flag.BoolVar(&o.mock, "mock", false, "simulate all hardware")

	flag.Float64Var(&o.xmin, "xmin", 0, "fast axis minimum, mm")
	flag.Float64Var(&o.xmax, "xmax", 10, "fast axis maximum, mm")
	flag.Float64Var(&o.xstep, "xstep", 1, "fast axis pitch, mm")
	flag.Float64Var(&o.ymin, "ymin", 0, "slow axis minimum, mm")
	flag.Float64Var(&o.ymax, "ymax", 10, "slow axis maximum, mm")
	flag.Float64Var(&o.ystep, "ystep", 1, "slow axis pitch, mm")
	flag.StringVar(&o.traversal, "traversal", "serpentine", "visit order, serpentine or rowmajor")
	flag.StringVar(&o.boundary, "boundary", "include", "uneven step policy, include or truncate")
	flag.BoolVar(&o.circle, "circle", false, "restrict the scan to the inscribed circle")

	flag.Float64Var(&o.settle, "settle", 0.5, "post-move settle, seconds")
	flag.Float64Var(&o.firstSettle, "first-settle", 2, "extra settle on the first point, seconds")
	flag.IntVar(&o.retries, "retries", 3, "acquisition attempts per point")
	flag.Float64Var(&o.retryInterval, "retry-interval", 0.25, "initial delay between attempts, seconds")

	flag.IntVar(&o.channel, "channel", 0, "digitizer input channel")
	flag.Float64Var(&o.sampleRate, "rate", 1000, "digitizer sample rate, Hz")
	flag.Float64Var(&o.voltRange, "range", 10, "digitizer full-scale range, volts")
	flag.Float64Var(&o.acqTime, "acq-time", 0.1, "acquisition time per point, seconds")
	flag.StringVar(&o.filter, "filter", "mean", "sample filter: mean, median, rms, std_filtered")

	flag.StringVar(&o.out, "out", "", "output base name, default scan_<unixtime>")
	flag.Parse()
	if o.out == "" {
		o.out = fmt.Sprintf("scan_%d", time.Now().Unix())
	}
	return o
}

func (o options) plan() scan.Plan {
	return scan.Plan{
		X:          scan.Span{Min: o.xmin, Max: o.xmax, Step: o.xstep},
		Y:          scan.Span{Min: o.ymin, Max: o.ymax, Step: o.ystep},
		Traversal:  scan.Traversal(o.traversal),
		Boundary:   scan.BoundaryPolicy(o.boundary),
		CircleMask: o.circle}
}

func (o options) scanConfig() scan.Config {
	return scan.Config{
		Settle:          util.SecsToDuration(o.settle),
		FirstMoveSettle: util.SecsToDuration(o.firstSettle),
		MaxRetries:      o.retries,
		RetryInterval:   util.SecsToDuration(o.retryInterval),
		Channel: daq.ChannelSettings{
			Channel:         o.channel,
			SampleRate:      o.sampleRate,
			Range:           o.voltRange,
			AcquisitionTime: o.acqTime,
			Filter:          daq.Filter(o.filter)}}
}

func buildRig(o options) (*scan.AxisGroup, daq.Sampler) {
	var ctl scan.AxisController
	if o.mock {
		ctl = smc.NewMockController()
	} else {
		ctl = smc.NewController(o.motorAddr, o.motorSerial)
	}
	init, ok := ctl.(interface{ Initialize(string) error })
	if ok {
		for _, axis := range []string{"X", "Y"} {
			if err := init.Initialize(axis); err != nil {
				log.Fatalf("initializing axis %s: %v", axis, err)
			}
		}
	}
	axes := scan.NewAxisGroup(ctl)
	if o.mock {
		return axes, daq.NewMockSampler(func() (float64, float64) {
			pos, err := axes.Position()
			if err != nil {
				return 0, 0
			}
			return pos.X, pos.Y
		})
	}
	return axes, daq.NewSCPISampler(o.daqAddr, o.daqSerial)
}

func writeFile(name string, write func(io.Writer) error) {
	f, err := os.Create(name)
	if err != nil {
		log.Printf("creating %s: %v", name, err)
		return
	}
	defer f.Close()
	if err := write(f); err != nil {
		log.Printf("writing %s: %v", name, err)
		return
	}
	fmt.Println("wrote", name)
}

func main() {
	o := parseFlags()
	p := o.plan()
	if err := p.Validate(); err != nil {
		log.Fatal(err)
	}
	axes, sampler := buildRig(o)
	orch := scan.New(axes, sampler, o.scanConfig())

	perMove := time.Second
	est := p.Estimate(perMove, util.SecsToDuration(o.settle), util.SecsToDuration(o.acqTime))
	fmt.Printf("%d points, estimated time %s\n", p.NumPoints(), util.FormatDuration(est))

	if err := orch.Start(p); err != nil {
		log.Fatal(err)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		<-sig
		orch.Abort()
	}()

	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[59],
		Suffix:          " scanning",
		SuffixAutoColon: true,
		StopCharacter:   "done",
	})
	if err != nil {
		log.Fatal(err)
	}
	spinner.Start()
	tick := time.NewTicker(250 * time.Millisecond)
	defer tick.Stop()
loop:
	for {
		select {
		case <-orch.Done():
			break loop
		case <-tick.C:
			pr := orch.Progress()
			spinner.Message(fmt.Sprintf("%d/%d points, %s elapsed",
				pr.Index, pr.Total, util.FormatDuration(util.SecsToDuration(pr.ElapsedSec))))
		}
	}
	spinner.Stop()

	state, _ := orch.Status()
	pr := orch.Progress()
	fmt.Printf("scan %s: %d/%d points in %s, %d failed\n",
		state, pr.Index, pr.Total, util.FormatDuration(util.SecsToDuration(pr.ElapsedSec)), pr.Failed)
	if state == scan.StateFaulted {
		log.Fatalf("fault: %v", orch.FaultCause())
	}

	g := orch.Grid()
	if g.Len() == 0 {
		fmt.Println("no points recorded, nothing to write")
		return
	}
	writeFile(o.out+".csv", func(w io.Writer) error { return export.WriteCSV(w, g) })
	writeFile(o.out+".fits", func(w io.Writer) error { return export.WriteFITS(w, g) })
	writeFile(o.out+".png", func(w io.Writer) error { return export.WriteHeatmapPNG(w, g) })
	writeFile(o.out+".html", func(w io.Writer) error { return export.RenderHeatmapHTML(w, g) })
	writeFile(o.out+"_metadata.json", func(w io.Writer) error { return export.WriteMetadata(w, g, pr) })

	if failed := g.Failed(); len(failed) > 0 {
		fmt.Println("failed points:")
		for _, c := range failed {
			fmt.Printf("  (%g, %g)\n", c.X, c.Y)
		}
	}
}
