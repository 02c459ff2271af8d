// Command rigsrv exposes the scan rig over HTTP: motion jogging, digitizer
// probing, scan orchestration, and result export all live behind one server
// so clients can use any language's HTTP library.
package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"

	yml "gopkg.in/yaml.v2"
)

var (
	// Version is the version number.  Typically injected via ldflags with git build
	Version = "1"

	// ConfigFileName is what it sounds like
	ConfigFileName = "rigsrv.yml"
	k              = koanf.New(".")
)

func defaults() Config {
	return Config{
		Addr: ":8000",
		Motor: MotorSetup{
			Addr:   "/dev/ttyUSB0",
			Serial: true},
		DAQ: DAQSetup{
			Addr:   "192.168.100.40:5025",
			Serial: false},
		Scan: ScanSetup{
			SettleSec:          0.5,
			FirstMoveSettleSec: 2,
			MaxRetries:         3,
			RetryIntervalSec:   0.25}}
}

func setupconfig() {
	k.Load(structs.Provider(defaults(), "yaml"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		errtxt := err.Error()
		if !strings.Contains(errtxt, "no such") { // file missing, who cares
			log.Fatalf("error loading config: %v", err)
		}
	}
}

func root() {
	str := `rigsrv runs the scan rig and exposes an HTTP interface to it.
This enables a server-client architecture, and the clients can leverage the
excellent HTTP libraries for any programming language.

Usage:
	rigsrv <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `rigsrv is amenable to configuration via its .yaml file.  For a primer on
YAML, see https://yaml.org/start.html

Motor.Mock and DAQ.Mock swap the hardware for simulators, which is useful
for testing clients without a rig.

The route graph is:
	/motion/...  jog and query the axes (rejected while a scan runs)
	/daq/...     probe and configure the digitizer
	/scan/...    start, abort, and watch scans
	/export/...  download results as CSV, FITS, or heatmaps
	/endpoints   the full route list as JSON`
	fmt.Println(str)
}

func mkconf() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		log.Fatal(err)
	}
	defer f.Close()
	err = yml.NewEncoder(f).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func printconf() {
	c := Config{}
	k.Unmarshal("", &c)
	err := yml.NewEncoder(os.Stdout).Encode(c)
	if err != nil {
		log.Fatal(err)
	}
}

func pversion() {
	fmt.Printf("rigsrv version %v\n", Version)
}

func run() {
	c := Config{}
	err := k.Unmarshal("", &c)
	if err != nil {
		log.Fatal(err)
	}
	mux := BuildMux(c)
	log.Println("now listening for requests at", c.Addr)
	log.Fatal(http.ListenAndServe(c.Addr, mux))
}

func main() {
	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	cmd := strings.ToLower(args[1])
	switch cmd {
	case "help":
		help()
	case "mkconf":
		mkconf()
	case "conf":
		printconf()
	case "run":
		run()
	case "version":
		pversion()
	default:
		log.Fatal("unknown command")
	}
}
