// Command lakeshore-http serves HTTP interfaces to the Lake Shore
// instruments listed in its YAML configuration.
package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/phsym/console-slog"
	yml "gopkg.in/yaml.v2"

	"github.com/lakeshorecryotronics/go-driver/multiserver"
)

var (
	// Version is typically injected via ldflags at build time.
	Version = "1"

	// ConfigFileName is what it sounds like.
	ConfigFileName = "lakeshore.yml"

	k = koanf.New(".")
)

func setupconfig() {
	k.Load(structs.Provider(multiserver.Config{
		Addr:  ":8000",
		Nodes: []multiserver.Node{}}, "koanf"), nil)
	if err := k.Load(file.Provider(ConfigFileName), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such") { // file missing, who cares
			slog.Error("loading config", "err", err)
			os.Exit(1)
		}
	}
}

func root() {
	str := `lakeshore-http communicates with Lake Shore instruments and exposes an HTTP
interface to them.  This enables a server-client architecture, and the
clients can leverage the excellent HTTP libraries for any programming
language.

Usage:
	lakeshore-http <command>

Commands:
	run
	help
	mkconf
	conf
	version`
	fmt.Println(str)
}

func help() {
	str := `lakeshore-http is configured via its .yml file.  For a primer on YAML, see
https://yaml.org/start.html

Without a configuration the server will close immediately and display an
error that there are no endpoints.

No two endpoints can have the same URL.

Each node needs a Type, an Endpoint, and a connection: either Addr for
ethernet instruments or Port / SerialNumber for USB (leave both blank to
take the first matching USB device).

Instrument "type" fields, case insensitive:
- temperature controllers:
	> Model 335 "335", "model335"
	> Model 336 "336", "model336"
	> Model 372 "372", "model372"
- teslameters:
	> F41 / F71 "teslameter", "f41", "f71"
- current sources:
	> Model 121 "121", "currentsource"
- gaussmeters:
	> Model 425 "425", "gaussmeter"
- electromagnet power supplies:
	> Model 643 / 648 "643", "648", "empower"`
	fmt.Println(str)
}

func mkconf() {
	c := multiserver.Config{}
	if err := k.Unmarshal("", &c); err != nil {
		slog.Error("unmarshaling config", "err", err)
		os.Exit(1)
	}
	f, err := os.Create(ConfigFileName)
	if err != nil {
		slog.Error("creating config file", "err", err)
		os.Exit(1)
	}
	defer f.Close()
	if err := yml.NewEncoder(f).Encode(c); err != nil {
		slog.Error("writing config file", "err", err)
		os.Exit(1)
	}
}

func printconf() {
	c := multiserver.Config{}
	k.Unmarshal("", &c)
	if err := yml.NewEncoder(os.Stdout).Encode(c); err != nil {
		slog.Error("encoding config", "err", err)
		os.Exit(1)
	}
}

func pversion() {
	fmt.Printf("lakeshore-http version %v\n", Version)
}

func run() {
	c := multiserver.Config{}
	if err := k.Unmarshal("", &c); err != nil {
		slog.Error("unmarshaling config", "err", err)
		os.Exit(1)
	}
	mux, err := c.BuildMux()
	if err != nil {
		slog.Error("connecting instruments", "err", err)
		os.Exit(1)
	}
	slog.Info("now listening for requests", "addr", c.Addr)
	if err := http.ListenAndServe(c.Addr, mux); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func main() {
	slog.SetDefault(slog.New(console.NewHandler(os.Stderr, &console.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	args := os.Args
	if len(args) == 1 {
		root()
		return
	}
	setupconfig()
	switch strings.ToLower(args[1]) {
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
		slog.Error("unknown command", "cmd", args[1])
		os.Exit(1)
	}
}
