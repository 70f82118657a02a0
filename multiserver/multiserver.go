/*Package multiserver maps a YAML configuration onto a tree of instrument
HTTP interfaces, so one process can serve every instrument in a lab.*/
package multiserver

import (
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/currentsource"
	"github.com/lakeshorecryotronics/go-driver/empower"
	"github.com/lakeshorecryotronics/go-driver/gaussmeter"
	"github.com/lakeshorecryotronics/go-driver/generichttp"
	"github.com/lakeshorecryotronics/go-driver/tempcontrol"
	"github.com/lakeshorecryotronics/go-driver/teslameter"
)

// Node configures one instrument and where to serve it.
type Node struct {
	// Type names the instrument model, case insensitive: "335", "336",
	// "372", "teslameter", "121", "425", "643", "648".
	Type string `yaml:"Type"`

	// Endpoint is the URL prefix the instrument's routes are served
	// under, e.g. "cryostat/336" yields /cryostat/336/input/A/kelvin.
	Endpoint string `yaml:"Endpoint"`

	// Addr selects TCP: the instrument's IP address or host name.
	Addr string `yaml:"Addr"`

	// Port optionally names the serial device instead of scanning.
	Port string `yaml:"Port"`

	// SerialNumber optionally narrows the serial port scan, or
	// cross-checks a TCP-connected instrument.
	SerialNumber string `yaml:"SerialNumber"`

	// Baud overrides the model's default baud rate.
	Baud int `yaml:"Baud"`

	// TimeoutSec bounds each read on the channel, default 2 seconds.
	TimeoutSec int `yaml:"TimeoutSec"`
}

// Config holds the listen address and the instrument list.
type Config struct {
	// Addr is the address to listen at.
	Addr string `yaml:"Addr"`

	// Nodes is the list of instruments to serve.
	Nodes []Node `yaml:"Nodes"`
}

// LoadYAML reads a Config from a YAML file.
func LoadYAML(path string) (Config, error) {
	cfg := Config{}
	f, err := os.Open(path)
	if err != nil {
		return cfg, err
	}
	defer f.Close()
	err = yaml.NewDecoder(f).Decode(&cfg)
	return cfg, err
}

func (n Node) commConfig() comm.Config {
	timeout := 2 * time.Second
	if n.TimeoutSec != 0 {
		timeout = time.Duration(n.TimeoutSec) * time.Second
	}
	return comm.Config{
		Addr:         n.Addr,
		Port:         n.Port,
		SerialNumber: n.SerialNumber,
		Baud:         n.Baud,
		Timeout:      timeout,
	}
}

// connect opens the instrument a node describes and wraps it for HTTP.
func (n Node) connect() (generichttp.HTTPer, error) {
	cfg := n.commConfig()
	switch strings.ToLower(n.Type) {
	case "335", "model335":
		ctl, err := tempcontrol.NewModel335(cfg)
		if err != nil {
			return nil, err
		}
		return tempcontrol.NewHTTPWrapper(&ctl.Controller, ctl), nil
	case "336", "model336":
		ctl, err := tempcontrol.NewModel336(cfg)
		if err != nil {
			return nil, err
		}
		return tempcontrol.NewHTTPWrapper(&ctl.Controller, ctl), nil
	case "372", "model372":
		ctl, err := tempcontrol.NewModel372(cfg)
		if err != nil {
			return nil, err
		}
		return tempcontrol.NewHTTPWrapper(&ctl.Controller, ctl), nil
	case "teslameter", "f41", "f71":
		tm, err := teslameter.New(cfg)
		if err != nil {
			return nil, err
		}
		return teslameter.NewHTTPWrapper(tm), nil
	case "121", "model121", "currentsource":
		src, err := currentsource.New(cfg)
		if err != nil {
			return nil, err
		}
		w := newBasicWrapper(src.Identity())
		w.rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/current"}] = generichttp.GetFloat(src.Current)
		w.rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/current"}] = generichttp.SetFloat(src.SetCurrent)
		return w, nil
	case "425", "model425", "gaussmeter":
		m, err := gaussmeter.New(cfg)
		if err != nil {
			return nil, err
		}
		w := newBasicWrapper(m.Identity())
		w.rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/field"}] = generichttp.GetFloat(m.Field)
		return w, nil
	case "643", "648", "empower":
		s, err := empower.New(cfg)
		if err != nil {
			return nil, err
		}
		w := newBasicWrapper(s.Identity())
		w.rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/current"}] = generichttp.GetFloat(s.MeasuredCurrent)
		w.rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/current-setpoint"}] = generichttp.GetFloat(s.CurrentSetpoint)
		w.rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/current-setpoint"}] = generichttp.SetFloat(s.SetCurrentSetpoint)
		return w, nil
	}
	return nil, errors.Errorf("instrument type %q not understood", n.Type)
}

// basicWrapper serves identity plus whatever routes the caller adds.
type basicWrapper struct {
	rt generichttp.RouteTable
}

func newBasicWrapper(id interface{}) *basicWrapper {
	w := &basicWrapper{rt: generichttp.RouteTable{}}
	w.rt[generichttp.MethodPath{Method: http.MethodGet, Path: "/identity"}] = func(rw http.ResponseWriter, r *http.Request) {
		rw.Header().Set("Content-Type", "application/json")
		json.NewEncoder(rw).Encode(id)
	}
	return w
}

func (b *basicWrapper) RT() generichttp.RouteTable {
	return b.rt
}

// BuildMux connects every configured instrument and mounts its routes
// under its endpoint.  The root serves GET /endpoints: a JSON map from
// endpoint to its routes.
func (c Config) BuildMux() (chi.Router, error) {
	root := chi.NewRouter()
	root.Use(middleware.Logger)
	supergraph := map[string][]generichttp.MethodPath{}

	for _, node := range c.Nodes {
		httper, err := node.connect()
		if err != nil {
			return nil, errors.Wrapf(err, "connecting %q at %q", node.Type, node.Endpoint)
		}
		stem := sanitizeStem(node.Endpoint)
		if _, taken := supergraph[stem]; taken {
			return nil, errors.Errorf("two instruments configured at endpoint %q", stem)
		}
		supergraph[stem] = httper.RT().Endpoints()

		r := chi.NewRouter()
		httper.RT().Bind(r)
		root.Mount(stem, r)
	}

	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(supergraph); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root, nil
}

// sanitizeStem turns "cryostat/336" or "/cryostat/336/" into
// "/cryostat/336".
func sanitizeStem(stem string) string {
	if !strings.HasPrefix(stem, "/") {
		stem = "/" + stem
	}
	return strings.TrimSuffix(stem, "/")
}
