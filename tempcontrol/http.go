package tempcontrol

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/lakeshorecryotronics/go-driver/generichttp"
)

// AllOffer is the whole-instrument heater kill switch each model provides.
type AllOffer interface {
	AllHeatersOff() error
}

// HTTPWrapper exposes a temperature controller over HTTP.  Bind its route
// table onto a chi router to serve it.
type HTTPWrapper struct {
	*Controller

	// RouteTable maps methods and paths to handlers.
	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns an HTTP wrapper around ctl with the route table
// pre-configured.  If ctl's concrete model provides AllHeatersOff, pass it
// as allOff to expose it; otherwise pass nil.
func NewHTTPWrapper(ctl *Controller, allOff AllOffer) HTTPWrapper {
	w := HTTPWrapper{Controller: ctl}
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/identity"}: w.identity,

		{Method: http.MethodGet, Path: "/input/{input}/kelvin"}:  w.reading((*Controller).KelvinReading),
		{Method: http.MethodGet, Path: "/input/{input}/celsius"}: w.reading((*Controller).CelsiusReading),
		{Method: http.MethodGet, Path: "/input/{input}/sensor"}:  w.reading((*Controller).SensorReading),

		{Method: http.MethodGet, Path: "/output/{output}/setpoint"}:  w.outputFloat((*Controller).ControlSetpoint),
		{Method: http.MethodPost, Path: "/output/{output}/setpoint"}: w.setOutputFloat((*Controller).SetControlSetpoint),

		{Method: http.MethodGet, Path: "/output/{output}/heater"}: w.outputFloat((*Controller).HeaterOutput),

		{Method: http.MethodGet, Path: "/output/{output}/range"}:  w.heaterRange,
		{Method: http.MethodPost, Path: "/output/{output}/range"}: w.setHeaterRange,

		{Method: http.MethodGet, Path: "/output/{output}/pid"}:  w.pid,
		{Method: http.MethodPost, Path: "/output/{output}/pid"}: w.setPID,

		{Method: http.MethodGet, Path: "/output/{output}/manual-output"}:  w.outputFloat((*Controller).ManualOutput),
		{Method: http.MethodPost, Path: "/output/{output}/manual-output"}: w.setOutputFloat((*Controller).SetManualOutput),
	}
	if allOff != nil {
		rt[generichttp.MethodPath{Method: http.MethodPost, Path: "/all-heaters-off"}] = func(rw http.ResponseWriter, r *http.Request) {
			if err := allOff.AllHeatersOff(); err != nil {
				http.Error(rw, err.Error(), http.StatusInternalServerError)
				return
			}
			rw.WriteHeader(http.StatusOK)
		}
	}
	w.RouteTable = rt
	generichttp.InjectRaw(w, ctl)
	return w
}

// RT satisfies generichttp.HTTPer.
func (h HTTPWrapper) RT() generichttp.RouteTable {
	return h.RouteTable
}

func (h HTTPWrapper) identity(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Identity())
}

// reading adapts a per-input float getter, pulling the input name from the
// URL.
func (h HTTPWrapper) reading(get func(*Controller, string) (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		generichttp.GetFloat(func() (float64, error) {
			return get(h.Controller, chi.URLParam(r, "input"))
		})(w, r)
	}
}

func outputParam(r *http.Request) (int, error) {
	return strconv.Atoi(chi.URLParam(r, "output"))
}

func (h HTTPWrapper) outputFloat(get func(*Controller, int) (float64, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		output, err := outputParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		generichttp.GetFloat(func() (float64, error) {
			return get(h.Controller, output)
		})(w, r)
	}
}

func (h HTTPWrapper) setOutputFloat(set func(*Controller, int, float64) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		output, err := outputParam(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		generichttp.SetFloat(func(f float64) error {
			return set(h.Controller, output, f)
		})(w, r)
	}
}

func (h HTTPWrapper) heaterRange(w http.ResponseWriter, r *http.Request) {
	output, err := outputParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	generichttp.GetInt(func() (int, error) {
		return h.HeaterRange(output)
	})(w, r)
}

func (h HTTPWrapper) setHeaterRange(w http.ResponseWriter, r *http.Request) {
	output, err := outputParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	generichttp.SetInt(func(i int) error {
		return h.SetHeaterRange(output, i)
	})(w, r)
}

func (h HTTPWrapper) pid(w http.ResponseWriter, r *http.Request) {
	output, err := outputParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	pid, err := h.HeaterPID(output)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(pid)
}

func (h HTTPWrapper) setPID(w http.ResponseWriter, r *http.Request) {
	output, err := outputParam(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	var pid PID
	if err := json.NewDecoder(r.Body).Decode(&pid); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	defer r.Body.Close()
	if err := h.SetHeaterPID(output, pid); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusOK)
}
