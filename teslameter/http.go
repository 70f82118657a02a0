package teslameter

import (
	"encoding/json"
	"net/http"

	"github.com/lakeshorecryotronics/go-driver/generichttp"
)

// HTTPWrapper exposes a teslameter over HTTP.
type HTTPWrapper struct {
	*Teslameter

	// RouteTable maps methods and paths to handlers.
	RouteTable generichttp.RouteTable
}

// NewHTTPWrapper returns an HTTP wrapper around t with the route table
// pre-configured.
func NewHTTPWrapper(t *Teslameter) HTTPWrapper {
	w := HTTPWrapper{Teslameter: t}
	rt := generichttp.RouteTable{
		{Method: http.MethodGet, Path: "/identity"}:   w.identity,
		{Method: http.MethodGet, Path: "/probe-info"}: w.probeInfo,

		{Method: http.MethodGet, Path: "/field/dc"}:        generichttp.GetFloat(t.DCField),
		{Method: http.MethodGet, Path: "/field/dc-xyz"}:    w.dcFieldXYZ,
		{Method: http.MethodGet, Path: "/field/rms"}:       generichttp.GetFloat(t.RMSField),
		{Method: http.MethodGet, Path: "/field/frequency"}: generichttp.GetFloat(t.Frequency),
		{Method: http.MethodGet, Path: "/field/relative"}:  generichttp.GetFloat(t.RelativeField),
		{Method: http.MethodGet, Path: "/temperature"}:     generichttp.GetFloat(t.Temperature),

		{Method: http.MethodGet, Path: "/field/units"}:  w.fieldUnits,
		{Method: http.MethodPost, Path: "/field/units"}: w.setFieldUnits,

		{Method: http.MethodGet, Path: "/field-control/setpoint"}:  generichttp.GetFloat(t.FieldControlSetpoint),
		{Method: http.MethodPost, Path: "/field-control/setpoint"}: generichttp.SetFloat(t.SetFieldControlSetpoint),
	}
	w.RouteTable = rt
	generichttp.InjectRaw(w, t.Device())
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

func (h HTTPWrapper) probeInfo(w http.ResponseWriter, r *http.Request) {
	info, err := h.ProbeInfo()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(info)
}

func (h HTTPWrapper) dcFieldXYZ(w http.ResponseWriter, r *http.Request) {
	xyz, err := h.DCFieldXYZ()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(xyz)
}

func (h HTTPWrapper) fieldUnits(w http.ResponseWriter, r *http.Request) {
	generichttp.GetString(func() (string, error) {
		units, err := h.FieldUnits()
		return string(units), err
	})(w, r)
}

func (h HTTPWrapper) setFieldUnits(w http.ResponseWriter, r *http.Request) {
	generichttp.SetString(func(s string) error {
		return h.SetFieldUnits(FieldUnits(s))
	})(w, r)
}
