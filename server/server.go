// Package server contains the payload types shared by the HTTP interfaces.
package server

import (
	"encoding/json"
	"fmt"
	"go/types"
	"log/slog"
	"net/http"
)

// FloatT is a JSON message of {"f64": value}.
type FloatT struct {
	F64 float64 `json:"f64"`
}

// IntT is a JSON message of {"int": value}.
type IntT struct {
	Int int `json:"int"`
}

// StrT is a JSON message of {"str": value}.
type StrT struct {
	Str string `json:"str"`
}

// BoolT is a JSON message of {"bool": value}.
type BoolT struct {
	Bool bool `json:"bool"`
}

// HumanPayload is a singular value to reply to an HTTP request with, tagged
// with its type so it encodes to the matching single-key JSON message.
type HumanPayload struct {
	// T is the type of the value.
	T types.BasicKind

	Float  float64
	Int    int
	String string
	Bool   bool
}

// EncodeAndRespond writes the payload to w as JSON with a 200 status.
func (hp HumanPayload) EncodeAndRespond(w http.ResponseWriter, r *http.Request) {
	var body interface{}
	switch hp.T {
	case types.Float64:
		body = FloatT{F64: hp.Float}
	case types.Int:
		body = IntT{Int: hp.Int}
	case types.String:
		body = StrT{Str: hp.String}
	case types.Bool:
		body = BoolT{Bool: hp.Bool}
	default:
		http.Error(w, fmt.Sprintf("unencodable payload type %v", hp.T), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("encoding response payload", "err", err)
	}
}
