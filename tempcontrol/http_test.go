package tempcontrol_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshorecryotronics/go-driver/server"
	"github.com/lakeshorecryotronics/go-driver/tempcontrol"
)

func wrapped336(t *testing.T, replies ...string) (*httptest.Server, *fakeConn) {
	t.Helper()
	ctl, fake := fake336(t, replies...)
	wrapper := tempcontrol.NewHTTPWrapper(&ctl.Controller, ctl)
	mux := chi.NewRouter()
	wrapper.RT().Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, fake
}

func TestHTTPKelvinReading(t *testing.T) {
	srv, fake := wrapped336(t, "+273.15;0")
	resp, err := http.Get(srv.URL + "/input/A/kelvin")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body server.FloatT
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, 273.15, body.F64)
	assert.Equal(t, "KRDG? A;*ESR?", fake.outgoing[1])
}

func TestHTTPSetSetpoint(t *testing.T) {
	srv, fake := wrapped336(t, "0")
	resp, err := http.Post(srv.URL+"/output/1/setpoint", "application/json",
		strings.NewReader(`{"f64": 300}`))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "SETP 1,300;*ESR?", fake.outgoing[1])
}

func TestHTTPAllHeatersOff(t *testing.T) {
	srv, fake := wrapped336(t, "0")
	resp, err := http.Post(srv.URL+"/all-heaters-off", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "RANGE 1,0;:RANGE 2,0;:RANGE 3,0;:RANGE 4,0;*ESR?", fake.outgoing[1])
}

func TestHTTPInstrumentErrorIs500(t *testing.T) {
	// status register reports a command error
	srv, _ := wrapped336(t, "+0.0;32")
	resp, err := http.Get(srv.URL + "/input/A/kelvin")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHTTPRawPassthrough(t *testing.T) {
	srv, fake := wrapped336(t, "+325.0;0")
	resp, err := http.Post(srv.URL+"/raw", "application/json",
		strings.NewReader(`{"str": "TLIMIT? A"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body server.StrT
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "+325.0", body.Str)
	assert.Equal(t, "TLIMIT? A;*ESR?", fake.outgoing[1])
}

func TestHTTPPID(t *testing.T) {
	srv, _ := wrapped336(t, "+50.0,+20.0,+0.0;0")
	resp, err := http.Get(srv.URL + "/output/1/pid")
	require.NoError(t, err)
	defer resp.Body.Close()

	var pid tempcontrol.PID
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&pid))
	assert.Equal(t, tempcontrol.PID{Gain: 50, Integral: 20}, pid)
}
