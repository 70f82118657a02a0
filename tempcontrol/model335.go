package tempcontrol

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lakeshorecryotronics/go-driver/comm"
)

var model335IDs = []comm.VIDPID{{VID: comm.LakeShoreVID, PID: 0x0300}}

// Model335 is the Model 335 cryogenic temperature controller.  It has two
// sensor inputs, A and B, and two heater outputs.
type Model335 struct {
	Controller
}

// NewModel335 connects to a Model 335 over USB serial.  The instrument's
// USB baud rate is configurable on its front panel; cfg.Baud must match it
// and defaults to 57600.  The 335 has no ethernet interface.
func NewModel335(cfg comm.Config) (*Model335, error) {
	if cfg.Addr != "" {
		return nil, errors.New("the Model 335 does not have an ethernet interface")
	}
	cfg = serialDefaults(cfg, 57600)
	ctl, err := newController(cfg, model335IDs)
	if err != nil {
		return nil, err
	}
	m := &Model335{Controller: *ctl}
	// the instrument can emulate a Model 331/332 command set; make sure
	// it speaks its own
	if err := m.dev.CommandUnchecked("EMUL 0"); err != nil {
		m.Close()
		return nil, errors.Wrap(err, "disabling emulation mode")
	}
	return m, nil
}

// AllKelvinReadings returns the temperature of inputs A and B, in order.
func (m *Model335) AllKelvinReadings() ([]float64, error) {
	resp, err := m.dev.Query("KRDG? A", "KRDG? B")
	if err != nil {
		return nil, err
	}
	fields := strings.Split(resp, ";")
	readings := make([]float64, len(fields))
	for i, f := range fields {
		readings[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
	}
	return readings, nil
}

// AllHeatersOff turns the range of both heater outputs to off.
func (m *Model335) AllHeatersOff() error {
	return m.dev.Command("RANGE 1,0", "RANGE 2,0")
}
