package tempcontrol

import (
	"strconv"
	"strings"

	"github.com/lakeshorecryotronics/go-driver/comm"
)

var model336IDs = []comm.VIDPID{{VID: comm.LakeShoreVID, PID: 0x0301}}

// Model336 is the Model 336 cryogenic temperature controller: four sensor
// inputs (A through D) and four heater outputs.
type Model336 struct {
	Controller
}

// NewModel336 connects to a Model 336 over USB serial or, when cfg.Addr is
// set, over its ethernet command port.
func NewModel336(cfg comm.Config) (*Model336, error) {
	cfg = serialDefaults(cfg, 57600)
	if cfg.TCPPort == 0 {
		cfg.TCPPort = 7777
	}
	ctl, err := newController(cfg, model336IDs)
	if err != nil {
		return nil, err
	}
	return &Model336{Controller: *ctl}, nil
}

// AllKelvinReadings returns the temperature of every input in one
// transaction, in input order A through D.
func (m *Model336) AllKelvinReadings() ([]float64, error) {
	// input 0 means all inputs; the reply is comma separated
	resp, err := m.dev.Query("KRDG? 0")
	if err != nil {
		return nil, err
	}
	fields := strings.Split(resp, ",")
	readings := make([]float64, len(fields))
	for i, f := range fields {
		readings[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64)
		if err != nil {
			return nil, err
		}
	}
	return readings, nil
}

// AllHeatersOff turns the range of all four outputs to off.
func (m *Model336) AllHeatersOff() error {
	return m.dev.Command("RANGE 1,0", "RANGE 2,0", "RANGE 3,0", "RANGE 4,0")
}
