/*Package gaussmeter drives the Model 425 gaussmeter.*/
package gaussmeter

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/scpi"
)

var model425IDs = []comm.VIDPID{{VID: comm.LakeShoreVID, PID: 0x0401}}

// Units is a field units code.
type Units int

// Field units codes.
const (
	Gauss Units = iota + 1
	Tesla
	Oersted
	AmpPerMeter
)

// Model425 is the Model 425 gaussmeter.
type Model425 struct {
	dev *scpi.Device
	id  scpi.Identity
}

// serialDefaults resolves an unset Config to the instrument's 57600 7-O-1
// framing.  The parity guard is on the zero value, not serial.ParityNone.
func serialDefaults(cfg comm.Config) comm.Config {
	if cfg.Baud == 0 {
		cfg.Baud = 57600
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 7
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = serial.Stop1
	}
	if cfg.Parity == 0 {
		cfg.Parity = serial.ParityOdd
	}
	return cfg
}

// New connects to a Model 425 over USB serial.
func New(cfg comm.Config) (*Model425, error) {
	cfg = serialDefaults(cfg)
	conn, err := comm.Open(cfg, model425IDs)
	if err != nil {
		return nil, err
	}
	dev := scpi.NewDevice(conn, "*ESR?", scpi.CheckStandardEvent)
	id, err := dev.Identification()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "instrument found but unable to communicate, check interface settings on the instrument")
	}
	return &Model425{dev: dev, id: id}, nil
}

// Identity returns the identification fields cached at connect time.
func (m *Model425) Identity() scpi.Identity {
	return m.id
}

// Close releases the connection to the instrument.
func (m *Model425) Close() error {
	return m.dev.Close()
}

// Field returns the present field reading in the configured units.
func (m *Model425) Field() (float64, error) {
	return m.dev.QueryFloat("RDGFIELD?")
}

// SetUnits configures the field measurement units.
func (m *Model425) SetUnits(u Units) error {
	return m.dev.Command(fmt.Sprintf("UNIT %d", u))
}

// Units returns the field measurement units.
func (m *Model425) Units() (Units, error) {
	code, err := m.dev.QueryInt("UNIT?")
	if err != nil {
		return 0, err
	}
	return Units(code), nil
}

// SetAutoRange enables or disables automatic range selection.
func (m *Model425) SetAutoRange(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return m.dev.Command(fmt.Sprintf("AUTO %d", v))
}

// AutoRange reports whether automatic range selection is enabled.
func (m *Model425) AutoRange() (bool, error) {
	return m.dev.QueryBool("AUTO?")
}

// SetRange selects a measurement range code; see the probe's range table.
func (m *Model425) SetRange(code int) error {
	return m.dev.Command(fmt.Sprintf("RANGE %d", code))
}

// Range returns the measurement range code.
func (m *Model425) Range() (int, error) {
	return m.dev.QueryInt("RANGE?")
}

// SetMeasurementMode selects the reading mode: 1 = DC, 2 = RMS, 3 = peak.
func (m *Model425) SetMeasurementMode(mode int) error {
	return m.dev.Command(fmt.Sprintf("RDGMODE %d", mode))
}

// MeasurementMode returns the reading mode code.
func (m *Model425) MeasurementMode() (int, error) {
	return m.dev.QueryInt("RDGMODE?")
}

// SetMaxHold enables or disables max hold capture.
func (m *Model425) SetMaxHold(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return m.dev.Command(fmt.Sprintf("MXHOLD %d", v))
}

// MaxHold reports whether max hold capture is enabled.
func (m *Model425) MaxHold() (bool, error) {
	return m.dev.QueryBool("MXHOLD?")
}

// MaxReading returns the captured maximum field reading.
func (m *Model425) MaxReading() (float64, error) {
	return m.dev.QueryFloat("MXRDGFIELD?")
}

// ZeroProbe starts the probe zeroing routine.  Hold the probe in the zero
// gauss chamber first.
func (m *Model425) ZeroProbe() error {
	return m.dev.Command("ZPROBE")
}

// ProbeSerialNumber returns the attached probe's serial number.
func (m *Model425) ProbeSerialNumber() (string, error) {
	resp, err := m.dev.Query("PRBSN?")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(resp), nil
}

// Reset sets instrument parameters to power-up settings.
func (m *Model425) Reset() error {
	return m.dev.Command("*RST")
}
