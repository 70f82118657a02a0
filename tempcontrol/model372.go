package tempcontrol

import (
	"fmt"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/register"
)

var model372IDs = []comm.VIDPID{{VID: comm.LakeShoreVID, PID: 0x0305}}

// Model 372 heater output indexes.
const (
	Model372SampleHeater = 0
	Model372WarmupHeater = 1
	Model372AnalogHeater = 2
)

// Model372 is the Model 372 AC resistance bridge and temperature
// controller.  Its measurement inputs are the scanner channels 1-16 plus a
// dedicated control input addressed as "A"; methods take a Channel so both
// kinds are expressed in one argument.
type Model372 struct {
	Controller
}

// NewModel372 connects to a Model 372 over USB serial or, when cfg.Addr is
// set, over its ethernet command port.
func NewModel372(cfg comm.Config) (*Model372, error) {
	cfg = serialDefaults(cfg, 57600)
	if cfg.TCPPort == 0 {
		cfg.TCPPort = 7777
	}
	ctl, err := newController(cfg, model372IDs)
	if err != nil {
		return nil, err
	}
	return &Model372{Controller: *ctl}, nil
}

// KelvinReading returns the temperature of a channel in kelvin.
func (m *Model372) KelvinReading(ch Channel) (float64, error) {
	return m.Controller.KelvinReading(ch.String())
}

// ResistanceReading returns the resistance of a channel in ohms.
func (m *Model372) ResistanceReading(ch Channel) (float64, error) {
	return m.dev.QueryFloat("SRDG? " + ch.String())
}

// QuadratureReading returns the imaginary part of a channel's measurement
// in ohms, an indicator of reactive pickup on the wiring.
func (m *Model372) QuadratureReading(ch Channel) (float64, error) {
	return m.dev.QueryFloat("QRDG? " + ch.String())
}

// ExcitationPowerReading returns the power dissipated in the sensor on a
// channel, in watts.
func (m *Model372) ExcitationPowerReading(ch Channel) (float64, error) {
	return m.dev.QueryFloat("PWRG? " + ch.String())
}

// InputReadingStatus returns the input status flag bits of a channel.
func (m *Model372) InputReadingStatus(ch Channel) (register.Register, error) {
	return m.Controller.InputReadingStatus(ch.String())
}

// ScannedChannel returns the channel the scanner currently dwells on and
// whether autoscan is enabled.
func (m *Model372) ScannedChannel() (Channel, bool, error) {
	resp, err := m.dev.Query("SCAN?")
	if err != nil {
		return Channel{}, false, err
	}
	var ch, autoscan int
	if _, err := fmt.Sscanf(resp, "%d,%d", &ch, &autoscan); err != nil {
		return Channel{}, false, fmt.Errorf("malformed scan response %q", resp)
	}
	return ChannelNumber(ch), autoscan == 1, nil
}

// SetScannedChannel points the scanner at a numbered channel, optionally
// resuming autoscan from it.  The control input is not scanned.
func (m *Model372) SetScannedChannel(ch int, autoscan bool) error {
	return m.dev.Command(fmt.Sprintf("SCAN %d,%d", ch, boolInt(autoscan)))
}

// InputCurve returns the curve number assigned to a channel.
func (m *Model372) InputCurve(ch Channel) (int, error) {
	return m.Controller.InputCurve(ch.String())
}

// SetInputCurve assigns a curve to a channel, validating the assignment the
// same way the base method does.
func (m *Model372) SetInputCurve(ch Channel, curve int) error {
	return m.Controller.SetInputCurve(ch.String(), curve)
}

// AllHeatersOff turns the range of all three heater outputs to off.
func (m *Model372) AllHeatersOff() error {
	return m.dev.Command("RANGE 0,0", "RANGE 1,0", "RANGE 2,0")
}
