/*Package currentsource drives the Model 121 programmable DC current
source.

The 121 speaks the classic command set but implements neither *OPC? nor a
usable standard event check, so nothing here rides the self-checking
transaction path.  Commands chain the compliance status query COMP? so the
instrument still produces a reply to synchronize on, and queries go out
bare.
*/
package currentsource

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/scpi"
)

var model121IDs = []comm.VIDPID{{VID: comm.LakeShoreVID, PID: 0x0100}}

// Current output bounds in amps.
const (
	MinCurrent = 100e-9
	MaxCurrent = 100e-3
)

// userRange is the range code for arbitrary user-programmed currents.
const userRange = 13

// Model121 is the Model 121 programmable DC current source.
type Model121 struct {
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

// New connects to a Model 121 over USB serial.
func New(cfg comm.Config) (*Model121, error) {
	cfg = serialDefaults(cfg)
	conn, err := comm.Open(cfg, model121IDs)
	if err != nil {
		return nil, err
	}
	// no status register worth checking on this model; see package doc
	dev := scpi.NewDevice(conn, "", nil)
	dev.CompletionQuery = "COMP?"
	id, err := dev.Identification()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "instrument found but unable to communicate, check interface settings on the instrument")
	}
	return &Model121{dev: dev, id: id}, nil
}

// Identity returns the identification fields cached at connect time.
func (m *Model121) Identity() scpi.Identity {
	return m.id
}

// Close releases the connection to the instrument.
func (m *Model121) Close() error {
	return m.dev.Close()
}

func (m *Model121) command(cmds ...string) error {
	return m.dev.CommandUnchecked(cmds...)
}

func (m *Model121) queryFloat(query string) (float64, error) {
	resp, err := m.dev.QueryUnchecked(query)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

func (m *Model121) queryInt(query string) (int, error) {
	resp, err := m.dev.QueryUnchecked(query)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

func (m *Model121) queryBool(query string) (bool, error) {
	i, err := m.queryInt(query)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

// SetCurrent switches to the user range, programs the given current, and
// enables the output.  The sign selects the output polarity; the magnitude
// must lie between MinCurrent and MaxCurrent.
func (m *Model121) SetCurrent(amps float64) error {
	magnitude := amps
	if magnitude < 0 {
		magnitude = -magnitude
	}
	if magnitude < MinCurrent || magnitude > MaxCurrent {
		return errors.Errorf("current %G A outside the instrument's %G to %G A range", amps, MinCurrent, MaxCurrent)
	}
	return m.command(
		fmt.Sprintf("RANGE %d", userRange),
		fmt.Sprintf("SETI %G", amps),
		"IENBL 1")
}

// Current returns the programmed user current in amps.
func (m *Model121) Current() (float64, error) {
	return m.queryFloat("SETI?")
}

// EnableOutput turns the current output on.
func (m *Model121) EnableOutput() error {
	return m.command("IENBL 1")
}

// DisableOutput turns the current output off.
func (m *Model121) DisableOutput() error {
	return m.command("IENBL 0")
}

// InComplianceLimit reports whether the output has hit its voltage
// compliance limit.
func (m *Model121) InComplianceLimit() (bool, error) {
	return m.queryBool("COMP?")
}

// Reset sets instrument parameters to power-up settings.
func (m *Model121) Reset() error {
	return m.command("*RST")
}

// FactoryDefaults restores the factory configuration and resets the
// instrument.
func (m *Model121) FactoryDefaults() error {
	return m.command("DFLT 99")
}

// SetDisplayBrightness sets the seven-segment display brightness, 0 (off)
// to 15.
func (m *Model121) SetDisplayBrightness(level int) error {
	return m.command(fmt.Sprintf("BRIGT %d", level))
}

// DisplayBrightness returns the display brightness setting.
func (m *Model121) DisplayBrightness() (int, error) {
	return m.queryInt("BRIGT?")
}

// LockFrontPanel locks the front panel keypad.
func (m *Model121) LockFrontPanel() error {
	return m.command("LOCK 1")
}

// UnlockFrontPanel unlocks the front panel keypad.
func (m *Model121) UnlockFrontPanel() error {
	return m.command("LOCK 0")
}

// FrontPanelLocked reports whether the keypad is locked.
func (m *Model121) FrontPanelLocked() (bool, error) {
	return m.queryBool("LOCK?")
}

// SetPowerUpEnable selects whether the output stays on or shuts off after a
// power cycle.
func (m *Model121) SetPowerUpEnable(on bool) error {
	v := 0
	if on {
		v = 1
	}
	return m.command(fmt.Sprintf("PWUPENBL %d", v))
}

// SaveState saves the present range, polarity, and user current value to be
// loaded on future power ups.
func (m *Model121) SaveState() error {
	return m.command("SETSAVE")
}
