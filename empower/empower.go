/*Package empower drives the Model 643 and 648 electromagnet power
supplies.*/
package empower

import (
	"fmt"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/scpi"
)

var supplyIDs = []comm.VIDPID{
	{VID: comm.LakeShoreVID, PID: 0x0601}, // Model 643
	{VID: comm.LakeShoreVID, PID: 0x0602}, // Model 648
}

// Supply is a Model 643 or 648 electromagnet power supply.
type Supply struct {
	dev *scpi.Device
	id  scpi.Identity
}

// serialDefaults resolves an unset Config to the supply's 57600 7-O-1
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

// New connects to a supply over USB serial or, when cfg.Addr is set, over
// its ethernet command port.
func New(cfg comm.Config) (*Supply, error) {
	cfg = serialDefaults(cfg)
	if cfg.TCPPort == 0 {
		cfg.TCPPort = 7777
	}
	conn, err := comm.Open(cfg, supplyIDs)
	if err != nil {
		return nil, err
	}
	dev := scpi.NewDevice(conn, "*ESR?", scpi.CheckStandardEvent)
	id, err := dev.Identification()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "instrument found but unable to communicate, check interface settings on the instrument")
	}
	if cfg.Addr != "" && cfg.SerialNumber != "" && cfg.SerialNumber != id.SerialNumber {
		conn.Close()
		return nil, errors.Wrapf(comm.ErrSerialNumberMismatch,
			"requested %s, found %s", cfg.SerialNumber, id.SerialNumber)
	}
	return &Supply{dev: dev, id: id}, nil
}

// Identity returns the identification fields cached at connect time.
func (s *Supply) Identity() scpi.Identity {
	return s.id
}

// Close releases the connection to the instrument.
func (s *Supply) Close() error {
	return s.dev.Close()
}

// SetCurrentSetpoint programs the output current setpoint in amps.  The
// output ramps to it at the configured ramp rate.
func (s *Supply) SetCurrentSetpoint(amps float64) error {
	return s.dev.Command(fmt.Sprintf("SETI %G", amps))
}

// CurrentSetpoint returns the output current setpoint in amps.
func (s *Supply) CurrentSetpoint() (float64, error) {
	return s.dev.QueryFloat("SETI?")
}

// MeasuredCurrent returns the measured output current in amps.
func (s *Supply) MeasuredCurrent() (float64, error) {
	return s.dev.QueryFloat("RDGI?")
}

// MeasuredVoltage returns the measured output voltage in volts.
func (s *Supply) MeasuredVoltage() (float64, error) {
	return s.dev.QueryFloat("RDGV?")
}

// SetRampRate configures the output ramp rate in amps per second.
func (s *Supply) SetRampRate(ampsPerSecond float64) error {
	return s.dev.Command(fmt.Sprintf("RATE %G", ampsPerSecond))
}

// RampRate returns the output ramp rate in amps per second.
func (s *Supply) RampRate() (float64, error) {
	return s.dev.QueryFloat("RATE?")
}

// SetLimits bounds the output: maximum current in amps, maximum compliance
// voltage in volts, and maximum ramp rate in amps per second.
func (s *Supply) SetLimits(maxCurrent, maxVoltage, maxRate float64) error {
	return s.dev.Command(fmt.Sprintf("LIMIT %G,%G,%G", maxCurrent, maxVoltage, maxRate))
}

// Limits returns the output limits.
func (s *Supply) Limits() (maxCurrent, maxVoltage, maxRate float64, err error) {
	resp, err := s.dev.Query("LIMIT?")
	if err != nil {
		return 0, 0, 0, err
	}
	if _, err := fmt.Sscanf(resp, "%f,%f,%f", &maxCurrent, &maxVoltage, &maxRate); err != nil {
		return 0, 0, 0, errors.Errorf("malformed limit response %q", resp)
	}
	return maxCurrent, maxVoltage, maxRate, nil
}

// Stop ramps the output current to zero at the configured ramp rate.
func (s *Supply) Stop() error {
	return s.dev.Command("STOP")
}

// Reset sets instrument parameters to power-up settings.
func (s *Supply) Reset() error {
	return s.dev.Command("*RST")
}
