/*Package tempcontrol drives the Lake Shore cryogenic temperature
controllers: Models 335, 336, and 372.

The models share one command vocabulary, transport framing (7 data bits, odd
parity, one stop bit), and the IEEE-488.2 standard event register for error
checking; Controller carries everything common and the model types add their
own constructors and quirks.

	ctl, err := tempcontrol.NewModel336(comm.Config{})
	if err != nil {
		// no controller attached
	}
	defer ctl.Close()
	temps, err := ctl.AllKelvinReadings()
*/
package tempcontrol

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/tarm/serial"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/register"
	"github.com/lakeshorecryotronics/go-driver/scpi"
)

// ErrCurveMismatch is generated when an input accepted a curve assignment
// but reports curve zero afterwards, meaning the selected curve's data
// format does not match the sensor type configured on that input.
var ErrCurveMismatch = errors.New("the specified curve type does not match the configured input type")

// OperationEventBits is the operation event register layout, LSB to MSB.
var OperationEventBits = register.Names{
	"alarm",
	"sensor_overload",
	"loop_2_ramp_done",
	"loop_1_ramp_done",
	"new_sensor_reading",
	"autotune_process_completed",
	"calibration_error",
	"processor_communication_error",
}

// InputReadingStatusBits is the input status flag register layout reported
// by RDGST?.
var InputReadingStatusBits = register.Names{
	"invalid_reading",
	"",
	"",
	"",
	"temp_underrange",
	"temp_overrange",
	"sensor_units_zero",
	"sensor_units_overrange",
}

// HeaterError is the heater status reported by HTRST?.
type HeaterError int

// Heater status codes.
const (
	HeaterOK HeaterError = iota
	HeaterOpenLoad
	HeaterShort
)

func (h HeaterError) String() string {
	switch h {
	case HeaterOK:
		return "OK"
	case HeaterOpenLoad:
		return "OPEN"
	case HeaterShort:
		return "SHORT"
	}
	return fmt.Sprintf("HeaterError(%d)", int(h))
}

// Channel identifies a measurement input on instruments that mix numbered
// scanner channels with the dedicated control input (Model 372).  The zero
// value is not a valid channel; use ChannelNumber or ControlChannel.
type Channel struct {
	control bool
	number  int
}

// ChannelNumber selects scanner input n (1-16 on the Model 372).
func ChannelNumber(n int) Channel {
	return Channel{number: n}
}

// ControlChannel selects the dedicated control input, "A" on the wire.
func ControlChannel() Channel {
	return Channel{control: true}
}

func (c Channel) String() string {
	if c.control {
		return "A"
	}
	return strconv.Itoa(c.number)
}

// PID holds the closed-loop control constants for one heater output.
type PID struct {
	Gain       float64 // proportional
	Integral   float64
	Derivative float64
}

// SetpointRamp configures how the setpoint approaches a new value.
type SetpointRamp struct {
	Enabled bool
	// Rate is in setpoint units per minute.
	Rate float64
}

// AlarmSettings configures an input alarm.
type AlarmSettings struct {
	HighValue   float64
	LowValue    float64
	Deadband    float64
	LatchEnable bool
	Audible     bool
	Visible     bool
}

// Alarm is the alarm configuration reported by the instrument.
type Alarm struct {
	Enabled bool
	AlarmSettings
}

// AlarmStatus is the live alarm state of one input.
type AlarmStatus struct {
	HighActive bool
	LowActive  bool
}

// CurveHeader describes a temperature sensor calibration curve.
type CurveHeader struct {
	Name         string
	SerialNumber string
	// Format is the curve data format code from the instrument manual
	// (e.g. 2 = V/K, 3 = Ohm/K, 4 = log Ohm/K).
	Format int
	// Limit is the curve temperature limit in kelvin.
	Limit float64
	// Coefficient is 1 for negative, 2 for positive.
	Coefficient int
}

// CurvePoint is a single breakpoint of a calibration curve.
type CurvePoint struct {
	SensorUnits float64
	Kelvin      float64
}

// MinMax is the minimum and maximum reading captured on an input.
type MinMax struct {
	Min float64
	Max float64
}

// Controller is the functionality common to all of the temperature
// controller models.
type Controller struct {
	dev *scpi.Device
	id  scpi.Identity
}

// defaults shared by the family's serial interfaces
func serialDefaults(cfg comm.Config, baud int) comm.Config {
	if cfg.Baud == 0 {
		cfg.Baud = baud
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 7
	}
	if cfg.StopBits == 0 {
		cfg.StopBits = serial.Stop1
	}
	// zero value, not serial.ParityNone ('N'): an unset Config must still
	// resolve to the 7-O-1 framing the classic interfaces require
	if cfg.Parity == 0 {
		cfg.Parity = serial.ParityOdd
	}
	return cfg
}

func newController(cfg comm.Config, ids []comm.VIDPID) (*Controller, error) {
	conn, err := comm.Open(cfg, ids)
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
	return &Controller{dev: dev, id: id}, nil
}

// Identity returns the identification fields cached at connect time.
func (c *Controller) Identity() scpi.Identity {
	return c.id
}

// Command sends raw commands through the checked transaction path.  Most
// callers should prefer the typed methods.
func (c *Controller) Command(cmds ...string) error {
	return c.dev.Command(cmds...)
}

// Query sends a raw query through the checked transaction path.
func (c *Controller) Query(queries ...string) (string, error) {
	return c.dev.Query(queries...)
}

// Close releases the connection to the instrument.
func (c *Controller) Close() error {
	return c.dev.Close()
}

// Reset sets controller parameters to power-up settings.
func (c *Controller) Reset() error {
	return c.dev.Command("*RST")
}

// ClearInterface clears the status byte, standard event, and operation
// event registers and terminates pending operations.  The controller
// settings themselves are untouched.
func (c *Controller) ClearInterface() error {
	return c.dev.Command("*CLS")
}

// StandardEventEnable returns the standard event enable mask; set bits
// propagate to the status byte's event summary.
func (c *Controller) StandardEventEnable() (register.Register, error) {
	resp, err := c.dev.QueryUnchecked("*ESE?")
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(resp), 10, 16)
	if err != nil {
		return nil, err
	}
	return register.Decode(uint16(value), scpi.StandardEventBits), nil
}

// SetStandardEventEnable configures the standard event enable mask.
func (c *Controller) SetStandardEventEnable(mask register.Register) error {
	return c.dev.Command(fmt.Sprintf("*ESE %d", mask.Encode(scpi.StandardEventBits)))
}

// OperationCondition returns the live operation condition register.
func (c *Controller) OperationCondition() (register.Register, error) {
	return c.queryRegister("OPST?", OperationEventBits)
}

// OperationEvent returns and clears the latched operation event register.
func (c *Controller) OperationEvent() (register.Register, error) {
	return c.queryRegister("OPSTR?", OperationEventBits)
}

// OperationEventEnable returns the operation event enable mask.
func (c *Controller) OperationEventEnable() (register.Register, error) {
	return c.queryRegister("OPSTE?", OperationEventBits)
}

// SetOperationEventEnable configures which operation events propagate to
// the status byte.
func (c *Controller) SetOperationEventEnable(mask register.Register) error {
	return c.dev.Command(fmt.Sprintf("OPSTE %d", mask.Encode(OperationEventBits)))
}

func (c *Controller) queryRegister(query string, names register.Names) (register.Register, error) {
	resp, err := c.dev.Query(query)
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(resp), 10, 16)
	if err != nil {
		return nil, err
	}
	return register.Decode(uint16(value), names), nil
}

// KelvinReading returns the temperature of an input in kelvin.
func (c *Controller) KelvinReading(input string) (float64, error) {
	return c.dev.QueryFloat("KRDG? " + input)
}

// CelsiusReading returns the temperature of an input in degrees Celsius.
func (c *Controller) CelsiusReading(input string) (float64, error) {
	return c.dev.QueryFloat("CRDG? " + input)
}

// SensorReading returns an input's reading in sensor units (volts or ohms).
func (c *Controller) SensorReading(input string) (float64, error) {
	return c.dev.QueryFloat("SRDG? " + input)
}

// InputReadingStatus returns the input status flag bits for an input; a
// reading is only valid when none are set.
func (c *Controller) InputReadingStatus(input string) (register.Register, error) {
	return c.queryRegister("RDGST? "+input, InputReadingStatusBits)
}

// ControlSetpoint returns the setpoint of a heater output.
func (c *Controller) ControlSetpoint(output int) (float64, error) {
	return c.dev.QueryFloat(fmt.Sprintf("SETP? %d", output))
}

// SetControlSetpoint sets the setpoint of a heater output, in the preferred
// units of the control loop sensor.
func (c *Controller) SetControlSetpoint(output int, value float64) error {
	return c.dev.Command(fmt.Sprintf("SETP %d,%G", output, value))
}

// HeaterOutput returns the present heater output in percent of full scale.
func (c *Controller) HeaterOutput(output int) (float64, error) {
	return c.dev.QueryFloat(fmt.Sprintf("HTR? %d", output))
}

// HeaterStatus returns the error condition of a heater output.
func (c *Controller) HeaterStatus(output int) (HeaterError, error) {
	code, err := c.dev.QueryInt(fmt.Sprintf("HTRST? %d", output))
	if err != nil {
		return 0, err
	}
	return HeaterError(code), nil
}

// HeaterRange returns the range (power scale) of a heater output; zero is
// off.
func (c *Controller) HeaterRange(output int) (int, error) {
	return c.dev.QueryInt(fmt.Sprintf("RANGE? %d", output))
}

// SetHeaterRange sets the range of a heater output; zero turns it off.
func (c *Controller) SetHeaterRange(output, heaterRange int) error {
	return c.dev.Command(fmt.Sprintf("RANGE %d,%d", output, heaterRange))
}

// HeaterPID returns the control loop constants of a heater output.
func (c *Controller) HeaterPID(output int) (PID, error) {
	resp, err := c.dev.Query(fmt.Sprintf("PID? %d", output))
	if err != nil {
		return PID{}, err
	}
	fields, err := splitFloats(resp, 3)
	if err != nil {
		return PID{}, errors.Wrap(err, "parsing PID response")
	}
	return PID{Gain: fields[0], Integral: fields[1], Derivative: fields[2]}, nil
}

// SetHeaterPID configures the control loop constants of a heater output.
func (c *Controller) SetHeaterPID(output int, pid PID) error {
	return c.dev.Command(fmt.Sprintf("PID %d,%G,%G,%G", output, pid.Gain, pid.Integral, pid.Derivative))
}

// SetpointRamp returns the ramp configuration of a heater output.
func (c *Controller) SetpointRamp(output int) (SetpointRamp, error) {
	resp, err := c.dev.Query(fmt.Sprintf("RAMP? %d", output))
	if err != nil {
		return SetpointRamp{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) != 2 {
		return SetpointRamp{}, errors.Errorf("malformed ramp response %q", resp)
	}
	rate, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
	if err != nil {
		return SetpointRamp{}, err
	}
	return SetpointRamp{Enabled: strings.TrimSpace(fields[0]) == "1", Rate: rate}, nil
}

// SetSetpointRamp configures ramping of a heater output's setpoint.
func (c *Controller) SetSetpointRamp(output int, ramp SetpointRamp) error {
	return c.dev.Command(fmt.Sprintf("RAMP %d,%d,%G", output, boolInt(ramp.Enabled), ramp.Rate))
}

// SetpointRampActive reports whether the setpoint is currently ramping.
func (c *Controller) SetpointRampActive(output int) (bool, error) {
	return c.dev.QueryBool(fmt.Sprintf("RAMPST? %d", output))
}

// ManualOutput returns the manual heater output in percent.
func (c *Controller) ManualOutput(output int) (float64, error) {
	return c.dev.QueryFloat(fmt.Sprintf("MOUT? %d", output))
}

// SetManualOutput sets the manual heater output in percent.
func (c *Controller) SetManualOutput(output int, percent float64) error {
	return c.dev.Command(fmt.Sprintf("MOUT %d,%G", output, percent))
}

// InputCurve returns the curve number an input uses for temperature
// conversion; zero means no curve.
func (c *Controller) InputCurve(input string) (int, error) {
	return c.dev.QueryInt("INCRV? " + input)
}

// SetInputCurve assigns a curve (0 = none, 1-20 standard, 21-59 user) to an
// input.  The instrument silently rejects curves whose data format does not
// match the input's sensor type, so the assignment is read back and
// ErrCurveMismatch returned if it did not stick.
func (c *Controller) SetInputCurve(input string, curve int) error {
	if err := c.dev.Command(fmt.Sprintf("INCRV %s,%d", input, curve)); err != nil {
		return err
	}
	if curve == 0 {
		return nil
	}
	set, err := c.InputCurve(input)
	if err != nil {
		return err
	}
	if set == 0 {
		return ErrCurveMismatch
	}
	return nil
}

// CurveHeader returns the header parameters of a curve.
func (c *Controller) CurveHeader(curve int) (CurveHeader, error) {
	resp, err := c.dev.Query(fmt.Sprintf("CRVHDR? %d", curve))
	if err != nil {
		return CurveHeader{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) != 5 {
		return CurveHeader{}, errors.Errorf("malformed curve header %q", resp)
	}
	format, err := strconv.Atoi(strings.TrimSpace(fields[2]))
	if err != nil {
		return CurveHeader{}, err
	}
	limit, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
	if err != nil {
		return CurveHeader{}, err
	}
	coefficient, err := strconv.Atoi(strings.TrimSpace(fields[4]))
	if err != nil {
		return CurveHeader{}, err
	}
	return CurveHeader{
		Name:         strings.TrimSpace(fields[0]),
		SerialNumber: strings.TrimSpace(fields[1]),
		Format:       format,
		Limit:        limit,
		Coefficient:  coefficient,
	}, nil
}

// SetCurveHeader configures the header of a user curve (21-59).
func (c *Controller) SetCurveHeader(curve int, h CurveHeader) error {
	return c.dev.Command(fmt.Sprintf("CRVHDR %d,%s,%s,%d,%G,%d",
		curve, h.Name, h.SerialNumber, h.Format, h.Limit, h.Coefficient))
}

// CurvePoint returns one breakpoint of a curve.
func (c *Controller) CurvePoint(curve, index int) (CurvePoint, error) {
	resp, err := c.dev.Query(fmt.Sprintf("CRVPT? %d,%d", curve, index))
	if err != nil {
		return CurvePoint{}, err
	}
	fields, err := splitFloats(resp, 2)
	if err != nil {
		return CurvePoint{}, errors.Wrap(err, "parsing curve point")
	}
	return CurvePoint{SensorUnits: fields[0], Kelvin: fields[1]}, nil
}

// SetCurvePoint writes one breakpoint of a user curve.
func (c *Controller) SetCurvePoint(curve, index int, p CurvePoint) error {
	return c.dev.Command(fmt.Sprintf("CRVPT %d,%d,%G,%G", curve, index, p.SensorUnits, p.Kelvin))
}

// DeleteCurve deletes a user curve.
func (c *Controller) DeleteCurve(curve int) error {
	return c.dev.Command(fmt.Sprintf("CRVDEL %d", curve))
}

// SetAlarm enables an input alarm with the given settings.
func (c *Controller) SetAlarm(input string, s AlarmSettings) error {
	return c.dev.Command(fmt.Sprintf("ALARM %s,1,%G,%G,%G,%d,%d,%d",
		input, s.HighValue, s.LowValue, s.Deadband,
		boolInt(s.LatchEnable), boolInt(s.Audible), boolInt(s.Visible)))
}

// DisableAlarm turns off the alarm on an input.
func (c *Controller) DisableAlarm(input string) error {
	return c.dev.Command(fmt.Sprintf("ALARM %s,0,,,,,,", input))
}

// AlarmParameters returns the alarm configuration of an input.
func (c *Controller) AlarmParameters(input string) (Alarm, error) {
	resp, err := c.dev.Query("ALARM? " + input)
	if err != nil {
		return Alarm{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) < 7 {
		return Alarm{}, errors.Errorf("malformed alarm response %q", resp)
	}
	nums, err := splitFloats(strings.Join(fields[1:4], ","), 3)
	if err != nil {
		return Alarm{}, err
	}
	return Alarm{
		Enabled: strings.TrimSpace(fields[0]) == "1",
		AlarmSettings: AlarmSettings{
			HighValue:   nums[0],
			LowValue:    nums[1],
			Deadband:    nums[2],
			LatchEnable: strings.TrimSpace(fields[4]) == "1",
			Audible:     strings.TrimSpace(fields[5]) == "1",
			Visible:     strings.TrimSpace(fields[6]) == "1",
		},
	}, nil
}

// AlarmStatus returns the live high/low alarm state of an input.
func (c *Controller) AlarmStatus(input string) (AlarmStatus, error) {
	resp, err := c.dev.Query("ALARMST? " + input)
	if err != nil {
		return AlarmStatus{}, err
	}
	fields := strings.Split(resp, ",")
	if len(fields) != 2 {
		return AlarmStatus{}, errors.Errorf("malformed alarm status %q", resp)
	}
	return AlarmStatus{
		HighActive: strings.TrimSpace(fields[0]) == "1",
		LowActive:  strings.TrimSpace(fields[1]) == "1",
	}, nil
}

// ResetAlarms clears the latched state of all alarms.
func (c *Controller) ResetAlarms() error {
	return c.dev.Command("ALMRST")
}

// MinMaxData returns the minimum and maximum reading of an input since the
// last reset.
func (c *Controller) MinMaxData(input string) (MinMax, error) {
	resp, err := c.dev.Query("MDAT? " + input)
	if err != nil {
		return MinMax{}, err
	}
	fields, err := splitFloats(resp, 2)
	if err != nil {
		return MinMax{}, errors.Wrap(err, "parsing min/max data")
	}
	return MinMax{Min: fields[0], Max: fields[1]}, nil
}

// ResetMinMaxData restarts min/max capture from the present readings.
func (c *Controller) ResetMinMaxData() error {
	return c.dev.Command("MNMXRST")
}

// TemperatureLimit returns the temperature limit of an input, in kelvin;
// all control outputs shut off above it.  Zero disables the limit.
func (c *Controller) TemperatureLimit(input string) (float64, error) {
	return c.dev.QueryFloat("TLIMIT? " + input)
}

// SetTemperatureLimit configures the safety temperature limit of an input.
func (c *Controller) SetTemperatureLimit(input string, kelvin float64) error {
	return c.dev.Command(fmt.Sprintf("TLIMIT %s,%G", input, kelvin))
}

// InterfaceMode selects how the instrument accepts commands.
type InterfaceMode int

// Interface modes.
const (
	Local InterfaceMode = iota
	Remote
	RemoteLocalLockout
)

// SetRemoteInterfaceMode places the instrument in local, remote, or remote
// with local lockout mode.
func (c *Controller) SetRemoteInterfaceMode(mode InterfaceMode) error {
	return c.dev.Command(fmt.Sprintf("MODE %d", mode))
}

// RemoteInterfaceMode returns the interface mode.
func (c *Controller) RemoteInterfaceMode() (InterfaceMode, error) {
	code, err := c.dev.QueryInt("MODE?")
	if err != nil {
		return 0, err
	}
	return InterfaceMode(code), nil
}

// LEDsEnabled reports whether the front panel LEDs are on.
func (c *Controller) LEDsEnabled() (bool, error) {
	return c.dev.QueryBool("LEDS?")
}

// SetLEDs turns the front panel LEDs on or off.
func (c *Controller) SetLEDs(on bool) error {
	return c.dev.Command(fmt.Sprintf("LEDS %d", boolInt(on)))
}

// LockKeypad locks the front panel keypad with a three digit code.
func (c *Controller) LockKeypad(code int) error {
	return c.dev.Command(fmt.Sprintf("LOCK 1,%03d", code))
}

// UnlockKeypad unlocks the front panel keypad.
func (c *Controller) UnlockKeypad(code int) error {
	return c.dev.Command(fmt.Sprintf("LOCK 0,%03d", code))
}

// KeypadLocked reports whether the front panel keypad is locked.
func (c *Controller) KeypadLocked() (bool, error) {
	resp, err := c.dev.Query("LOCK?")
	if err != nil {
		return false, err
	}
	fields := strings.Split(resp, ",")
	return strings.TrimSpace(fields[0]) == "1", nil
}

// TurnRelayOn forces a relay closed.
func (c *Controller) TurnRelayOn(relay int) error {
	return c.dev.Command(fmt.Sprintf("RELAY %d,1,,", relay))
}

// TurnRelayOff forces a relay open.
func (c *Controller) TurnRelayOff(relay int) error {
	return c.dev.Command(fmt.Sprintf("RELAY %d,0,,", relay))
}

// RelayStatus reports whether a relay is closed.
func (c *Controller) RelayStatus(relay int) (bool, error) {
	return c.dev.QueryBool(fmt.Sprintf("RELAYST? %d", relay))
}

// DisplayBrightness returns the front panel display brightness setting.
func (c *Controller) DisplayBrightness() (int, error) {
	return c.dev.QueryInt("BRIGT?")
}

// SetDisplayBrightness sets the front panel display brightness.
func (c *Controller) SetDisplayBrightness(level int) error {
	return c.dev.Command(fmt.Sprintf("BRIGT %d", level))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func splitFloats(resp string, want int) ([]float64, error) {
	fields := strings.Split(resp, ",")
	if len(fields) < want {
		return nil, fmt.Errorf("want %d fields, got %q", want, resp)
	}
	out := make([]float64, want)
	for i := 0; i < want; i++ {
		f, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}
