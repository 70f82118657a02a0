/*Package teslameter drives the F41 and F71 teslameters.

The teslameters are XIP instruments: transactions are error checked against
the instrument's error queue, and several capabilities (field control, the
measurement buffer) exist only on newer firmware, so the corresponding
methods verify the connected unit's version before touching the wire.
*/
package teslameter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/register"
	"github.com/lakeshorecryotronics/go-driver/scpi"
	"github.com/lakeshorecryotronics/go-driver/xip"
)

// fieldControlFirmware is the first firmware release with the field control
// option and the measurement buffer.
const fieldControlFirmware = "1.1.2018091003"

var teslameterIDs = []comm.VIDPID{
	{VID: comm.LakeShoreVID, PID: 0x0405}, // F41, single axis
	{VID: comm.LakeShoreVID, PID: 0x0406}, // F71, three axis
}

// OperationBits is the operation status register layout.
var OperationBits = register.Names{
	"no_probe",
	"overload",
	"ranging",
	"",
	"",
	"ramp_done",
	"no_data_on_breakout_adapter",
}

// QuestionableBits is the questionable status register layout.
var QuestionableBits = register.Names{
	"x_axis_sensor_error",
	"y_axis_sensor_error",
	"z_axis_sensor_error",
	"probe_eeprom_read_error",
	"temperature_compensation_error",
	"invalid_probe",
	"field_control_slew_rate_limit",
	"field_control_at_voltage_limit",
	"calibration_error",
	"heartbeat_error",
}

// MeasurementMode selects the field measurement band.
type MeasurementMode string

// Field measurement modes.
const (
	ModeDC   MeasurementMode = "DC"
	ModeAC   MeasurementMode = "AC"   // 0.1 Hz - 500 Hz
	ModeHIFR MeasurementMode = "HIFR" // 50 Hz - 100 kHz
)

// FieldUnits selects the magnetic field units.
type FieldUnits string

// Field units.
const (
	Tesla FieldUnits = "TESLA"
	Gauss FieldUnits = "GAUSS"
)

// FieldControlMode selects open or closed loop field control.
type FieldControlMode string

// Field control modes.
const (
	ClosedLoop FieldControlMode = "CLLOOP"
	OpenLoop   FieldControlMode = "OPLOOP"
)

// AnalogOutputMode selects the signal on the analog output BNC: the raw
// amplified Hall voltage of one axis.
type AnalogOutputMode string

// Analog output modes.
const (
	AnalogX AnalogOutputMode = "X"
	AnalogY AnalogOutputMode = "Y"
	AnalogZ AnalogOutputMode = "Z"
)

// ProbeInfo describes the connected Hall probe.
type ProbeInfo struct {
	ModelNumber       string
	SerialNumber      string
	ProbeType         string
	SensorType        string
	SensorOrientation string
	NumberOfAxes      int
	CalibrationDate   string
}

// MeasurementSetup is the field measurement configuration.
type MeasurementSetup struct {
	Mode MeasurementMode

	// Autorange selects the best range for the measured value
	// automatically; when false, Range is the largest field expected.
	Autorange bool
	Range     float64

	// AveragingSamples is the number of 10 ms field samples averaged per
	// reading.
	AveragingSamples int
}

// FieldControlLimits bounds the field control output.
type FieldControlLimits struct {
	// VoltageLimit is the maximum output voltage, 0-10 V.
	VoltageLimit float64

	// SlewRateLimit is the maximum output rate of change in V/s.
	SlewRateLimit float64
}

// FieldControlPID holds the closed loop control parameters.  RampRate is in
// field units per second.
type FieldControlPID struct {
	Gain     float64
	Integral float64
	RampRate float64
}

// Teslameter is an F41 or F71 teslameter.
type Teslameter struct {
	dev *xip.Device
}

// New connects to a teslameter over USB serial or, when cfg.Addr is set,
// over TCP.  The USB interface runs at 115200 baud, 8N1.
func New(cfg comm.Config) (*Teslameter, error) {
	if cfg.Baud == 0 {
		cfg.Baud = 115200
	}
	if cfg.DataBits == 0 {
		cfg.DataBits = 8
	}
	conn, err := comm.Open(cfg, teslameterIDs)
	if err != nil {
		return nil, err
	}
	dev, err := xip.NewDevice(conn, OperationBits, QuestionableBits)
	if err != nil {
		return nil, err
	}
	return &Teslameter{dev: dev}, nil
}

// Identity returns the identification fields cached at connect time.
func (t *Teslameter) Identity() scpi.Identity {
	return t.dev.Identity()
}

// Device exposes the underlying XIP device for status register access and
// raw transactions.
func (t *Teslameter) Device() *xip.Device {
	return t.dev
}

// Close releases the connection to the instrument.
func (t *Teslameter) Close() error {
	return t.dev.Close()
}

// DCField returns the DC field magnitude in the configured field units.
func (t *Teslameter) DCField() (float64, error) {
	return t.dev.QueryFloat("FETCH:DC?")
}

// DCFieldXYZ returns the DC field of each axis.
func (t *Teslameter) DCFieldXYZ() ([]float64, error) {
	return t.queryFloats("FETCH:DC? ALL")
}

// RMSField returns the RMS field magnitude.
func (t *Teslameter) RMSField() (float64, error) {
	return t.dev.QueryFloat("FETCH:RMS?")
}

// RMSFieldXYZ returns the RMS field of each axis.
func (t *Teslameter) RMSFieldXYZ() ([]float64, error) {
	return t.queryFloats("FETCH:RMS? ALL")
}

// Frequency returns the field frequency in hertz.
func (t *Teslameter) Frequency() (float64, error) {
	return t.dev.QueryFloat("FETCH:FREQ?")
}

// MaxMin returns the maximum and minimum field readings since the last
// reset, in one transaction.
func (t *Teslameter) MaxMin() (max, min float64, err error) {
	resp, err := t.dev.Query("FETCH:MAX?", "FETCH:MIN?")
	if err != nil {
		return 0, 0, err
	}
	fields := strings.Split(resp, ";")
	if len(fields) != 2 {
		return 0, 0, errors.Errorf("malformed max/min response %q", resp)
	}
	if max, err = strconv.ParseFloat(strings.TrimSpace(fields[0]), 64); err != nil {
		return 0, 0, err
	}
	if min, err = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64); err != nil {
		return 0, 0, err
	}
	return max, min, nil
}

// ResetMaxMin restarts max/min capture from the present reading.
func (t *Teslameter) ResetMaxMin() error {
	return t.dev.Command("SENS:MRESET")
}

// Temperature returns the probe temperature in Celsius.
func (t *Teslameter) Temperature() (float64, error) {
	return t.dev.QueryFloat("FETCH:TEMP?")
}

// ProbeInfo returns the connected probe's description, gathered in one
// transaction.
func (t *Teslameter) ProbeInfo() (ProbeInfo, error) {
	resp, err := t.dev.Query(
		"PROBE:MODEL?", "PROBE:SNUM?", "PROBE:PTYPE?", "PROBE:STYPE?",
		"PROBE:SOR?", "PROBE:AXES?", "PROBE:CALDATE?")
	if err != nil {
		return ProbeInfo{}, err
	}
	fields := scpi.Split(resp)
	if len(fields) != 7 {
		return ProbeInfo{}, errors.Errorf("malformed probe response %q", resp)
	}
	axes, err := strconv.Atoi(strings.TrimSpace(fields[5]))
	if err != nil {
		return ProbeInfo{}, err
	}
	return ProbeInfo{
		ModelNumber:       unquote(fields[0]),
		SerialNumber:      unquote(fields[1]),
		ProbeType:         unquote(fields[2]),
		SensorType:        unquote(fields[3]),
		SensorOrientation: unquote(fields[4]),
		NumberOfAxes:      axes,
		CalibrationDate:   unquote(fields[6]),
	}, nil
}

// RelativeField returns the field relative to the configured baseline.
func (t *Teslameter) RelativeField() (float64, error) {
	return t.dev.QueryFloat("FETC:RELATIVE?")
}

// TareRelativeField copies the present field reading to the relative
// baseline.
func (t *Teslameter) TareRelativeField() error {
	return t.dev.Command("SENS:RELATIVE:TARE")
}

// RelativeFieldBaseline returns the relative measurement baseline.
func (t *Teslameter) RelativeFieldBaseline() (float64, error) {
	return t.dev.QueryFloat("SENS:RELATIVE:BASELINE?")
}

// SetRelativeFieldBaseline configures the zero field for relative
// measurements.
func (t *Teslameter) SetRelativeFieldBaseline(field float64) error {
	return t.dev.Command(fmt.Sprintf("SENS:RELATIVE:BASELINE %G", field))
}

// ConfigureMeasurement applies the field measurement configuration.  A zero
// Range with Autorange false is sent as-is; leave Autorange true to let the
// instrument pick.
func (t *Teslameter) ConfigureMeasurement(s MeasurementSetup) error {
	cmds := []string{
		"SENS:MODE " + string(s.Mode),
		fmt.Sprintf("SENS:RANGE:AUTO %d", boolInt(s.Autorange)),
	}
	if !s.Autorange {
		cmds = append(cmds, fmt.Sprintf("SENS:RANGE %G", s.Range))
	}
	cmds = append(cmds, fmt.Sprintf("SENS:AVERAGE:COUNT %d", s.AveragingSamples))
	return t.dev.Command(cmds...)
}

// MeasurementSetup returns the field measurement configuration.
func (t *Teslameter) MeasurementSetup() (MeasurementSetup, error) {
	resp, err := t.dev.Query("SENS:MODE?", "SENS:RANGE:AUTO?", "SENS:RANGE?", "SENS:AVERAGE:COUNT?")
	if err != nil {
		return MeasurementSetup{}, err
	}
	fields := strings.Split(resp, ";")
	if len(fields) != 4 {
		return MeasurementSetup{}, errors.Errorf("malformed measurement setup response %q", resp)
	}
	rng, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return MeasurementSetup{}, err
	}
	count, err := strconv.Atoi(strings.TrimSpace(fields[3]))
	if err != nil {
		return MeasurementSetup{}, err
	}
	return MeasurementSetup{
		Mode:             MeasurementMode(strings.TrimSpace(fields[0])),
		Autorange:        strings.TrimSpace(fields[1]) == "1",
		Range:            rng,
		AveragingSamples: count,
	}, nil
}

// ConfigureTemperatureCompensation selects where the compensation
// temperature comes from: "PROBE" for the probe thermistor, "MTEMP" for the
// manual value, "NONE" to disable.
func (t *Teslameter) ConfigureTemperatureCompensation(source string) error {
	return t.dev.Command("SENS:TCOM:SOURCE " + source)
}

// SetManualTemperature sets the user-provided compensation temperature in
// Celsius, used by the MTEMP source.
func (t *Teslameter) SetManualTemperature(celsius float64) error {
	return t.dev.Command(fmt.Sprintf("SENS:TCOM:MTEM %G", celsius))
}

// ManualTemperature returns the manual compensation temperature in Celsius.
func (t *Teslameter) ManualTemperature() (float64, error) {
	return t.dev.QueryFloat("SENS:TCOM:MTEM?")
}

// SetFieldUnits configures the magnetic field units.
func (t *Teslameter) SetFieldUnits(units FieldUnits) error {
	return t.dev.Command("UNIT:FIELD " + string(units))
}

// FieldUnits returns the magnetic field units.
func (t *Teslameter) FieldUnits() (FieldUnits, error) {
	resp, err := t.dev.Query("UNIT:FIELD?")
	if err != nil {
		return "", err
	}
	return FieldUnits(strings.TrimSpace(resp)), nil
}

// ConfigureFieldControlLimits bounds the field control output voltage and
// slew rate.
func (t *Teslameter) ConfigureFieldControlLimits(l FieldControlLimits) error {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return err
	}
	return t.dev.Command(
		fmt.Sprintf("SOURCE:FIELD:VLIMIT %G", l.VoltageLimit),
		fmt.Sprintf("SOURCE:FIELD:SLEW %G", l.SlewRateLimit))
}

// FieldControlLimits returns the field control output limits.
func (t *Teslameter) FieldControlLimits() (FieldControlLimits, error) {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return FieldControlLimits{}, err
	}
	fields, err := t.queryFloatPair("SOURCE:FIELD:VLIMIT?", "SOURCE:FIELD:SLEW?")
	if err != nil {
		return FieldControlLimits{}, err
	}
	return FieldControlLimits{VoltageLimit: fields[0], SlewRateLimit: fields[1]}, nil
}

// ConfigureFieldControlMode sets open/closed loop control and enables or
// disables the output.
func (t *Teslameter) ConfigureFieldControlMode(mode FieldControlMode, enabled bool) error {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return err
	}
	return t.dev.Command(
		"SOURCE:FIELD:MODE "+string(mode),
		fmt.Sprintf("SOURCE:FIELD:STATE %d", boolInt(enabled)))
}

// FieldControlMode returns the control loop mode and output state.
func (t *Teslameter) FieldControlMode() (FieldControlMode, bool, error) {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return "", false, err
	}
	resp, err := t.dev.Query("SOURCE:FIELD:MODE?", "SOURCE:FIELD:STATE?")
	if err != nil {
		return "", false, err
	}
	fields := strings.Split(resp, ";")
	if len(fields) != 2 {
		return "", false, errors.Errorf("malformed field control mode response %q", resp)
	}
	return FieldControlMode(strings.TrimSpace(fields[0])), strings.TrimSpace(fields[1]) == "1", nil
}

// ConfigureFieldControlPID sets the closed loop control parameters.
func (t *Teslameter) ConfigureFieldControlPID(pid FieldControlPID) error {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return err
	}
	return t.dev.Command(
		fmt.Sprintf("SOURCE:FIELD:CLL:GAIN %G", pid.Gain),
		fmt.Sprintf("SOURCE:FIELD:CLL:INTEGRAL %G", pid.Integral),
		fmt.Sprintf("SOURCE:FIELD:CLL:RAMP %G", pid.RampRate))
}

// FieldControlPID returns the closed loop control parameters.
func (t *Teslameter) FieldControlPID() (FieldControlPID, error) {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return FieldControlPID{}, err
	}
	resp, err := t.dev.Query("SOURCE:FIELD:CLL:GAIN?", "SOURCE:FIELD:CLL:INTEGRAL?", "SOURCE:FIELD:CLL:RAMPRATE?")
	if err != nil {
		return FieldControlPID{}, err
	}
	fields := strings.Split(resp, ";")
	if len(fields) != 3 {
		return FieldControlPID{}, errors.Errorf("malformed field control PID response %q", resp)
	}
	var out [3]float64
	for i, f := range fields {
		if out[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return FieldControlPID{}, err
		}
	}
	return FieldControlPID{Gain: out[0], Integral: out[1], RampRate: out[2]}, nil
}

// SetFieldControlSetpoint sets the closed loop setpoint in field units.
func (t *Teslameter) SetFieldControlSetpoint(setpoint float64) error {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return err
	}
	return t.dev.Command(fmt.Sprintf("SOURCE:FIELD:CLL:SETPOINT %G", setpoint))
}

// FieldControlSetpoint returns the closed loop setpoint.
func (t *Teslameter) FieldControlSetpoint() (float64, error) {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return 0, err
	}
	return t.dev.QueryFloat("SOURCE:FIELD:CLL:SETPOINT?")
}

// SetOpenLoopVoltage sets the open loop output voltage.
func (t *Teslameter) SetOpenLoopVoltage(volts float64) error {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return err
	}
	return t.dev.Command(fmt.Sprintf("SOURCE:FIELD:OPL:VOLTAGE %G", volts))
}

// OpenLoopVoltage returns the open loop output voltage.
func (t *Teslameter) OpenLoopVoltage() (float64, error) {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return 0, err
	}
	return t.dev.QueryFloat("SOURCE:FIELD:OPL:VOLTAGE?")
}

// SetAnalogOutput selects the signal on the analog output BNC.
func (t *Teslameter) SetAnalogOutput(mode AnalogOutputMode) error {
	return t.dev.Command("SOURCE:AOUT " + string(mode))
}

// AnalogOutput returns the signal on the analog output BNC.
func (t *Teslameter) AnalogOutput() (AnalogOutputMode, error) {
	resp, err := t.dev.Query("SOURCE:AOUT?")
	if err != nil {
		return "", err
	}
	return AnalogOutputMode(strings.TrimSpace(resp)), nil
}

func (t *Teslameter) queryFloats(query string) ([]float64, error) {
	resp, err := t.dev.Query(query)
	if err != nil {
		return nil, err
	}
	fields := strings.Split(resp, ",")
	out := make([]float64, len(fields))
	for i, f := range fields {
		if out[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (t *Teslameter) queryFloatPair(q1, q2 string) ([2]float64, error) {
	var out [2]float64
	resp, err := t.dev.Query(q1, q2)
	if err != nil {
		return out, err
	}
	fields := strings.Split(resp, ";")
	if len(fields) != 2 {
		return out, errors.Errorf("malformed response %q", resp)
	}
	for i, f := range fields {
		if out[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return out, err
		}
	}
	return out, nil
}

func unquote(s string) string {
	return strings.Trim(strings.TrimSpace(s), `"'`)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
