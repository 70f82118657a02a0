/*Package xip implements the shared behavior of the XIP generation of
instruments (the F41/F71 teslameters and their siblings).

Unlike the classic instruments, which report errors through the standard
event register, XIP instruments keep a textual error queue: transactions are
checked by chaining ":SYSTem:ERRor:ALL?" onto each message and looking for
the "No error" reply.
*/
package xip

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/register"
	"github.com/lakeshorecryotronics/go-driver/scpi"
)

// ErrorSuffix is the error queue query chained onto checked messages.
const ErrorSuffix = ":SYSTem:ERRor:ALL?"

// ErrFirmwareTooOld is generated when an operation needs newer instrument
// firmware than the connected unit runs.
var ErrFirmwareTooOld = errors.New("operation requires newer instrument firmware, please update the instrument")

// CommandError is the instrument's error queue contents for a failed
// transaction.
type CommandError struct {
	Queue string
}

func (e *CommandError) Error() string {
	return "SCPI command error(s): " + e.Queue
}

// CheckErrors evaluates an error queue reply.  Anything other than
// "No error" is a fault.
func CheckErrors(token string) error {
	if strings.Contains(token, "No error") {
		return nil
	}
	return &CommandError{Queue: token}
}

// StatusByteBits is the status byte register layout shared by the XIP
// instruments.
var StatusByteBits = register.Names{
	"",
	"",
	"error_available",
	"questionable_summary",
	"message_available_summary",
	"event_status_summary",
	"master_summary",
	"operation_summary",
}

// Device is an XIP instrument: a checked SCPI device plus the register
// layouts and firmware version of the connected model.
type Device struct {
	*scpi.Device

	id scpi.Identity

	// OperationBits and QuestionableBits are the model-specific register
	// layouts, supplied by the instrument facade.
	OperationBits    register.Names
	QuestionableBits register.Names
}

// NewDevice connects the XIP transaction layer to conn and learns the
// instrument's identity.
func NewDevice(conn *comm.Device, operation, questionable register.Names) (*Device, error) {
	dev := scpi.NewDevice(conn, ErrorSuffix, CheckErrors)
	// commands fail loudly through the error queue; there is no need to
	// synchronize unchecked writes on a completion query
	dev.CompletionQuery = ""
	id, err := dev.Identification()
	if err != nil {
		conn.Close()
		return nil, errors.Wrap(err, "instrument found but unable to communicate, check interface settings on the instrument")
	}
	return &Device{Device: dev, id: id, OperationBits: operation, QuestionableBits: questionable}, nil
}

// Identity returns the identification fields cached at connect time.
func (d *Device) Identity() scpi.Identity {
	return d.id
}

// RequireFirmware returns ErrFirmwareTooOld when the instrument's firmware
// version is older than minimum (dotted numeric form, e.g.
// "1.1.2018091003").
func (d *Device) RequireFirmware(minimum string) error {
	if versionLess(d.id.Firmware, minimum) {
		return errors.Wrapf(ErrFirmwareTooOld, "firmware %s installed, %s required", d.id.Firmware, minimum)
	}
	return nil
}

// versionLess compares dotted version strings segment by segment,
// numerically where both segments parse.
func versionLess(a, b string) bool {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, aerr := strconv.ParseInt(as[i], 10, 64)
		bn, berr := strconv.ParseInt(bs[i], 10, 64)
		if aerr == nil && berr == nil {
			if an != bn {
				return an < bn
			}
			continue
		}
		if as[i] != bs[i] {
			return as[i] < bs[i]
		}
	}
	return len(as) < len(bs)
}

// StatusByte returns the decoded status byte register.
func (d *Device) StatusByte() (register.Register, error) {
	return d.queryRegister("*STB?", StatusByteBits)
}

// StandardEvent returns the decoded standard event register.  Reading it
// clears it.
func (d *Device) StandardEvent() (register.Register, error) {
	return d.queryRegister("*ESR?", scpi.StandardEventBits)
}

// ServiceRequestEnable returns the service request enable mask.
func (d *Device) ServiceRequestEnable() (register.Register, error) {
	return d.queryRegister("*SRE?", StatusByteBits)
}

// SetServiceRequestEnable configures which status byte bits generate a
// service request.
func (d *Device) SetServiceRequestEnable(mask register.Register) error {
	return d.Command(fmt.Sprintf("*SRE %d", mask.Encode(StatusByteBits)))
}

// OperationEvent returns and clears the latched operation event register.
func (d *Device) OperationEvent() (register.Register, error) {
	return d.queryRegister("STATus:OPERation:EVENt?", d.OperationBits)
}

// OperationCondition returns the live operation condition register.
func (d *Device) OperationCondition() (register.Register, error) {
	return d.queryRegister("STATus:OPERation:CONDition?", d.OperationBits)
}

// OperationEnable returns the operation event enable mask.
func (d *Device) OperationEnable() (register.Register, error) {
	return d.queryRegister("STATus:OPERation:ENABle?", d.OperationBits)
}

// SetOperationEnable configures which operation events propagate to the
// status byte.
func (d *Device) SetOperationEnable(mask register.Register) error {
	return d.Command(fmt.Sprintf("STATus:OPERation:ENABle %d", mask.Encode(d.OperationBits)))
}

// QuestionableEvent returns and clears the latched questionable event
// register.
func (d *Device) QuestionableEvent() (register.Register, error) {
	return d.queryRegister("STATus:QUEStionable:EVENt?", d.QuestionableBits)
}

// QuestionableCondition returns the live questionable condition register.
func (d *Device) QuestionableCondition() (register.Register, error) {
	return d.queryRegister("STATus:QUEStionable:CONDition?", d.QuestionableBits)
}

// QuestionableEnable returns the questionable event enable mask.
func (d *Device) QuestionableEnable() (register.Register, error) {
	return d.queryRegister("STATus:QUEStionable:ENABle?", d.QuestionableBits)
}

// SetQuestionableEnable configures which questionable events propagate to
// the status byte.
func (d *Device) SetQuestionableEnable(mask register.Register) error {
	return d.Command(fmt.Sprintf("STATus:QUEStionable:ENABle %d", mask.Encode(d.QuestionableBits)))
}

// Reset sets instrument parameters to power-up settings.
func (d *Device) Reset() error {
	return d.CommandUnchecked("*RST")
}

// ClearInterface clears the event registers and empties the error queue.
func (d *Device) ClearInterface() error {
	return d.CommandUnchecked("*CLS")
}

func (d *Device) queryRegister(query string, names register.Names) (register.Register, error) {
	resp, err := d.Query(query)
	if err != nil {
		return nil, err
	}
	value, err := strconv.ParseUint(strings.TrimSpace(resp), 10, 16)
	if err != nil {
		return nil, err
	}
	return register.Decode(uint16(value), names), nil
}
