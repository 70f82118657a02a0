/*Package scpi provides the self-checking command/query layer shared by all
of the instrument facades.

The instruments report protocol errors through a status register or error
queue that must be queried explicitly; a bad command otherwise fails
silently.  Device makes every transaction self-checking by piggy-backing a
status query onto each outgoing message: the query suffix and the function
that inspects the popped status token are supplied per instrument family, so
one utility serves both the `*ESR?` register style of the temperature
controllers and the `SYSTem:ERRor:ALL?` queue style of the XIP platform.
*/
package scpi

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/register"
)

// Delimiter joins chained commands and queries into one message, and
// semicolons alone separate the reply values.
const Delimiter = ";:"

var (
	// ErrQuery indicates the instrument's output queue overflowed.
	ErrQuery = errors.New("query error")

	// ErrCommand indicates a syntax error or unsupported command.
	ErrCommand = errors.New("command error: invalid command or query")

	// ErrExecution indicates a valid command the instrument could not
	// execute in its present state.
	ErrExecution = errors.New("execution error: instrument not able to execute command or query")
)

// StandardEventBits is the IEEE-488.2 standard event register layout shared
// by the classic-interface instruments.
var StandardEventBits = register.Names{
	"operation_complete",
	"",
	"query_error",
	"",
	"execution_error",
	"command_error",
	"",
	"power_on",
}

// CheckStandardEvent decodes a standard event register value and converts
// its error bits to a typed error.  Query errors outrank command errors,
// which outrank execution errors, when several bits are set at once.
func CheckStandardEvent(token string) error {
	var value uint16
	if _, err := fmt.Sscanf(strings.TrimSpace(token), "%d", &value); err != nil {
		return fmt.Errorf("malformed status register value %q", token)
	}
	ev := register.Decode(value, StandardEventBits)
	switch {
	case ev["query_error"]:
		return ErrQuery
	case ev["command_error"]:
		return ErrCommand
	case ev["execution_error"]:
		return ErrExecution
	}
	return nil
}

// A Checker inspects the status token popped off a checked reply and
// reports the instrument's verdict on the transaction.
type Checker func(token string) error

// Device wraps a transport with self-checking transactions.
type Device struct {
	conn *comm.Device

	// ErrorSuffix is appended to every checked message, e.g. "*ESR?" or
	// ":SYSTem:ERRor:ALL?".
	ErrorSuffix string

	// Check evaluates the reply to ErrorSuffix.
	Check Checker

	// CompletionQuery is chained onto unchecked commands so the write
	// still produces a reply to synchronize on, "*OPC?" for most models.
	CompletionQuery string
}

// NewDevice returns a checked-transaction wrapper around conn.
func NewDevice(conn *comm.Device, suffix string, check Checker) *Device {
	return &Device{conn: conn, ErrorSuffix: suffix, Check: check, CompletionQuery: "*OPC?"}
}

// Command sends one or more commands as a single message and raises any
// error the instrument reports for them.
func (d *Device) Command(cmds ...string) error {
	_, err := d.Query(strings.Join(cmds, Delimiter))
	return err
}

// CommandUnchecked sends commands without inspecting the instrument's
// status.  The completion query is still chained on so the instrument
// finishes this message before accepting the next one.
func (d *Device) CommandUnchecked(cmds ...string) error {
	msg := strings.Join(cmds, Delimiter)
	if d.CompletionQuery != "" {
		_, err := d.QueryUnchecked(msg + ";" + d.CompletionQuery)
		return err
	}
	return d.conn.Command(msg)
}

// Query sends one or more queries as a single message with the error suffix
// chained on, pops the status token off the reply, and returns the joined
// remainder.  If the status token reports an error, nothing is returned.
func (d *Device) Query(queries ...string) (string, error) {
	msg := strings.Join(queries, Delimiter) + ";" + d.ErrorSuffix
	resp, err := d.conn.Query(msg)
	if err != nil {
		return "", err
	}
	tokens := Split(resp)
	status := tokens[len(tokens)-1]
	if err := d.Check(status); err != nil {
		return "", err
	}
	return strings.Join(tokens[:len(tokens)-1], ";"), nil
}

// QueryUnchecked sends queries without the error suffix and returns the raw
// reply.
func (d *Device) QueryUnchecked(queries ...string) (string, error) {
	return d.conn.Query(strings.Join(queries, Delimiter))
}

// QueryFloat sends a checked query and parses the reply as a float.
func (d *Device) QueryFloat(query string) (float64, error) {
	resp, err := d.Query(query)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(strings.TrimSpace(resp), 64)
}

// QueryInt sends a checked query and parses the reply as an integer.
func (d *Device) QueryInt(query string) (int, error) {
	resp, err := d.Query(query)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(resp))
}

// QueryBool sends a checked query and parses the 0/1 reply as a boolean.
func (d *Device) QueryBool(query string) (bool, error) {
	i, err := d.QueryInt(query)
	if err != nil {
		return false, err
	}
	return i != 0, nil
}

// Close releases the underlying transport.
func (d *Device) Close() error {
	return d.conn.Close()
}

// Split divides a reply line into the per-query responses.  Semicolons are
// the delimiter, except inside single- or double-quoted spans: instruments
// return quoted strings (curve names, serial numbers, usernames) that may
// legally contain semicolons.
func Split(resp string) []string {
	var (
		tokens  []string
		current strings.Builder
		quote   rune
	)
	for _, r := range resp {
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
			current.WriteRune(r)
		case r == '\'' || r == '"':
			quote = r
			current.WriteRune(r)
		case r == ';':
			tokens = append(tokens, current.String())
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	return append(tokens, current.String())
}
