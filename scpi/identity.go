package scpi

import (
	"fmt"
	"strings"
)

// Identity is the parsed *IDN? response, learned once at connect time and
// cached by each facade for the life of the object.
type Identity struct {
	Manufacturer string
	Model        string
	SerialNumber string

	// OptionCardSerial is populated for instruments reporting a combined
	// "serial/option-card-serial" field.
	OptionCardSerial string

	Firmware string
}

// ParseIdentity parses a raw *IDN? reply of the form
// "LSCI,MODEL336,LSA2001/LSA2002,2.9".
func ParseIdentity(resp string) (Identity, error) {
	fields := strings.Split(resp, ",")
	if len(fields) < 4 {
		return Identity{}, fmt.Errorf("malformed identification response %q", resp)
	}
	id := Identity{
		Manufacturer: fields[0],
		Model:        fields[1],
		Firmware:     fields[3],
	}
	serials := strings.Split(fields[2], "/")
	id.SerialNumber = serials[0]
	if len(serials) == 2 {
		id.OptionCardSerial = serials[1]
	}
	return id, nil
}

// Identification queries and parses the instrument's identity.  The query is
// unchecked: it is the first thing sent to a new connection, before the
// error-check plumbing can be trusted.
func (d *Device) Identification() (Identity, error) {
	resp, err := d.QueryUnchecked("*IDN?")
	if err != nil {
		return Identity{}, err
	}
	return ParseIdentity(resp)
}
