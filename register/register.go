/*Package register converts between named boolean status flags and the integer
form used on the wire by SCPI status, event, and error registers.

A register layout is an ordered list of bit names starting from the least
significant bit.  Blank entries mark reserved bits; they contribute nothing to
the encoded value and are never populated on decode.

	var standardEvent = register.Names{
		"operation_complete",
		"",
		"query_error",
		"",
		"execution_error",
		"command_error",
		"",
		"power_on",
	}

	ev := register.Decode(132, standardEvent)
	ev["query_error"] // true
*/
package register

// Names is an ordered list of register bit names, least significant bit
// first.  A blank name marks a reserved bit.
type Names []string

// Register holds the boolean state of each named bit of a register.
type Register map[string]bool

// Decode expands an integer register value into its named bits.  Reserved
// (blank) positions are skipped.
func Decode(value uint16, names Names) Register {
	r := make(Register, len(names))
	for i, name := range names {
		if name == "" {
			continue
		}
		r[name] = (value>>uint(i))&1 == 1
	}
	return r
}

// Encode packs the named bits of r into an integer register value.  Bits not
// present in r, and reserved positions, encode as zero.
func (r Register) Encode(names Names) uint16 {
	var value uint16
	for i, name := range names {
		if name == "" {
			continue
		}
		if r[name] {
			value |= 1 << uint(i)
		}
	}
	return value
}
