package register_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshorecryotronics/go-driver/register"
)

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

func TestEncodeSkipsReservedBits(t *testing.T) {
	names := register.Names{"", "a", "", "b"}
	r := register.Register{"a": true, "b": true}
	assert.Equal(t, uint16(10), r.Encode(names))
}

func TestDecodeNamedBits(t *testing.T) {
	ev := register.Decode(132, standardEvent)
	assert.True(t, ev["query_error"])
	assert.True(t, ev["power_on"])
	assert.False(t, ev["command_error"])
	assert.False(t, ev["execution_error"])
	assert.False(t, ev["operation_complete"])
}

func TestRoundTrip(t *testing.T) {
	for value := uint16(0); value < 256; value++ {
		r := register.Decode(value, standardEvent)
		// bits 1, 3, and 6 are reserved and do not survive the trip
		masked := value &^ (1<<1 | 1<<3 | 1<<6)
		require.Equal(t, masked, r.Encode(standardEvent), "value %d", value)
		require.Equal(t, r, register.Decode(r.Encode(standardEvent), standardEvent))
	}
}

func TestDecodeIgnoresHighBits(t *testing.T) {
	names := register.Names{"low"}
	r := register.Decode(0xFFFE, names)
	assert.False(t, r["low"])
	assert.Len(t, r, 1)
}
