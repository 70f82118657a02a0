package gaussmeter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tarm/serial"

	"github.com/lakeshorecryotronics/go-driver/comm"
)

func TestSerialDefaultsResolveToOddParity(t *testing.T) {
	cfg := serialDefaults(comm.Config{})
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, byte(7), cfg.DataBits)
	assert.Equal(t, serial.Stop1, cfg.StopBits)
	assert.Equal(t, serial.ParityOdd, cfg.Parity, "a zero-value Config must frame 7-O-1")
}
