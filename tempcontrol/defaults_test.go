package tempcontrol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/tarm/serial"

	"github.com/lakeshorecryotronics/go-driver/comm"
)

func TestSerialDefaultsResolveToOddParity(t *testing.T) {
	cfg := serialDefaults(comm.Config{}, 57600)
	assert.Equal(t, 57600, cfg.Baud)
	assert.Equal(t, byte(7), cfg.DataBits)
	assert.Equal(t, serial.Stop1, cfg.StopBits)
	assert.Equal(t, serial.ParityOdd, cfg.Parity, "a zero-value Config must frame 7-O-1")
}

func TestSerialDefaultsKeepExplicitSettings(t *testing.T) {
	cfg := serialDefaults(comm.Config{Baud: 9600, Parity: serial.ParityNone}, 57600)
	assert.Equal(t, 9600, cfg.Baud)
	assert.Equal(t, serial.ParityNone, cfg.Parity, "an explicit no-parity request survives")
}
