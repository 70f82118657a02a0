package comm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial/enumerator"
)

var lakeshoreIDs = []VIDPID{{VID: 0x1FB9, PID: 0x0300}}

func fakePorts() []*enumerator.PortDetails {
	return []*enumerator.PortDetails{
		{Name: "/dev/ttyS0", IsUSB: false},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001", SerialNumber: "FTDI123"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1FB9", PID: "0300", SerialNumber: "LSA2001"},
		{Name: "/dev/ttyUSB2", IsUSB: true, VID: "1FB9", PID: "0300", SerialNumber: "LSA2002"},
	}
}

func TestSelectPortFirstAllowedMatch(t *testing.T) {
	name, err := selectPort(fakePorts(), lakeshoreIDs, "", "")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB1", name)
}

func TestSelectPortSerialNumberFilter(t *testing.T) {
	name, err := selectPort(fakePorts(), lakeshoreIDs, "", "LSA2002")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB2", name)
}

func TestSelectPortNameFilter(t *testing.T) {
	name, err := selectPort(fakePorts(), lakeshoreIDs, "/dev/ttyUSB2", "")
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyUSB2", name)
}

func TestSelectPortNoMatch(t *testing.T) {
	_, err := selectPort(fakePorts(), lakeshoreIDs, "", "LSA9999")
	assert.ErrorIs(t, err, ErrPortNotFound)

	_, err = selectPort(fakePorts(), []VIDPID{{VID: 0x1FB9, PID: 0x0401}}, "", "")
	assert.ErrorIs(t, err, ErrPortNotFound)
}

func TestAllowedVIDPIDRejectsGarbage(t *testing.T) {
	port := &enumerator.PortDetails{Name: "x", IsUSB: true, VID: "zz", PID: "0300"}
	assert.False(t, allowedVIDPID(port, lakeshoreIDs))
}
