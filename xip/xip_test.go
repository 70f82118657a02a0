package xip_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/register"
	"github.com/lakeshorecryotronics/go-driver/xip"
)

type fakeConn struct {
	replies  []string
	outgoing []string
}

func (f *fakeConn) Write(cmd string) error {
	f.outgoing = append(f.outgoing, cmd)
	return nil
}

func (f *fakeConn) Query(query string) (string, error) {
	f.outgoing = append(f.outgoing, query)
	if len(f.replies) == 0 {
		return "", nil
	}
	resp := f.replies[0]
	f.replies = f.replies[1:]
	return resp, nil
}

func (f *fakeConn) Clear() error { return nil }

var opBits = register.Names{"no_probe", "overload", "ranging", "", "", "ramp_done"}

func fakeDevice(t *testing.T, firmware string, replies ...string) (*xip.Device, *fakeConn) {
	t.Helper()
	idn := "Lake Shore,F71,FakeSerial," + firmware
	fake := &fakeConn{replies: append([]string{idn}, replies...)}
	conn, err := comm.Open(comm.Config{Conn: fake}, nil)
	require.NoError(t, err)
	dev, err := xip.NewDevice(conn, opBits, nil)
	require.NoError(t, err)
	return dev, fake
}

func TestCheckErrors(t *testing.T) {
	assert.NoError(t, xip.CheckErrors(`0,"No error"`))
	err := xip.CheckErrors(`-113,"Undefined header"`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Undefined header")
}

func TestCheckedQueryUsesErrorQueue(t *testing.T) {
	dev, fake := fakeDevice(t, "1.2", `12.5;0,"No error"`)
	resp, err := dev.Query("FETCH:DC? ALL")
	require.NoError(t, err)
	assert.Equal(t, "12.5", resp)
	assert.Equal(t, "FETCH:DC? ALL;:SYSTem:ERRor:ALL?", fake.outgoing[1])
}

func TestQueueErrorSurfaces(t *testing.T) {
	dev, _ := fakeDevice(t, "1.2", `;-113,"Undefined header"`)
	_, err := dev.Query("BOGUS?")
	var cmdErr *xip.CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Contains(t, cmdErr.Queue, "Undefined header")
}

func TestUncheckedCommandIsRawWrite(t *testing.T) {
	dev, fake := fakeDevice(t, "1.2")
	require.NoError(t, dev.CommandUnchecked("*RST"))
	assert.Equal(t, []string{"*IDN?", "*RST"}, fake.outgoing)
}

func TestRequireFirmware(t *testing.T) {
	dev, _ := fakeDevice(t, "1.1.2018091003")
	assert.NoError(t, dev.RequireFirmware("1.1.2018091003"))
	assert.NoError(t, dev.RequireFirmware("1.0.2018010100"))
	assert.ErrorIs(t, dev.RequireFirmware("1.2.2019010100"), xip.ErrFirmwareTooOld)
	// more segments means newer
	assert.ErrorIs(t, dev.RequireFirmware("1.1.2018091003.1"), xip.ErrFirmwareTooOld)
}

func TestOperationRegister(t *testing.T) {
	dev, fake := fakeDevice(t, "1.2", `34;0,"No error"`)
	reg, err := dev.OperationEvent()
	require.NoError(t, err)
	assert.True(t, reg["overload"])
	assert.True(t, reg["ramp_done"])
	assert.False(t, reg["no_probe"])
	assert.Equal(t, "STATus:OPERation:EVENt?;:SYSTem:ERRor:ALL?", fake.outgoing[1])
}

func TestSetOperationEnable(t *testing.T) {
	dev, fake := fakeDevice(t, "1.2", `;0,"No error"`)
	mask := register.Register{"overload": true}
	require.NoError(t, dev.SetOperationEnable(mask))
	assert.Equal(t, "STATus:OPERation:ENABle 2;:SYSTem:ERRor:ALL?", fake.outgoing[1])
}

func TestStatusByte(t *testing.T) {
	dev, _ := fakeDevice(t, "1.2", `128;0,"No error"`)
	reg, err := dev.StatusByte()
	require.NoError(t, err)
	assert.True(t, reg["operation_summary"])
}
