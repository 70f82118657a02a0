package scpi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/scpi"
)

// fakeInstrument queues canned replies and records outgoing messages, the
// same shape as a bench test against a disconnected dut.
type fakeInstrument struct {
	replies  []string
	outgoing []string
}

func (f *fakeInstrument) Write(cmd string) error {
	f.outgoing = append(f.outgoing, cmd)
	return nil
}

func (f *fakeInstrument) Query(query string) (string, error) {
	f.outgoing = append(f.outgoing, query)
	if len(f.replies) == 0 {
		return "", nil
	}
	resp := f.replies[0]
	f.replies = f.replies[1:]
	return resp, nil
}

func (f *fakeInstrument) Clear() error { return nil }

func checkedDevice(t *testing.T, replies ...string) (*scpi.Device, *fakeInstrument) {
	t.Helper()
	fake := &fakeInstrument{replies: replies}
	conn, err := comm.Open(comm.Config{Conn: fake}, nil)
	require.NoError(t, err)
	return scpi.NewDevice(conn, "*ESR?", scpi.CheckStandardEvent), fake
}

func TestSplit(t *testing.T) {
	cases := []struct {
		in   string
		want []string
	}{
		{`A,"B;C",D;E`, []string{`A,"B;C",D`, `E`}},
		{`273.2;0`, []string{"273.2", "0"}},
		{`'a;b';c`, []string{`'a;b'`, `c`}},
		{`plain`, []string{"plain"}},
		{``, []string{""}},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, scpi.Split(c.in), "input %q", c.in)
	}
}

func TestCheckStandardEventPriority(t *testing.T) {
	// command error (bit 5) and execution error (bit 4) both set: the
	// command error wins
	assert.ErrorIs(t, scpi.CheckStandardEvent("48"), scpi.ErrCommand)
	// query error (bit 2) outranks everything
	assert.ErrorIs(t, scpi.CheckStandardEvent("52"), scpi.ErrQuery)
	assert.ErrorIs(t, scpi.CheckStandardEvent("16"), scpi.ErrExecution)
	assert.NoError(t, scpi.CheckStandardEvent("0"))
	// operation-complete and power-on bits are not errors
	assert.NoError(t, scpi.CheckStandardEvent("129"))
}

func TestCheckedQueryAppendsSuffixAndPopsStatus(t *testing.T) {
	dev, fake := checkedDevice(t, "273.2;0")
	resp, err := dev.Query("KRDG? 1")
	require.NoError(t, err)
	assert.Equal(t, "273.2", resp)
	assert.Equal(t, []string{"KRDG? 1;*ESR?"}, fake.outgoing)
}

func TestCheckedQueryRaisesBeforeReturning(t *testing.T) {
	dev, _ := checkedDevice(t, "273.2;4")
	resp, err := dev.Query("KRDG? 1")
	assert.ErrorIs(t, err, scpi.ErrQuery)
	assert.Empty(t, resp, "no value may reach the caller when the status reports an error")
}

func TestCheckedCommand(t *testing.T) {
	dev, fake := checkedDevice(t, "0")
	require.NoError(t, dev.Command("SETP 1,300"))
	assert.Equal(t, []string{"SETP 1,300;*ESR?"}, fake.outgoing)
}

func TestCheckedCommandChainsWithDelimiter(t *testing.T) {
	dev, fake := checkedDevice(t, "0")
	require.NoError(t, dev.Command("RANGE 1,0", "RANGE 2,0"))
	assert.Equal(t, []string{"RANGE 1,0;:RANGE 2,0;*ESR?"}, fake.outgoing)
}

func TestUncheckedCommandSkipsErrorSuffix(t *testing.T) {
	dev, fake := checkedDevice(t, "1")
	require.NoError(t, dev.CommandUnchecked("*RST"))
	assert.Equal(t, []string{"*RST;*OPC?"}, fake.outgoing)
}

func TestUncheckedCommandWithoutCompletionQueryIsFireAndForget(t *testing.T) {
	dev, fake := checkedDevice(t)
	dev.CompletionQuery = ""
	require.NoError(t, dev.CommandUnchecked("*RST"))
	assert.Equal(t, []string{"*RST"}, fake.outgoing)
}

func TestQueryErrorPrecedesValueParsing(t *testing.T) {
	// embedded quoted semicolon in the payload plus an error-free status
	dev, _ := checkedDevice(t, `"DT-470;cal",0`+";0")
	resp, err := dev.Query("CRVHDR? 21")
	require.NoError(t, err)
	assert.Equal(t, `"DT-470;cal",0`, resp)
}

func TestParseIdentity(t *testing.T) {
	id, err := scpi.ParseIdentity("LSCI,MODEL335,LSA2001/LSA2002,1.2")
	require.NoError(t, err)
	assert.Equal(t, "LSCI", id.Manufacturer)
	assert.Equal(t, "MODEL335", id.Model)
	assert.Equal(t, "LSA2001", id.SerialNumber)
	assert.Equal(t, "LSA2002", id.OptionCardSerial)
	assert.Equal(t, "1.2", id.Firmware)

	id, err = scpi.ParseIdentity("LSCI,F71,FakeSerial,1.1.2018091003")
	require.NoError(t, err)
	assert.Empty(t, id.OptionCardSerial)

	_, err = scpi.ParseIdentity("garbage")
	assert.Error(t, err)
}
