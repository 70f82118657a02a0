package gaussmeter_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/gaussmeter"
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

func fake425(t *testing.T, replies ...string) (*gaussmeter.Model425, *fakeConn) {
	t.Helper()
	fake := &fakeConn{replies: append([]string{"LSCI,MODEL425,LSA4321,1.0"}, replies...)}
	m, err := gaussmeter.New(comm.Config{Conn: fake})
	require.NoError(t, err)
	return m, fake
}

func TestField(t *testing.T) {
	m, fake := fake425(t, "+1.234E+02;0")
	field, err := m.Field()
	require.NoError(t, err)
	assert.Equal(t, 123.4, field)
	assert.Equal(t, "RDGFIELD?;*ESR?", fake.outgoing[1])
}

func TestUnits(t *testing.T) {
	m, fake := fake425(t, "0", "2;0")
	require.NoError(t, m.SetUnits(gaussmeter.Tesla))
	assert.Equal(t, "UNIT 2;*ESR?", fake.outgoing[1])

	units, err := m.Units()
	require.NoError(t, err)
	assert.Equal(t, gaussmeter.Tesla, units)
}

func TestZeroProbe(t *testing.T) {
	m, fake := fake425(t, "0")
	require.NoError(t, m.ZeroProbe())
	assert.Equal(t, "ZPROBE;*ESR?", fake.outgoing[1])
}
