package empower_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/empower"
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

func fakeSupply(t *testing.T, replies ...string) (*empower.Supply, *fakeConn) {
	t.Helper()
	fake := &fakeConn{replies: append([]string{"LSCI,MODEL648,LSA6480,1.0"}, replies...)}
	s, err := empower.New(comm.Config{Conn: fake})
	require.NoError(t, err)
	return s, fake
}

func TestCurrentSetpoint(t *testing.T) {
	s, fake := fakeSupply(t, "0", "+10.5;0")
	require.NoError(t, s.SetCurrentSetpoint(10.5))
	assert.Equal(t, "SETI 10.5;*ESR?", fake.outgoing[1])

	amps, err := s.CurrentSetpoint()
	require.NoError(t, err)
	assert.Equal(t, 10.5, amps)
}

func TestLimits(t *testing.T) {
	s, fake := fakeSupply(t, "0", "+70.1,+35.0,+50.0;0")
	require.NoError(t, s.SetLimits(70.1, 35, 50))
	assert.Equal(t, "LIMIT 70.1,35,50;*ESR?", fake.outgoing[1])

	maxI, maxV, maxRate, err := s.Limits()
	require.NoError(t, err)
	assert.Equal(t, 70.1, maxI)
	assert.Equal(t, 35.0, maxV)
	assert.Equal(t, 50.0, maxRate)
}

func TestStop(t *testing.T) {
	s, fake := fakeSupply(t, "0")
	require.NoError(t, s.Stop())
	assert.Equal(t, "STOP;*ESR?", fake.outgoing[1])
}
