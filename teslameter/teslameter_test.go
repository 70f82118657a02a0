package teslameter_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lakeshorecryotronics/go-driver/comm"
	"github.com/lakeshorecryotronics/go-driver/teslameter"
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

const okFirmware = "1.1.2018091003"

func fakeTeslameter(t *testing.T, firmware string, replies ...string) (*teslameter.Teslameter, *fakeConn) {
	t.Helper()
	idn := "Lake Shore,F71,FakeSerial," + firmware
	fake := &fakeConn{replies: append([]string{idn}, replies...)}
	tm, err := teslameter.New(comm.Config{Conn: fake})
	require.NoError(t, err)
	return tm, fake
}

func TestDCField(t *testing.T) {
	tm, fake := fakeTeslameter(t, okFirmware, `+0.1234;0,"No error"`)
	field, err := tm.DCField()
	require.NoError(t, err)
	assert.Equal(t, 0.1234, field)
	assert.Equal(t, "FETCH:DC?;:SYSTem:ERRor:ALL?", fake.outgoing[1])
}

func TestDCFieldXYZ(t *testing.T) {
	tm, _ := fakeTeslameter(t, okFirmware, `+0.1,+0.2,+0.3;0,"No error"`)
	xyz, err := tm.DCFieldXYZ()
	require.NoError(t, err)
	assert.Equal(t, []float64{0.1, 0.2, 0.3}, xyz)
}

func TestMaxMinSingleTransaction(t *testing.T) {
	tm, fake := fakeTeslameter(t, okFirmware, `+1.5;-0.5;0,"No error"`)
	max, min, err := tm.MaxMin()
	require.NoError(t, err)
	assert.Equal(t, 1.5, max)
	assert.Equal(t, -0.5, min)
	assert.Equal(t, "FETCH:MAX?;:FETCH:MIN?;:SYSTem:ERRor:ALL?", fake.outgoing[1])
}

func TestProbeInfo(t *testing.T) {
	tm, _ := fakeTeslameter(t, okFirmware,
		`"HST-1";"P001";"HST";"Hall";"+Z";3;"1/1/2019";0,"No error"`)
	info, err := tm.ProbeInfo()
	require.NoError(t, err)
	assert.Equal(t, "HST-1", info.ModelNumber)
	assert.Equal(t, "P001", info.SerialNumber)
	assert.Equal(t, 3, info.NumberOfAxes)
	assert.Equal(t, "1/1/2019", info.CalibrationDate)
}

func TestFieldControlNeedsFirmware(t *testing.T) {
	tm, fake := fakeTeslameter(t, "1.0.2018010100")
	err := tm.SetFieldControlSetpoint(0.5)
	assert.ErrorIs(t, err, xip.ErrFirmwareTooOld)
	assert.Len(t, fake.outgoing, 1, "nothing may reach the wire when the firmware is too old")
}

func TestFieldControlSetpoint(t *testing.T) {
	tm, fake := fakeTeslameter(t, okFirmware, `;0,"No error"`)
	require.NoError(t, tm.SetFieldControlSetpoint(0.5))
	assert.Equal(t, "SOURCE:FIELD:CLL:SETPOINT 0.5;:SYSTem:ERRor:ALL?", fake.outgoing[1])
}

func TestConfigureMeasurementAutorange(t *testing.T) {
	tm, fake := fakeTeslameter(t, okFirmware, `;;;0,"No error"`)
	require.NoError(t, tm.ConfigureMeasurement(teslameter.MeasurementSetup{
		Mode:             teslameter.ModeDC,
		Autorange:        true,
		AveragingSamples: 20,
	}))
	assert.Equal(t,
		"SENS:MODE DC;:SENS:RANGE:AUTO 1;:SENS:AVERAGE:COUNT 20;:SYSTem:ERRor:ALL?",
		fake.outgoing[1])
}

func TestMeasurementSetupParsing(t *testing.T) {
	tm, _ := fakeTeslameter(t, okFirmware, `DC;1;+1.0;20;0,"No error"`)
	setup, err := tm.MeasurementSetup()
	require.NoError(t, err)
	assert.Equal(t, teslameter.MeasurementSetup{
		Mode:             teslameter.ModeDC,
		Autorange:        true,
		Range:            1,
		AveragingSamples: 20,
	}, setup)
}

func TestStreamBufferedData(t *testing.T) {
	// one clearing read, then two polls carrying two samples each
	tm, fake := fakeTeslameter(t, okFirmware,
		`;0,"No error"`, // SENSE:AVERAGE:COUNT
		"stale",
		"2019-09-10T12:00:00.000000+00:00,1.0,0.1,0.2,0.3,0.0,0;"+
			"2019-09-10T12:00:00.010000+00:00,1.1,0.1,0.2,0.3,0.0,0;",
		"2019-09-10T12:00:00.020000+00:00,1.2,0.1,0.2,0.3,0.0,0;"+
			"2019-09-10T12:00:00.030000+00:00,1.3,0.1,0.2,0.3,0.0,0;",
	)
	points, errc := tm.StreamBufferedData(context.Background(), 40*time.Millisecond, 10*time.Millisecond)
	var got []teslameter.DataPoint
	for p := range points {
		got = append(got, p)
	}
	select {
	case err := <-errc:
		t.Fatalf("stream failed: %v", err)
	default:
	}
	require.Len(t, got, 4)
	assert.Equal(t, 1.0, got[0].Magnitude)
	assert.Equal(t, 10*time.Millisecond, got[0].Elapsed)
	assert.Equal(t, 40*time.Millisecond, got[3].Elapsed)
	assert.Equal(t, 2019, got[0].Timestamp.Year())
	assert.Equal(t, "SENSE:AVERAGE:COUNT 1;:SYSTem:ERRor:ALL?", fake.outgoing[1])
	assert.Equal(t, "FETC:BUFF:DC?", fake.outgoing[2])
}

func TestStreamWithoutSetpointField(t *testing.T) {
	// instruments without the field control option omit the setpoint
	tm, _ := fakeTeslameter(t, okFirmware,
		`;0,"No error"`,
		"stale",
		"2019-09-10T12:00:00.000000+00:00,1.0,0.1,0.2,0.3,1;",
	)
	points, errc := tm.StreamBufferedData(context.Background(), 10*time.Millisecond, 10*time.Millisecond)
	var got []teslameter.DataPoint
	for p := range points {
		got = append(got, p)
	}
	select {
	case err := <-errc:
		t.Fatalf("stream failed: %v", err)
	default:
	}
	require.Len(t, got, 1)
	assert.Zero(t, got[0].FieldControlSetpoint)
	assert.Equal(t, 1.0, got[0].InputState)
}

func TestLogBufferedDataCSV(t *testing.T) {
	tm, _ := fakeTeslameter(t, okFirmware,
		`;0,"No error"`,
		"stale",
		"2019-09-10T12:00:00.000000+00:00,1.0,0.1,0.2,0.3,0.0,0;",
	)
	var buf strings.Builder
	err := tm.LogBufferedData(context.Background(), 10*time.Millisecond, 10*time.Millisecond, &buf)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "time elapsed,date,time,magnitude,x,y,z,field control set point,input state", lines[0])
	assert.Contains(t, lines[1], "09/10/2019")
	assert.Contains(t, lines[1], "12:00:00.000000")
}
