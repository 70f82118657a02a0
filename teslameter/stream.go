package teslameter

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DataPoint is one sample from the measurement buffer.
type DataPoint struct {
	// Elapsed is the time into the acquisition, derived from the sample
	// count and sample period.
	Elapsed time.Duration

	// Timestamp is the instrument's clock reading for the sample.
	Timestamp time.Time

	Magnitude float64
	X         float64
	Y         float64
	Z         float64

	// FieldControlSetpoint is zero on instruments without the field
	// control option.
	FieldControlSetpoint float64

	InputState float64
}

// StreamBufferedData acquires the measurement buffer in real time for the
// given length of time, one sample per samplePeriod, and sends each sample
// on the returned channel.  The sample period is the instrument's averaging
// window and must be a multiple of 10 ms.
//
// The data channel is closed when the acquisition completes or ctx is
// canceled; a wire or parse fault arrives on the error channel and ends the
// stream.
func (t *Teslameter) StreamBufferedData(ctx context.Context, duration, samplePeriod time.Duration) (<-chan DataPoint, <-chan error) {
	points := make(chan DataPoint)
	errc := make(chan error, 1)

	go func() {
		defer close(points)
		if err := t.stream(ctx, duration, samplePeriod, points); err != nil {
			errc <- err
		}
	}()
	return points, errc
}

func (t *Teslameter) stream(ctx context.Context, duration, samplePeriod time.Duration, points chan<- DataPoint) error {
	if err := t.dev.RequireFirmware(fieldControlFirmware); err != nil {
		return err
	}
	if err := t.dev.Command(fmt.Sprintf("SENSE:AVERAGE:COUNT %d", samplePeriod/(10*time.Millisecond))); err != nil {
		return err
	}

	total := int(duration / samplePeriod)

	// the first read discards whatever accumulated before the acquisition
	if _, err := t.dev.QueryUnchecked("FETC:BUFF:DC?"); err != nil {
		return err
	}

	collected := 0
	for collected < total {
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := t.dev.QueryUnchecked("FETC:BUFF:DC?")
		if err != nil {
			return err
		}
		// a reply without a delimiter carries no samples yet
		if !strings.Contains(resp, ";") {
			continue
		}
		for _, raw := range strings.Split(strings.TrimRight(resp, ";"), ";") {
			collected++
			if collected > total {
				return nil
			}
			point, err := parseDataPoint(raw)
			if err != nil {
				return err
			}
			point.Elapsed = time.Duration(collected) * samplePeriod
			select {
			case points <- point:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}

// parseDataPoint parses one buffer sample of the form
// "timestamp,magnitude,x,y,z[,setpoint],input_state".  The setpoint field
// is absent on instruments without the field control option.
func parseDataPoint(raw string) (DataPoint, error) {
	fields := strings.Split(raw, ",")
	if len(fields) != 6 && len(fields) != 7 {
		return DataPoint{}, errors.Errorf("malformed buffer sample %q", raw)
	}
	stamp, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(fields[0]))
	if err != nil {
		return DataPoint{}, errors.Wrap(err, "parsing sample timestamp")
	}
	values := make([]float64, len(fields)-1)
	for i, f := range fields[1:] {
		if values[i], err = strconv.ParseFloat(strings.TrimSpace(f), 64); err != nil {
			return DataPoint{}, errors.Wrap(err, "parsing sample value")
		}
	}
	point := DataPoint{
		Timestamp: stamp,
		Magnitude: values[0],
		X:         values[1],
		Y:         values[2],
		Z:         values[3],
	}
	if len(values) == 6 {
		point.FieldControlSetpoint = values[4]
		point.InputState = values[5]
	} else {
		point.InputState = values[4]
	}
	return point, nil
}

// BufferedDataPoints acquires the measurement buffer for the given length
// of time and returns all of the samples at once.
func (t *Teslameter) BufferedDataPoints(ctx context.Context, duration, samplePeriod time.Duration) ([]DataPoint, error) {
	points, errc := t.StreamBufferedData(ctx, duration, samplePeriod)
	var out []DataPoint
	for point := range points {
		out = append(out, point)
	}
	select {
	case err := <-errc:
		return nil, err
	default:
	}
	return out, nil
}

// LogBufferedData streams the measurement buffer to w as CSV with
// spreadsheet-friendly split date and time columns.
func (t *Teslameter) LogBufferedData(ctx context.Context, duration, samplePeriod time.Duration, w io.Writer) error {
	cw := csv.NewWriter(w)
	header := []string{"time elapsed", "date", "time",
		"magnitude", "x", "y", "z", "field control set point", "input state"}
	if err := cw.Write(header); err != nil {
		return err
	}

	points, errc := t.StreamBufferedData(ctx, duration, samplePeriod)
	for point := range points {
		row := []string{
			strconv.FormatFloat(point.Elapsed.Seconds(), 'g', -1, 64),
			point.Timestamp.Format("01/02/2006"),
			point.Timestamp.Format("15:04:05.000000"),
			strconv.FormatFloat(point.Magnitude, 'g', -1, 64),
			strconv.FormatFloat(point.X, 'g', -1, 64),
			strconv.FormatFloat(point.Y, 'g', -1, 64),
			strconv.FormatFloat(point.Z, 'g', -1, 64),
			strconv.FormatFloat(point.FieldControlSetpoint, 'g', -1, 64),
			strconv.FormatFloat(point.InputState, 'g', -1, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	select {
	case err := <-errc:
		return err
	default:
	}
	return nil
}
