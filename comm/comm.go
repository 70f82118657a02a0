/*Package comm provides the shared transport layer for Lake Shore instruments.

An instrument talks over exactly one channel: a USB/RS-232 serial port found
by scanning for the instrument family's USB vendor/product IDs, a TCP socket,
or a caller-supplied connection implementing Conn.  Open resolves the channel
from an immutable Config, clears any stale bytes left over from a prior
session, and returns a Device whose Command and Query calls are serialized by
a mutex so that concurrent callers cannot interleave request/response pairs
on the wire.

All traffic is ASCII lines: outgoing messages are newline terminated, replies
end in CRLF.  The instruments accept fewer than 20 commands per second on
their serial interfaces, so each Device paces its writes with a rate limiter.
*/
package comm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/tarm/serial"
	"golang.org/x/time/rate"
)

const (
	// instruments drop bytes beyond ~20 commands per second on serial links
	commandsPerSecond = 20

	// settle time between the post-connect line break and draining the
	// input buffer
	clearDelay = 100 * time.Millisecond
)

var (
	// ErrTooManyConnections is generated when a Config specifies more than
	// one of the serial, TCP, and user-supplied connection methods.
	ErrTooManyConnections = errors.New("too many connection methods specified, want exactly one of serial, TCP, or user connection")

	// ErrPortNotFound is generated when no serial port matches the VID/PID
	// allow-list and the optional port name / serial number filters.
	ErrPortNotFound = errors.New("no serial port found matching the given parameters")

	// ErrTimeout is generated when a query produces no response before the
	// channel read timeout elapses.
	ErrTimeout = errors.New("communication timed out")

	// ErrNotConnected is generated when an operation is attempted on a
	// closed Device.
	ErrNotConnected = errors.New("not connected to instrument")

	// ErrSerialNumberMismatch is generated when the serial number reported
	// by an instrument reached over TCP does not match the one requested.
	ErrSerialNumberMismatch = errors.New("instrument serial number does not match the requested serial number")
)

// Conn is a channel to an instrument.  Write sends one command line, Query
// sends one query line and returns the reply with its terminator stripped,
// and Clear discards any stale bytes buffered on the channel.
//
// Callers may supply their own Conn in Config to route traffic through an
// existing connection (a VISA session, a test double, a multiplexer).
type Conn interface {
	Write(cmd string) error
	Query(query string) (string, error)
	Clear() error
}

// VIDPID is a USB vendor ID / product ID pair used to recognize an
// instrument family during port enumeration.
type VIDPID struct {
	VID uint16
	PID uint16
}

func (v VIDPID) String() string {
	return fmt.Sprintf("%04X:%04X", v.VID, v.PID)
}

// Config holds the connection parameters for one instrument.  It is resolved
// once by Open and never mutated afterwards.
//
// The serial path is the default.  Setting Addr selects TCP; setting Conn
// uses the supplied connection as-is.  Specifying more than one of these is
// an error.  SerialNumber narrows the serial port scan, and is checked
// against the instrument's reported serial number after a TCP connect.
type Config struct {
	// SerialNumber optionally filters the port scan to a specific device,
	// or cross-checks the identity of a TCP-connected instrument.  It is
	// ignored when Conn is supplied.
	SerialNumber string

	// Port optionally names the serial device (COM3, /dev/ttyUSB0) instead
	// of taking the first allow-listed match.
	Port string

	// Baud, DataBits, StopBits and Parity are the serial framing
	// parameters, per the instrument manual.
	Baud     int
	DataBits byte
	StopBits serial.StopBits
	Parity   serial.Parity

	// Addr is the instrument's IP address or host name; non-empty selects
	// the TCP path.
	Addr string

	// TCPPort is the instrument's command port, commonly 7777.
	TCPPort int

	// Timeout bounds every read on the channel.
	Timeout time.Duration

	// Conn, if non-nil, is used instead of opening a serial port or socket.
	Conn Conn

	// Logger receives connect events and command/query traffic.  Nil uses
	// slog.Default().
	Logger *slog.Logger
}

// Device owns one open channel to an instrument.  All methods are safe for
// concurrent use; each Command or Query holds the device lock for the full
// write+read round trip.
type Device struct {
	mu      sync.Mutex
	conn    Conn
	limiter *rate.Limiter
	log     *slog.Logger
}

// Open resolves cfg into a live connection.  allowed is the instrument
// family's USB VID/PID allow-list, consulted only on the serial path.
func Open(cfg Config, allowed []VIDPID) (*Device, error) {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}

	specified := 0
	if cfg.Addr != "" {
		specified++
	}
	if cfg.Conn != nil {
		specified++
	}
	if cfg.Port != "" || (cfg.SerialNumber != "" && cfg.Addr == "" && cfg.Conn == nil) {
		specified++
	}
	if specified > 1 {
		return nil, ErrTooManyConnections
	}

	var (
		conn Conn
		err  error
	)
	switch {
	case cfg.Conn != nil:
		conn = cfg.Conn
	case cfg.Addr != "":
		conn, err = openTCP(cfg.Addr, cfg.TCPPort, cfg.Timeout)
	default:
		conn, err = openSerial(cfg, allowed)
	}
	if err != nil {
		return nil, err
	}
	if err := conn.Clear(); err != nil {
		return nil, err
	}
	log.Info("connected to instrument")
	return &Device{
		conn:    conn,
		limiter: rate.NewLimiter(rate.Limit(commandsPerSecond), 1),
		log:     log,
	}, nil
}

// Command sends one command line to the instrument.
func (d *Device) Command(cmd string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return ErrNotConnected
	}
	d.limiter.Wait(context.Background())
	if err := d.conn.Write(cmd); err != nil {
		return err
	}
	d.log.Debug("sent command", "cmd", cmd)
	return nil
}

// Query sends one query line and returns the reply.  An empty reply means
// the instrument did not answer before the read timeout; these protocols
// never produce empty responses.
func (d *Device) Query(query string) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.conn == nil {
		return "", ErrNotConnected
	}
	d.limiter.Wait(context.Background())
	resp, err := d.conn.Query(query)
	if err != nil {
		return "", err
	}
	if resp == "" {
		return "", ErrTimeout
	}
	d.log.Debug("sent query", "query", query, "resp", resp)
	return resp, nil
}

// Close releases the underlying channel.  Caller-supplied connections are
// left open; their lifetime belongs to the caller.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	conn := d.conn
	d.conn = nil
	if closer, ok := conn.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// serialConn is a Conn over an RS-232/USB-CDC serial port.
type serialConn struct {
	port *serial.Port
}

func openSerial(cfg Config, allowed []VIDPID) (Conn, error) {
	name, err := DiscoverPort(allowed, cfg.Port, cfg.SerialNumber)
	if err != nil {
		return nil, err
	}
	port, err := serial.OpenPort(&serial.Config{
		Name:        name,
		Baud:        cfg.Baud,
		Size:        cfg.DataBits,
		StopBits:    cfg.StopBits,
		Parity:      cfg.Parity,
		ReadTimeout: cfg.Timeout,
	})
	if err != nil {
		return nil, err
	}
	return &serialConn{port: port}, nil
}

func (c *serialConn) Write(cmd string) error {
	_, err := c.port.Write([]byte(cmd + "\n"))
	return err
}

// Query reads the reply one byte at a time until the final two bytes are
// CRLF.  A read returning no data means the port timed out.
func (c *serialConn) Query(query string) (string, error) {
	if err := c.Write(query); err != nil {
		return "", err
	}
	line := make([]byte, 0, 64)
	buf := make([]byte, 1)
	for {
		n, err := c.port.Read(buf)
		if err != nil && err != io.EOF {
			return "", err
		}
		if n == 0 {
			break
		}
		line = append(line, buf[0])
		if len(line) >= 2 && line[len(line)-2] == '\r' && line[len(line)-1] == '\n' {
			break
		}
	}
	if len(line) == 0 {
		return "", ErrTimeout
	}
	return strings.TrimRight(string(line), "\r\n"), nil
}

// Clear sends a bare line break, waits for the instrument to settle, then
// drains whatever a previous session may have left in the input buffer.
func (c *serialConn) Clear() error {
	if _, err := c.port.Write([]byte("\n")); err != nil {
		return err
	}
	time.Sleep(clearDelay)
	return c.port.Flush()
}

func (c *serialConn) Close() error {
	return c.port.Close()
}

// tcpConn is a Conn over a stream socket.
type tcpConn struct {
	conn    net.Conn
	timeout time.Duration
}

func openTCP(addr string, port int, timeout time.Duration) (Conn, error) {
	target := net.JoinHostPort(addr, fmt.Sprint(port))

	// the instruments reject connection thrash after a drop, so retry with
	// an exponential backoff rather than hammering the port
	var conn net.Conn
	op := func() error {
		var err error
		conn, err = net.DialTimeout("tcp", target, timeout)
		return err
	}
	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      3 * time.Second,
		Clock:               backoff.SystemClock,
	})
	if err != nil {
		return nil, err
	}
	return &tcpConn{conn: conn, timeout: timeout}, nil
}

func (c *tcpConn) Write(cmd string) error {
	c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	_, err := c.conn.Write([]byte(cmd + "\n"))
	return err
}

// Query accumulates socket reads until the reply ends in CRLF.
func (c *tcpConn) Query(query string) (string, error) {
	if err := c.Write(query); err != nil {
		return "", err
	}
	var total strings.Builder
	buf := make([]byte, 4096)
	for {
		c.conn.SetReadDeadline(time.Now().Add(c.timeout))
		n, err := c.conn.Read(buf)
		if err != nil {
			if nerr, ok := err.(net.Error); ok && nerr.Timeout() {
				return "", ErrTimeout
			}
			return "", err
		}
		total.Write(buf[:n])
		if strings.HasSuffix(total.String(), "\r\n") {
			return strings.TrimRight(total.String(), "\r\n"), nil
		}
	}
}

func (c *tcpConn) Clear() error {
	if err := c.Write(""); err != nil {
		return err
	}
	time.Sleep(clearDelay)
	buf := make([]byte, 4096)
	for {
		c.conn.SetReadDeadline(time.Now().Add(10 * time.Millisecond))
		if _, err := c.conn.Read(buf); err != nil {
			break
		}
	}
	return nil
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}
