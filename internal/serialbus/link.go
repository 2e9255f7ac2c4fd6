// Package serialbus talks to a still controller board over a serial line.
//
// The board speaks a line protocol:
//
//	M\n         ->  T=<celsius> H=<percent>\n
//	D=<duty>\n  ->  OK\n
//
// Any other reply is a protocol error.
package serialbus

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.bug.st/serial"

	"still_controller/internal/models"
)

const DefaultBaudRate = 115200

var (
	ErrProtocol = errors.New("serialbus: unexpected reply")
	ErrTimeout  = errors.New("serialbus: read timed out")
)

// timeoutReader reports the driver's empty read, which is how go.bug.st/serial signals an
// expired read timeout, as ErrTimeout. One timeout fails the transaction.
type timeoutReader struct {
	r io.Reader
}

func (t timeoutReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n == 0 && err == nil && len(p) > 0 {
		return 0, ErrTimeout
	}
	return n, err
}

// Link serialises request/reply transactions on one port. The sensor and the heater may
// share a Link.
type Link struct {
	mu  sync.Mutex
	rw  io.ReadWriter
	br  *bufio.Reader
	c   io.Closer
	now func() time.Time
}

// NewLink wraps an already open stream.
func NewLink(rw io.ReadWriter) *Link {
	l := &Link{rw: rw, br: bufio.NewReader(timeoutReader{r: rw}), now: time.Now}
	if c, ok := rw.(io.Closer); ok {
		l.c = c
	}
	return l
}

// Open opens a serial port in 8N1 at baud. Reads time out after readTimeout so a silent
// board cannot hold the link forever.
func Open(port string, baud int, readTimeout time.Duration) (*Link, error) {
	if baud <= 0 {
		baud = DefaultBaudRate
	}
	p, err := serial.Open(port, &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", port, err)
	}
	if readTimeout > 0 {
		if err := p.SetReadTimeout(readTimeout); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to set read timeout on %s: %w", port, err)
		}
	}
	return NewLink(p), nil
}

// Close releases the underlying port.
func (l *Link) Close() error {
	if l.c == nil {
		return nil
	}
	return l.c.Close()
}

func (l *Link) transact(req string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, err := io.WriteString(l.rw, req+"\n"); err != nil {
		return "", fmt.Errorf("write %q: %w", req, err)
	}
	line, err := l.br.ReadString('\n')
	switch {
	case err == nil:
	case errors.Is(err, io.EOF) && line != "":
		// port closed after an unterminated reply
	default:
		// drop any partial reply so it cannot prefix the next one
		l.br.Reset(timeoutReader{r: l.rw})
		if errors.Is(err, io.EOF) {
			return "", fmt.Errorf("read reply to %q: no data", req)
		}
		return "", fmt.Errorf("read reply to %q: %w", req, err)
	}
	return strings.TrimSpace(line), nil
}

// Sensor is a sensor bus over a Link.
type Sensor struct {
	link *Link
}

func NewSensor(l *Link) *Sensor {
	return &Sensor{link: l}
}

// Measure requests one measurement. Cancellation is checked before the transaction; the
// read itself is bounded by the port's read timeout.
func (s *Sensor) Measure(ctx context.Context) (models.Reading, error) {
	if err := ctx.Err(); err != nil {
		return models.Reading{}, err
	}
	reply, err := s.link.transact("M")
	if err != nil {
		return models.Reading{}, err
	}
	temp, hum, err := parseMeasurement(reply)
	if err != nil {
		return models.Reading{}, err
	}
	return models.NewReading(temp, hum, s.link.now()), nil
}

func parseMeasurement(line string) (temp, hum float64, err error) {
	var gotT, gotH bool
	for _, field := range strings.Fields(line) {
		key, val, ok := strings.Cut(field, "=")
		if !ok {
			return 0, 0, fmt.Errorf("%w: %q", ErrProtocol, line)
		}
		f, perr := strconv.ParseFloat(val, 64)
		if perr != nil {
			return 0, 0, fmt.Errorf("%w: %q: %v", ErrProtocol, line, perr)
		}
		switch key {
		case "T":
			temp, gotT = f, true
		case "H":
			hum, gotH = f, true
		}
	}
	if !gotT || !gotH {
		return 0, 0, fmt.Errorf("%w: %q", ErrProtocol, line)
	}
	return temp, hum, nil
}

// Heater drives the heater output over a Link.
type Heater struct {
	link *Link
}

func NewHeater(l *Link) *Heater {
	return &Heater{link: l}
}

// SetDuty succeeds only when the board acknowledges with OK.
func (h *Heater) SetDuty(percent int) error {
	if percent < 0 || percent > 100 {
		return fmt.Errorf("serialbus: duty %d out of range", percent)
	}
	reply, err := h.link.transact("D=" + strconv.Itoa(percent))
	if err != nil {
		return err
	}
	if reply != "OK" {
		return fmt.Errorf("%w: %q", ErrProtocol, reply)
	}
	return nil
}
