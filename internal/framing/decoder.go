// ABOUTME: Incremental Content-Length frame decoder for a single connection
// ABOUTME: Turns arbitrarily chunked socket reads into complete message bodies

package framing

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/harper/php-integrator/internal/errors"
)

// HeaderDelimiter terminates every header line. An empty line ends the header
// block.
const HeaderDelimiter = "\r\n"

const (
	// DefaultMaxContentLength bounds the body size a peer may declare.
	DefaultMaxContentLength = 16 << 20

	// MaxHeaderLineLength bounds a header line that has not been terminated yet.
	MaxHeaderLineLength = 8 << 10
)

type phase int

const (
	awaitingLengthHeader phase = iota
	awaitingBoundary
	accumulatingBody
)

func (p phase) String() string {
	switch p {
	case awaitingLengthHeader:
		return "awaiting-length-header"
	case awaitingBoundary:
		return "awaiting-boundary"
	default:
		return "accumulating-body"
	}
}

// frameState is the progress on the message currently being received.
type frameState struct {
	phase          phase
	expectedLength int
	boundaryFound  bool
	bytesConsumed  int
	buffer         []byte

	// partial header line carried over from a previous chunk
	pendingHeader []byte
}

// Decoder is not safe for concurrent use. Each connection owns its own.
type Decoder struct {
	maxContentLength int
	state            frameState
}

func NewDecoder(maxContentLength int) *Decoder {
	if maxContentLength <= 0 {
		maxContentLength = DefaultMaxContentLength
	}
	return &Decoder{maxContentLength: maxContentLength}
}

// Feed consumes a chunk and returns the bodies it completed, in order.
//
// On a framing error the message in progress and the remainder of the chunk
// are discarded and the decoder starts over with the next chunk. Bodies that
// were completed earlier in the same chunk are still returned alongside the
// error.
func (d *Decoder) Feed(chunk []byte) ([][]byte, error) {
	var payloads [][]byte

	data := chunk
	for len(data) > 0 {
		n, payload, err := d.step(data)
		if err != nil {
			d.Reset()
			return payloads, err
		}
		if payload != nil {
			payloads = append(payloads, payload)
		}
		data = data[n:]
	}

	return payloads, nil
}

// Pending reports whether part of a message has been received.
func (d *Decoder) Pending() bool {
	s := &d.state
	return s.phase != awaitingLengthHeader || len(s.pendingHeader) > 0
}

// Phase names the current state, for diagnostics.
func (d *Decoder) Phase() string {
	return d.state.phase.String()
}

// Reset drops any partially received message.
func (d *Decoder) Reset() {
	d.state = frameState{}
}

func (d *Decoder) step(data []byte) (int, []byte, error) {
	switch d.state.phase {
	case awaitingLengthHeader:
		line, n, ok, err := d.readHeaderLine(data)
		if err != nil || !ok {
			return n, nil, err
		}
		length, err := d.parseContentLength(line)
		if err != nil {
			return n, nil, err
		}
		d.state.expectedLength = length
		d.state.phase = awaitingBoundary
		return n, nil, nil

	case awaitingBoundary:
		line, n, ok, err := d.readHeaderLine(data)
		if err != nil || !ok {
			return n, nil, err
		}
		// Headers other than Content-Length are accepted and ignored.
		if len(line) == 0 {
			d.state.boundaryFound = true
			d.state.buffer = make([]byte, 0, d.state.expectedLength)
			d.state.phase = accumulatingBody
		}
		return n, nil, nil

	default:
		s := &d.state
		take := s.expectedLength - s.bytesConsumed
		if len(data) < take {
			take = len(data)
		}
		s.buffer = append(s.buffer, data[:take]...)
		s.bytesConsumed += take

		if s.bytesConsumed == s.expectedLength {
			payload := s.buffer
			d.Reset()
			return take, payload, nil
		}
		return take, nil, nil
	}
}

// readHeaderLine returns the next complete header line without its
// delimiter and how many bytes of data it used. When the line is not complete
// yet, the bytes are kept and ok is false.
func (d *Decoder) readHeaderLine(data []byte) (line []byte, n int, ok bool, err error) {
	s := &d.state

	buf := data
	carried := len(s.pendingHeader)
	if carried > 0 {
		buf = append(s.pendingHeader, data...)
	}

	end := bytes.Index(buf, []byte(HeaderDelimiter))
	if end < 0 {
		if len(buf) > MaxHeaderLineLength {
			return nil, len(data), false, errors.NewFramingError("header too large")
		}
		s.pendingHeader = append([]byte(nil), buf...)
		return nil, len(data), false, nil
	}

	s.pendingHeader = nil
	return buf[:end], end + len(HeaderDelimiter) - carried, true, nil
}

func (d *Decoder) parseContentLength(line []byte) (int, error) {
	name, value, found := strings.Cut(string(line), ":")
	if !found {
		return 0, errors.NewFramingError("missing delimiter")
	}
	if !strings.EqualFold(strings.TrimSpace(name), "Content-Length") {
		return 0, errors.NewFramingError("missing Content-Length header")
	}

	value = strings.TrimSpace(value)
	if value == "" || strings.TrimLeft(value, "0123456789") != "" {
		return 0, errors.NewFramingError("invalid length")
	}
	length, err := strconv.Atoi(value)
	if err != nil || length <= 0 {
		return 0, errors.NewFramingError("invalid length")
	}
	if length > d.maxContentLength {
		return 0, errors.NewFramingError("length exceeds maximum")
	}

	return length, nil
}
