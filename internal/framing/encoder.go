// ABOUTME: Writes Content-Length framed messages
// ABOUTME: Header and body go out in a single write so frames never interleave

package framing

import (
	"io"
	"strconv"
)

// Frame wraps body with its Content-Length header block.
func Frame(body []byte) []byte {
	header := "Content-Length: " + strconv.Itoa(len(body)) + HeaderDelimiter + HeaderDelimiter
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	return append(out, body...)
}

// WriteFrame writes one framed message to w.
func WriteFrame(w io.Writer, body []byte) error {
	_, err := w.Write(Frame(body))
	return err
}
