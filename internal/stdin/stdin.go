// ABOUTME: In-memory stand-in for process standard input on socket connections
// ABOUTME: Rewritten with each request's stdinData and rewound before commands read it

package stdin

import (
	"fmt"
	"io"
	"sync"

	"github.com/spf13/afero"
)

const fileName = "stdin"

// Stream is a rewritable, seekable buffer. One exists per connection.
type Stream struct {
	mu     sync.Mutex
	file   afero.File
	closed bool
}

func New() (*Stream, error) {
	file, err := afero.NewMemMapFs().Create(fileName)
	if err != nil {
		return nil, fmt.Errorf("failed to create stdin buffer: %w", err)
	}
	return &Stream{file: file}, nil
}

// Replace truncates the stream, writes data and rewinds to the start.
func (s *Stream) Replace(data string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stdin buffer is closed")
	}
	if err := s.file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate stdin buffer: %w", err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind stdin buffer: %w", err)
	}
	if _, err := s.file.WriteString(data); err != nil {
		return fmt.Errorf("failed to write stdin buffer: %w", err)
	}
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind stdin buffer: %w", err)
	}
	return nil
}

// Rewind moves the read position back to the start.
func (s *Stream) Rewind() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("stdin buffer is closed")
	}
	_, err := s.file.Seek(0, io.SeekStart)
	return err
}

func (s *Stream) Read(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, io.ErrClosedPipe
	}
	return s.file.Read(p)
}

// Size returns the number of bytes currently held.
func (s *Stream) Size() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, fmt.Errorf("stdin buffer is closed")
	}
	info, err := s.file.Stat()
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

// Close releases the buffer. It is safe to call more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}
