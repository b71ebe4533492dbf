package console

import (
	"bufio"
	"io"
)

// LineReader reads one line at a time, only when asked. Nothing is consumed
// from the input between lines, so an editor can own the terminal meanwhile.
type LineReader struct {
	scanner *bufio.Scanner
	ready   chan struct{}
	lines   chan string
	err     error
}

// NewLineReader starts a reader over r. Call Next to request each line.
func NewLineReader(r io.Reader) *LineReader {
	lr := &LineReader{
		scanner: bufio.NewScanner(r),
		ready:   make(chan struct{}, 1),
		lines:   make(chan string),
	}
	lr.scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	go lr.loop()
	return lr
}

func (lr *LineReader) loop() {
	defer close(lr.lines)
	for range lr.ready {
		if !lr.scanner.Scan() {
			lr.err = lr.scanner.Err()
			return
		}
		lr.lines <- lr.scanner.Text()
	}
}

// Next requests the next line. Extra requests before a line arrives are
// coalesced.
func (lr *LineReader) Next() {
	select {
	case lr.ready <- struct{}{}:
	default:
	}
}

// Lines delivers requested lines. It is closed at end of input.
func (lr *LineReader) Lines() <-chan string {
	return lr.lines
}

// Err returns the read error, if any, once Lines is closed.
func (lr *LineReader) Err() error {
	return lr.err
}
