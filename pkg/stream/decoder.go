package stream

import (
	"bytes"
	"strings"
)

// Decoder splits a raw byte stream into newline-delimited frames. A partial
// trailing line is carried over between calls, so a frame may arrive across
// any number of chunks.
type Decoder struct {
	buf []byte
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode appends chunk to the carry-over buffer and returns every complete
// frame now available, in arrival order. Whitespace-only lines are dropped.
func (d *Decoder) Decode(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		idx := bytes.IndexByte(d.buf, '\n')
		if idx < 0 {
			break
		}

		line := d.buf[:idx]
		d.buf = d.buf[idx+1:]

		line = bytes.TrimSuffix(line, []byte("\r"))
		if strings.TrimSpace(string(line)) == "" {
			continue
		}

		frame := make([]byte, len(line))
		copy(frame, line)
		frames = append(frames, frame)
	}

	// keep the remainder in a fresh slice so frames never alias it
	if len(d.buf) > 0 {
		rest := make([]byte, len(d.buf))
		copy(rest, d.buf)
		d.buf = rest
	} else {
		d.buf = nil
	}

	return frames
}
