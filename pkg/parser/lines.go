package parser

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/unicode"
)

// MaxLineSize bounds a single log line, excluding its terminator.
const MaxLineSize = 1024 * 1024

// LineReader reads newline-terminated lines and decodes each one as UTF-8,
// replacing invalid bytes with U+FFFD. A line longer than the limit is
// consumed up to its newline and reported as too long instead of failing
// the read.
type LineReader struct {
	r        *bufio.Reader
	dec      *encoding.Decoder
	max      int
	buf      []byte
	consumed int64
}

// NewLineReader returns a LineReader over r with the MaxLineSize limit.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{
		r:   bufio.NewReaderSize(r, 64*1024),
		dec: unicode.UTF8.NewDecoder(),
		max: MaxLineSize,
	}
}

// Consumed returns the raw bytes consumed by the lines returned so far.
func (lr *LineReader) Consumed() int64 {
	return lr.consumed
}

// Next returns the next line without its "\n" or "\r\n" terminator.
// tooLong is set when the line exceeded the limit; its text is then empty.
// io.EOF is returned once no bytes remain.
func (lr *LineReader) Next() (line string, tooLong bool, err error) {
	lr.buf = lr.buf[:0]
	read := 0
	for {
		frag, err := lr.r.ReadSlice('\n')
		read += len(frag)
		lr.consumed += int64(len(frag))
		if !tooLong {
			lr.buf = append(lr.buf, frag...)
			// +2 leaves room for "\r\n".
			if len(lr.buf) > lr.max+2 {
				tooLong = true
				lr.buf = lr.buf[:0]
			}
		}

		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if errors.Is(err, io.EOF) {
			if read == 0 {
				return "", false, io.EOF
			}
		} else if err != nil {
			return "", false, err
		}
		break
	}

	if tooLong {
		return "", true, nil
	}
	raw := bytes.TrimSuffix(lr.buf, []byte{'\n'})
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	if len(raw) > lr.max {
		return "", true, nil
	}
	return lr.decode(raw), false, nil
}

func (lr *LineReader) decode(raw []byte) string {
	out, err := lr.dec.Bytes(raw)
	if err != nil {
		return strings.ToValidUTF8(string(raw), "\uFFFD")
	}
	return string(out)
}
