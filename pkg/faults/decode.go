package faults

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// ErrUndecodable is returned when no configured encoding accepts a file.
var ErrUndecodable = errors.New("no supported encoding could decode file")

// Encoding decodes a whole database file or reports that it cannot.
type Encoding struct {
	Name   string
	Decode func([]byte) (string, bool)
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// UTF8 accepts only valid UTF-8. A leading byte order mark is dropped.
var UTF8 = Encoding{
	Name: "utf-8",
	Decode: func(data []byte) (string, bool) {
		data = bytes.TrimPrefix(data, utf8BOM)
		if !utf8.Valid(data) {
			return "", false
		}
		return string(data), true
	},
}

// Windows1252 rejects bytes that the code page leaves undefined and the C1
// control range, which in practice means the file is not cp1252 text.
var Windows1252 = Encoding{
	Name:   "windows-1252",
	Decode: strictCharmap(charmap.Windows1252),
}

// ISO88591 maps every byte and therefore always succeeds.
var ISO88591 = Encoding{
	Name: "iso-8859-1",
	Decode: func(data []byte) (string, bool) {
		var b strings.Builder
		b.Grow(len(data))
		for _, c := range data {
			b.WriteRune(charmap.ISO8859_1.DecodeByte(c))
		}
		return b.String(), true
	},
}

// DefaultEncodings are tried in order.
var DefaultEncodings = []Encoding{UTF8, Windows1252, ISO88591}

func strictCharmap(cm *charmap.Charmap) func([]byte) (string, bool) {
	return func(data []byte) (string, bool) {
		var b strings.Builder
		b.Grow(len(data))
		for _, c := range data {
			r := cm.DecodeByte(c)
			if r == utf8.RuneError || (r >= 0x80 && r <= 0x9F) {
				return "", false
			}
			b.WriteRune(r)
		}
		return b.String(), true
	}
}

// decode returns the text and the name of the first encoding that accepted it.
func decode(data []byte, encodings []Encoding) (string, string, error) {
	for _, enc := range encodings {
		if text, ok := enc.Decode(data); ok {
			return text, enc.Name, nil
		}
	}
	names := make([]string, len(encodings))
	for i, enc := range encodings {
		names[i] = enc.Name
	}
	return "", "", fmt.Errorf("%w (tried %s)", ErrUndecodable, strings.Join(names, ", "))
}
