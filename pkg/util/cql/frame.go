// Copyright (c) 2024 ScyllaDB.

package cql

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// Ref: https://github.com/apache/cassandra/blob/f278f6774fc76465c182041e081982105c3e7dbb/doc/native_protocol_v4.spec
const (
	HeaderLen = 9

	ResponseFlag = 0x80

	OpcodeError = 0x00
	OpcodeEvent = 0x0C
)

type Header struct {
	Version byte
	Flags   byte
	Stream  int16
	Opcode  byte
	Length  uint32
}

// IsResponse reports whether the header direction bit marks a server response.
func (h Header) IsResponse() bool {
	return h.Version&ResponseFlag != 0
}

// ProtocolVersion returns the version with the direction bit cleared.
func (h Header) ProtocolVersion() byte {
	return h.Version &^ ResponseFlag
}

// FrameParser reads native protocol notation from a buffer. Every read
// fails with an error when the buffer is shorter than the value it reads.
type FrameParser struct {
	buf *bytes.Buffer
}

func NewFrameParser(buf *bytes.Buffer) *FrameParser {
	return &FrameParser{
		buf: buf,
	}
}

func (fp *FrameParser) Len() int {
	return fp.buf.Len()
}

func (fp *FrameParser) readBytes(n int) ([]byte, error) {
	if fp.buf.Len() < n {
		return nil, fmt.Errorf("can't read %d bytes from buffer: only %d bytes left", n, fp.buf.Len())
	}
	return fp.buf.Next(n), nil
}

func (fp *FrameParser) ReadHeader() (Header, error) {
	p, err := fp.readBytes(HeaderLen)
	if err != nil {
		return Header{}, fmt.Errorf("can't read frame header: %w", err)
	}

	return Header{
		Version: p[0],
		Flags:   p[1],
		Stream:  int16(binary.BigEndian.Uint16(p[2:4])),
		Opcode:  p[4],
		Length:  binary.BigEndian.Uint32(p[5:9]),
	}, nil
}

func (fp *FrameParser) SkipHeader() error {
	_, err := fp.readBytes(HeaderLen)
	return err
}

func (fp *FrameParser) ReadShort() (uint16, error) {
	p, err := fp.readBytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(p), nil
}

func (fp *FrameParser) ReadString() (string, error) {
	n, err := fp.ReadShort()
	if err != nil {
		return "", fmt.Errorf("can't read string length: %w", err)
	}

	p, err := fp.readBytes(int(n))
	if err != nil {
		return "", fmt.Errorf("can't read string: %w", err)
	}

	return string(p), nil
}

func (fp *FrameParser) ReadStringList() ([]string, error) {
	n, err := fp.ReadShort()
	if err != nil {
		return nil, fmt.Errorf("can't read string list length: %w", err)
	}

	l := make([]string, 0, n)
	for i := uint16(0); i < n; i++ {
		s, err := fp.ReadString()
		if err != nil {
			return nil, fmt.Errorf("can't read string list element %d: %w", i, err)
		}
		l = append(l, s)
	}

	return l, nil
}

func (fp *FrameParser) ReadStringMultiMap() (map[string][]string, error) {
	n, err := fp.ReadShort()
	if err != nil {
		return nil, fmt.Errorf("can't read multimap length: %w", err)
	}

	m := make(map[string][]string, n)
	for i := uint16(0); i < n; i++ {
		k, err := fp.ReadString()
		if err != nil {
			return nil, fmt.Errorf("can't read multimap key: %w", err)
		}

		v, err := fp.ReadStringList()
		if err != nil {
			return nil, fmt.Errorf("can't read multimap value of %q: %w", k, err)
		}

		m[k] = v
	}

	return m, nil
}
