package model

import (
	"encoding/binary"
	"strings"
	"unicode/utf8"
)

// DecodePublish decodes the variable header and payload of a PUBLISH.
// flags is the low nibble of the fixed header. Topic and payload are never rejected for
// their content: invalid UTF-8 is replaced. A body too short for its declared topic is ErrMalformedPacket.
func DecodePublish(flags byte, body []byte) (PubMessage, error) {
	m := PubMessage{
		QoS:    (flags & 0x06) >> 1,
		Retain: flags&0x01 > 0,
		Dup:    flags&0x08 > 0,
	}

	if len(body) < 2 {
		return m, ErrMalformedPacket
	}

	tLen := int(binary.BigEndian.Uint16(body))
	if len(body) < 2+tLen {
		return m, ErrMalformedPacket
	}
	m.Topic = lossyString(body[2 : 2+tLen])

	rest := body[2+tLen:]
	if m.QoS > 0 { // packet identifier
		if len(rest) < 2 {
			return m, ErrMalformedPacket
		}
		rest = rest[2:]
	}
	m.Payload = lossyString(rest)

	return m, nil
}

// ParseConnack checks a complete CONNACK as read off the wire.
func ParseConnack(b []byte) (sessionPresent bool, code byte, err error) {
	if len(b) != ConnackLen || b[0] != CONNACK || b[1] != 2 {
		return false, 0, ErrMalformedPacket
	}
	return b[2]&0x01 > 0, b[3], nil
}

// ParseSuback checks a single-filter SUBACK as read off the wire.
func ParseSuback(b []byte) (packetID uint16, granted byte, err error) {
	if len(b) != SubackLen || b[0] != SUBACK || b[1] != 3 {
		return 0, 0, ErrMalformedPacket
	}
	return binary.BigEndian.Uint16(b[2:]), b[4], nil
}

// lossyString replaces every maximal invalid subsequence of b with one U+FFFD.
func lossyString(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}

	var sb strings.Builder
	sb.Grow(len(b) + 8)
	for len(b) > 0 {
		r, n := utf8.DecodeRune(b)
		if r == utf8.RuneError && n == 1 {
			sb.WriteRune(utf8.RuneError)
			b = b[invalidLen(b):]
			continue
		}
		sb.Write(b[:n])
		b = b[n:]
	}
	return sb.String()
}

// invalidLen returns how many bytes of the invalid sequence at the start of b
// form a truncated but otherwise well formed prefix. That is at least 1.
func invalidLen(b []byte) int {
	var n int
	lo, hi := byte(0x80), byte(0xBF)
	switch c := b[0]; {
	case c >= 0xC2 && c <= 0xDF:
		n = 2
	case c == 0xE0:
		n, lo = 3, 0xA0
	case c == 0xED:
		n, hi = 3, 0x9F
	case c >= 0xE1 && c <= 0xEF:
		n = 3
	case c == 0xF0:
		n, lo = 4, 0x90
	case c == 0xF4:
		n, hi = 4, 0x8F
	case c >= 0xF1 && c <= 0xF3:
		n = 4
	default:
		return 1
	}

	if len(b) < 2 || b[1] < lo || b[1] > hi {
		return 1
	}
	i := 2
	for i < n && i < len(b) && b[i] >= 0x80 && b[i] <= 0xBF {
		i++
	}
	return i
}
