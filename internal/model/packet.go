package model

import (
	"errors"
	"io"
	"strconv"
)

// Control Packets
const (
	CONNECT     = 1 << 4
	CONNACK     = 2 << 4
	PUBLISH     = 3 << 4
	PUBACK      = 4 << 4
	PUBREC      = 5 << 4
	PUBREL      = 6 << 4
	PUBCOMP     = 7 << 4
	SUBSCRIBE   = 8 << 4
	SUBACK      = 9 << 4
	UNSUBSCRIBE = 10 << 4
	UNSUBACK    = 11 << 4
	PINGREQ     = 12 << 4
	PINGRESP    = 13 << 4
	DISCONNECT  = 14 << 4

	SUBSCRIBESend = SUBSCRIBE | 2 // [MQTT-3.8.1-1]
)

// CONNACK Return Codes
const (
	Accepted                    = 0
	UnacceptableProtocolVersion = 1
	IdentifierRejected          = 2
	ServerUnavailable           = 3
	BadUserNameOrPassword       = 4
	NotAuthorized               = 5
)

const (
	ProtocolLevel    = 4
	CleanSession     = 0x02
	DefaultKeepAlive = 60 // seconds

	ConnackLen = 4
	SubackLen  = 5

	MaxRemainingLength = 268435455
	maxStringLen       = 65535
)

var (
	ErrMalformedLength = errors.New("malformed remaining length")
	ErrMalformedPacket = errors.New("malformed packet")
	ErrStringTooLong   = errors.New("string exceeds 65535 bytes")
	ErrInvalidQoS      = errors.New("invalid QoS")
	ErrPacketTooLarge  = errors.New("remaining length exceeds 268435455")
)

// ConnectionRefusedError is returned when the server answers CONNECT with a non-zero return code.
type ConnectionRefusedError struct {
	Code byte
}

func (e *ConnectionRefusedError) Error() string {
	return "connection refused: " + ConnackCodeText(e.Code) + " (" + strconv.Itoa(int(e.Code)) + ")"
}

func ConnackCodeText(code byte) string {
	switch code {
	case Accepted:
		return "accepted"
	case UnacceptableProtocolVersion:
		return "unacceptable protocol version"
	case IdentifierRejected:
		return "identifier rejected"
	case ServerUnavailable:
		return "server unavailable"
	case BadUserNameOrPassword:
		return "bad user name or password"
	case NotAuthorized:
		return "not authorized"
	default:
		return "unknown return code"
	}
}

// PacketName returns the control packet name for a fixed header byte.
func PacketName(b byte) string {
	switch b & 0xF0 {
	case CONNECT:
		return "CONNECT"
	case CONNACK:
		return "CONNACK"
	case PUBLISH:
		return "PUBLISH"
	case PUBACK:
		return "PUBACK"
	case PUBREC:
		return "PUBREC"
	case PUBREL:
		return "PUBREL"
	case PUBCOMP:
		return "PUBCOMP"
	case SUBSCRIBE:
		return "SUBSCRIBE"
	case SUBACK:
		return "SUBACK"
	case UNSUBSCRIBE:
		return "UNSUBSCRIBE"
	case UNSUBACK:
		return "UNSUBACK"
	case PINGREQ:
		return "PINGREQ"
	case PINGRESP:
		return "PINGRESP"
	case DISCONNECT:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// VariableLengthEncode appends the remaining length l to packet.
// l must be within 0 and MaxRemainingLength; anything else panics.
func VariableLengthEncode(packet []byte, l int) []byte {
	if l < 0 || l > MaxRemainingLength {
		panic("model: remaining length out of range")
	}
	for {
		eb := l % 128
		l /= 128
		if l > 0 {
			eb |= 128
		}
		packet = append(packet, byte(eb))
		if l <= 0 {
			break
		}
	}
	return packet
}

func LengthToNumberOfVariableLengthBytes(l int) int {
	switch {
	case l < 128:
		return 1
	case l < 16384:
		return 2
	case l < 2097152:
		return 3
	default:
		return 4
	}
}

// ReadVariableLength consumes exactly the bytes of a remaining length field from r.
// At most 4 bytes are read. A 4th byte with the continuation bit set yields ErrMalformedLength.
func ReadVariableLength(r io.ByteReader) (int, error) {
	l, mul := 0, 1
	for i := 0; i < 4; i++ {
		b, err := r.ReadByte()
		if err != nil {
			if err == io.EOF { // fixed header byte was already read
				err = io.ErrUnexpectedEOF
			}
			return 0, err
		}

		l += int(b&127) * mul
		if b&128 == 0 {
			return l, nil
		}
		mul *= 128
	}

	return 0, ErrMalformedLength
}
