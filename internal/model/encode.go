package model

var (
	protocolName = []byte{0, 4, 'M', 'Q', 'T', 'T'}

	pingreqPacket    = []byte{PINGREQ, 0}
	disconnectPacket = []byte{DISCONNECT, 0}
)

// ConnectPacket builds a clean session CONNECT with no will or credentials.
// A keepAlive of 0 uses DefaultKeepAlive.
func ConnectPacket(clientID string, keepAlive uint16) ([]byte, error) {
	if len(clientID) > maxStringLen {
		return nil, ErrStringTooLong
	}
	if keepAlive == 0 {
		keepAlive = DefaultKeepAlive
	}

	vh := make([]byte, 0, 12+len(clientID))
	vh = append(vh, protocolName...)
	vh = append(vh, ProtocolLevel, CleanSession, uint8(keepAlive>>8), uint8(keepAlive))
	vh = appendString(vh, clientID)

	return withFixedHeader(CONNECT, vh)
}

// PublishPacket builds a PUBLISH with no packet identifier, so only QoS 0 is meaningful on the wire.
func PublishPacket(topic string, message []byte, qos uint8) ([]byte, error) {
	if qos > 2 {
		return nil, ErrInvalidQoS
	}
	if len(topic) > maxStringLen {
		return nil, ErrStringTooLong
	}

	vh := make([]byte, 0, 2+len(topic)+len(message))
	vh = appendString(vh, topic)
	vh = append(vh, message...)

	return withFixedHeader(PUBLISH|qos<<1, vh)
}

// SubscribePacket builds a SUBSCRIBE with a single topic filter.
func SubscribePacket(packetID uint16, topic string, qos uint8) ([]byte, error) {
	if qos > 2 {
		return nil, ErrInvalidQoS
	}
	if len(topic) > maxStringLen {
		return nil, ErrStringTooLong
	}

	vh := make([]byte, 0, 5+len(topic))
	vh = append(vh, uint8(packetID>>8), uint8(packetID))
	vh = appendString(vh, topic)
	vh = append(vh, qos)

	return withFixedHeader(SUBSCRIBESend, vh)
}

func PingreqPacket() []byte {
	return append([]byte(nil), pingreqPacket...)
}

func DisconnectPacket() []byte {
	return append([]byte(nil), disconnectPacket...)
}

// withFixedHeader prefixes vh with the control byte and the varint length of vh.
// vh must hold the complete variable header and payload.
func withFixedHeader(control byte, vh []byte) ([]byte, error) {
	if len(vh) > MaxRemainingLength {
		return nil, ErrPacketTooLarge
	}

	p := make([]byte, 0, 1+LengthToNumberOfVariableLengthBytes(len(vh))+len(vh))
	p = append(p, control)
	p = VariableLengthEncode(p, len(vh))
	return append(p, vh...), nil
}

func appendString(b []byte, s string) []byte {
	b = append(b, uint8(len(s)>>8), uint8(len(s)))
	return append(b, s...)
}
