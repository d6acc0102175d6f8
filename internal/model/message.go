package model

// PubMessage is a PUBLISH received from the server.
type PubMessage struct {
	Topic   string
	Payload string // lossily decoded, invalid UTF-8 replaced with U+FFFD
	QoS     uint8
	Retain  bool
	Dup     bool
}
