package protocol

// ControlMessage is the closed set of control-plane messages that share the
// video socket. On the wire they are bare ASCII strings with no header; a
// datagram is classified exactly once, at the socket boundary.
type ControlMessage uint8

const (
	ControlConnect ControlMessage = iota + 1
	ControlConnected
	ControlDisconnect
	ControlPing
	ControlPong
	ControlStreamEnd
)

var controlWire = map[ControlMessage]string{
	ControlConnect:    "CONNECT",
	ControlConnected:  "CONNECTED",
	ControlDisconnect: "DISCONNECT",
	ControlPing:       "PING",
	ControlPong:       "PONG",
	ControlStreamEnd:  "STREAM_END",
}

// ParseControl classifies a datagram payload. The second return value is
// false for anything that is not exactly one of the control strings —
// including every video chunk, whose 8-byte binary header never spells one.
func ParseControl(data []byte) (ControlMessage, bool) {
	switch string(data) {
	case "CONNECT":
		return ControlConnect, true
	case "CONNECTED":
		return ControlConnected, true
	case "DISCONNECT":
		return ControlDisconnect, true
	case "PING":
		return ControlPing, true
	case "PONG":
		return ControlPong, true
	case "STREAM_END":
		return ControlStreamEnd, true
	}
	return 0, false
}

// Bytes returns the wire representation of the control message.
func (m ControlMessage) Bytes() []byte {
	return []byte(controlWire[m])
}

func (m ControlMessage) String() string {
	if s, ok := controlWire[m]; ok {
		return s
	}
	return "UNKNOWN"
}
