package socketio

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// PacketCode selects the kind of a wire packet.
type PacketCode uint8

const (
	CodeDisconnect PacketCode = iota
	CodeConnect
	CodeHeartbeat
	CodeMessage
	CodeJSON
	CodeEvent
	CodeAck
	CodeError
)

var codeNames = [...]string{
	CodeDisconnect: "disconnect",
	CodeConnect:    "connect",
	CodeHeartbeat:  "heartbeat",
	CodeMessage:    "message",
	CodeJSON:       "json",
	CodeEvent:      "event",
	CodeAck:        "ack",
	CodeError:      "error",
}

func (c PacketCode) String() string {
	if int(c) < len(codeNames) {
		return codeNames[c]
	}
	return "code(" + strconv.Itoa(int(c)) + ")"
}

// ackMarker is appended to a message id when the sender wants a reply.
const ackMarker = "+"

// Packet is a single frame on the wire: code:ackID:path:data.
type Packet struct {
	Code  PacketCode
	AckID string
	Path  string
	Data  string
}

// WantsAck reports whether the sender asked for an acknowledgment.
func (p Packet) WantsAck() bool {
	return p.AckID != ""
}

// Encode serializes p. All four fields are always written so that empty
// optional fields survive a round trip.
func Encode(p Packet) string {
	var sb strings.Builder
	sb.Grow(len(p.AckID) + len(p.Path) + len(p.Data) + 4)
	sb.WriteString(strconv.Itoa(int(p.Code)))
	sb.WriteByte(':')
	sb.WriteString(p.AckID)
	sb.WriteByte(':')
	sb.WriteString(p.Path)
	sb.WriteByte(':')
	sb.WriteString(p.Data)
	return sb.String()
}

// Decode parses a raw frame. The payload may itself contain colons; only
// the first three separate fields.
func Decode(raw string) (Packet, error) {
	parts := strings.SplitN(raw, ":", 4)

	var p Packet
	switch len(parts) {
	case 4:
		p.AckID, p.Path, p.Data = parts[1], parts[2], parts[3]
	case 3:
		p.AckID, p.Path = parts[1], parts[2]
	case 1:
	default:
		return Packet{}, &PacketFormatError{
			Raw:    raw,
			Reason: "unexpected field count " + strconv.Itoa(len(parts)),
		}
	}

	code, err := strconv.ParseUint(parts[0], 10, 8)
	if err != nil {
		return Packet{}, &PacketFormatError{Raw: raw, Reason: "bad packet code", Err: err}
	}
	p.Code = PacketCode(code)

	return p, nil
}

// --- Payload formats ---

// eventPayload is the body of an event packet.
type eventPayload struct {
	Name string `json:"name"`
	Args []any  `json:"args"`
}

// EncodeEvent builds the JSON body of an event packet.
func EncodeEvent(name string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	return marshalJSON(eventPayload{Name: name, Args: args})
}

// DecodeEvent parses the JSON body of an event packet. The name is
// required; args default to empty.
func DecodeEvent(data string) (string, []any, error) {
	var body struct {
		Name *string `json:"name"`
		Args []any   `json:"args"`
	}
	if err := json.Unmarshal([]byte(data), &body); err != nil {
		return "", nil, &PacketFormatError{Raw: data, Reason: "bad event body", Err: err}
	}
	if body.Name == nil {
		return "", nil, &PacketFormatError{Raw: data, Reason: "event has no name"}
	}
	if body.Args == nil {
		body.Args = []any{}
	}
	return *body.Name, body.Args, nil
}

// ParseAck splits an acknowledgment payload of the form id+[args].
func ParseAck(data string) (uint64, []any, error) {
	idPart, argPart, _ := strings.Cut(data, ackMarker)

	id, err := strconv.ParseUint(idPart, 10, 64)
	if err != nil {
		return 0, nil, &PacketFormatError{Raw: data, Reason: "bad message id", Err: err}
	}

	var args []any
	if argPart != "" {
		if err := json.Unmarshal([]byte(argPart), &args); err != nil {
			return 0, nil, &PacketFormatError{Raw: data, Reason: "bad acknowledgment arguments", Err: err}
		}
	}
	if args == nil {
		args = []any{}
	}
	return id, args, nil
}

// FormatAck builds the payload replying to ackID. The request marker is
// stripped and the arguments are only appended when there are any.
func FormatAck(ackID string, args []any) (string, error) {
	id := strings.TrimSuffix(ackID, ackMarker)
	if len(args) == 0 {
		return id, nil
	}
	encoded, err := marshalJSON(args)
	if err != nil {
		return "", err
	}
	return id + ackMarker + encoded, nil
}

// ParseError splits an error payload of the form reason+advice.
func ParseError(data string) (reason, advice string) {
	reason, advice, _ = strings.Cut(data, ackMarker)
	return reason, advice
}

// marshalJSON encodes v without HTML escaping and without the trailing
// newline json.Encoder adds.
func marshalJSON(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
