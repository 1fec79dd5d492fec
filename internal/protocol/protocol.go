package protocol

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

// Client → server commands.
const (
	CmdAuthLogin   = "auth.login"
	CmdMatchStart  = "match.start"
	CmdMatchCancel = "match.cancel"
	CmdSysPing     = "sys.ping"
)

// Server → client push events, carried inside the data payload of an
// unsolicited envelope.
const (
	PushMatchFound  = "match.found"
	PushMatchClosed = "match.closed"
	PushWelcome     = "sys.welcome"
)

// Result codes for S2C envelopes. Zero is success, everything else maps
// to one taxonomy entry.
const (
	CodeOK                = 0
	CodeAuthFailed        = 1001
	CodeMalformedEnvelope = 1002
	CodeUnknownCommand    = 1003
	CodeInvalidMode       = 1004
	CodeAlreadyQueued     = 1005
	CodeAlreadyInRoom     = 1006
	CodeNotAuthenticated  = 1007
)

var ErrMalformedEnvelope = errors.New("protocol: malformed envelope")

// ClientEnvelope is the C2S wire message. MsgID is a client-generated
// correlation token echoed back on the direct reply.
type ClientEnvelope struct {
	MsgID string          `json:"msg_id"`
	Cmd   string          `json:"cmd"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// ServerEnvelope is the S2C wire message. For pushes MsgID is
// server-generated and Event names the push.
type ServerEnvelope struct {
	MsgID string `json:"msg_id"`
	Code  int    `json:"code"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// Decode parses a C2S envelope. Unparseable input or a missing msg_id/cmd
// yields ErrMalformedEnvelope.
func Decode(raw []byte) (*ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, ErrMalformedEnvelope
	}
	if env.MsgID == "" || env.Cmd == "" {
		return nil, ErrMalformedEnvelope
	}
	return &env, nil
}

// Encode serializes an S2C envelope. Encoding a well-formed in-memory
// envelope never fails; a marshal error here means a non-serializable
// payload was handed in and is reported as-is.
func Encode(env *ServerEnvelope) ([]byte, error) {
	return json.Marshal(env)
}

// Reply builds the direct response to a C2S envelope.
func Reply(msgID string, data any) *ServerEnvelope {
	return &ServerEnvelope{MsgID: msgID, Code: CodeOK, Data: data}
}

// Fail builds an error response to a C2S envelope.
func Fail(msgID string, code int, errMsg string) *ServerEnvelope {
	if msgID == "" {
		msgID = "unknown"
	}
	return &ServerEnvelope{MsgID: msgID, Code: code, Error: errMsg}
}

// Push builds an unsolicited S2C envelope with a fresh server-side id.
func Push(event string, data any) *ServerEnvelope {
	return &ServerEnvelope{MsgID: uuid.NewString(), Code: CodeOK, Event: event, Data: data}
}
