package protocol_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matchserver/internal/protocol"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
		wantCmd string
	}{
		{
			name:    "valid envelope",
			raw:     `{"msg_id":"m1","cmd":"match.start","data":{"mode":"1v1"}}`,
			wantCmd: "match.start",
		},
		{
			name:    "valid envelope without data",
			raw:     `{"msg_id":"m2","cmd":"sys.ping"}`,
			wantCmd: "sys.ping",
		},
		{
			name:    "not json",
			raw:     `this is not json`,
			wantErr: true,
		},
		{
			name:    "missing msg_id",
			raw:     `{"cmd":"match.start"}`,
			wantErr: true,
		},
		{
			name:    "missing cmd",
			raw:     `{"msg_id":"m3"}`,
			wantErr: true,
		},
		{
			name:    "wrong field types",
			raw:     `{"msg_id":17,"cmd":true}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := protocol.Decode([]byte(tt.raw))
			if tt.wantErr {
				require.ErrorIs(t, err, protocol.ErrMalformedEnvelope)
				assert.Nil(t, env)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantCmd, env.Cmd)
			assert.NotEmpty(t, env.MsgID)
		})
	}
}

func TestEncodeReply(t *testing.T) {
	raw, err := protocol.Encode(protocol.Reply("m9", map[string]string{"status": "queued"}))
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(raw, &got))
	assert.Equal(t, "m9", got["msg_id"])
	assert.Equal(t, float64(0), got["code"])
	assert.NotContains(t, got, "error")
}

func TestFailUsesPlaceholderMsgID(t *testing.T) {
	env := protocol.Fail("", protocol.CodeMalformedEnvelope, "malformed envelope")
	assert.Equal(t, "unknown", env.MsgID)
	assert.Equal(t, protocol.CodeMalformedEnvelope, env.Code)
	assert.Equal(t, "malformed envelope", env.Error)
}

func TestPushGeneratesMsgID(t *testing.T) {
	a := protocol.Push(protocol.PushMatchFound, nil)
	b := protocol.Push(protocol.PushMatchFound, nil)

	assert.NotEmpty(t, a.MsgID)
	assert.NotEqual(t, a.MsgID, b.MsgID)
	assert.Equal(t, protocol.CodeOK, a.Code)
	assert.Equal(t, protocol.PushMatchFound, a.Event)
}
