package message_test

import (
	"callnotify/types/message"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	data, err := message.Encode(message.NO_ANSWER, "u1", "u42")
	require.NoError(t, err)
	assert.JSONEq(t, `{"action":"NO_ANSWER","from_user_id":"u1","to_user_id":"u42"}`, string(data))

	_, err = message.Encode("RING", "u1", "u42")
	assert.ErrorIs(t, err, message.ErrMalformedMessage)

	_, err = message.Encode(message.BUSY, "u1", "u1")
	assert.ErrorIs(t, err, message.ErrMalformedMessage)
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		want    message.Message
		wantErr bool
	}{
		{
			name: "given a cancel message when decoded then return message",
			data: `{"action":"CANCEL","from_user_id":"u7","to_user_id":"me"}`,
			want: message.Message{Action: message.CANCEL, FromUserID: "u7", ToUserID: "me"},
		},
		{
			name: "given extra fields when decoded then ignore them",
			data: `{"action":"ANSWER","from_user_id":"u7","to_user_id":"me","sdp":"x"}`,
			want: message.Message{Action: message.ANSWER, FromUserID: "u7", ToUserID: "me"},
		},
		{
			name:    "given unknown action when decoded then return error",
			data:    `{"action":"INVITE","from_user_id":"u7","to_user_id":"me"}`,
			wantErr: true,
		},
		{
			name:    "given lower case action when decoded then return error",
			data:    `{"action":"busy","from_user_id":"u7","to_user_id":"me"}`,
			wantErr: true,
		},
		{
			name:    "given missing from when decoded then return error",
			data:    `{"action":"DECLINE","to_user_id":"me"}`,
			wantErr: true,
		},
		{
			name:    "given missing to when decoded then return error",
			data:    `{"action":"DECLINE","from_user_id":"u7"}`,
			wantErr: true,
		},
		{
			name:    "given same from and to when decoded then return error",
			data:    `{"action":"DECLINE","from_user_id":"me","to_user_id":"me"}`,
			wantErr: true,
		},
		{
			name:    "given invalid json when decoded then return error",
			data:    `{"action":`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := message.Decode([]byte(tt.data))
			if tt.wantErr {
				assert.ErrorIs(t, err, message.ErrMalformedMessage)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecodeInvite(t *testing.T) {
	inv, err := message.DecodeInvite([]byte(`{"from_user_id":"u42","to_user_id":"me"}`))
	require.NoError(t, err)
	assert.Equal(t, message.Invite{FromUserID: "u42", ToUserID: "me"}, inv)

	_, err = message.DecodeInvite([]byte(`{"from_user_id":"u42"}`))
	assert.ErrorIs(t, err, message.ErrMalformedMessage)

	data, err := message.EncodeInvite("u42", "me")
	require.NoError(t, err)
	assert.JSONEq(t, `{"from_user_id":"u42","to_user_id":"me"}`, string(data))
}

func TestReverse(t *testing.T) {
	msg := message.Message{Action: message.ANSWER, FromUserID: "me", ToUserID: "u7"}
	assert.Equal(t, message.Message{Action: message.ANSWER, FromUserID: "u7", ToUserID: "me"}, msg.Reverse())
}
