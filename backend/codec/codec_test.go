package codec

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/adwski/webrtc-signal-relay/backend/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    model.Request
		wantErr string
	}{
		{
			name: "join",
			raw:  `{"type":"join","body":{"channelName":"c1","userId":"alice"}}`,
			want: model.Request{Type: model.EventJoin, ChannelName: "c1", UserID: "alice"},
		},
		{
			name: "offer keeps sdp verbatim",
			raw:  `{"type":"send_offer","body":{"channelName":"c1","userId":"bob","sdp":{"type":"offer","sdp":"v=0"}}}`,
			want: model.Request{
				Type:        model.EventOffer,
				ChannelName: "c1",
				UserID:      "bob",
				Payload:     json.RawMessage(`{"type":"offer","sdp":"v=0"}`),
			},
		},
		{
			name: "ice candidate",
			raw:  `{"type":"send_ice_candidate","body":{"channelName":"c1","userId":"bob","candidate":{"candidate":"candidate:1"}}}`,
			want: model.Request{
				Type:        model.EventICECandidate,
				ChannelName: "c1",
				UserID:      "bob",
				Payload:     json.RawMessage(`{"candidate":"candidate:1"}`),
			},
		},
		{
			name: "candidate is ignored for offer",
			raw:  `{"type":"send_offer","body":{"channelName":"c1","userId":"bob","candidate":{}}}`,
			want: model.Request{Type: model.EventOffer, ChannelName: "c1", UserID: "bob"},
		},
		{
			name: "null sdp is absent",
			raw:  `{"type":"send_answer","body":{"channelName":"c1","userId":"bob","sdp":null}}`,
			want: model.Request{Type: model.EventAnswer, ChannelName: "c1", UserID: "bob"},
		},
		{
			name: "unknown type is decoded",
			raw:  `{"type":"dance","body":{"channelName":"c1","userId":"bob"}}`,
			want: model.Request{Type: "dance", ChannelName: "c1", UserID: "bob"},
		},
		{
			name:    "not json",
			raw:     `{"type":`,
			wantErr: ReasonInvalidJSON,
		},
		{
			name:    "body is not an object",
			raw:     `{"type":"join","body":"c1"}`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "channel name is not a string",
			raw:     `{"type":"join","body":{"channelName":1,"userId":"alice"}}`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "user id is an object",
			raw:     `{"type":"join","body":{"channelName":"c1","userId":{}}}`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "type is a number",
			raw:     `{"type":7,"body":{"channelName":"c1","userId":"alice"}}`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "top level array",
			raw:     `[1,2]`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "trailing garbage",
			raw:     `{"type":"join","body":{"channelName":"c1","userId":"alice"}} x`,
			wantErr: ReasonInvalidJSON,
		},
		{
			name:    "missing user id",
			raw:     `{"type":"join","body":{"channelName":"c1"}}`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "missing channel name",
			raw:     `{"type":"join","body":{"userId":"alice"}}`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "missing body",
			raw:     `{"type":"join"}`,
			wantErr: ReasonMissingFields,
		},
		{
			name:    "missing type",
			raw:     `{"body":{"channelName":"c1","userId":"alice"}}`,
			wantErr: ReasonMissingFields,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := Decode([]byte(tt.raw))
			if tt.wantErr != "" {
				var decErr *DecodeError
				require.True(t, errors.As(err, &decErr))
				assert.Equal(t, tt.wantErr, decErr.Reason)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want.Type, req.Type)
			assert.Equal(t, tt.want.ChannelName, req.ChannelName)
			assert.Equal(t, tt.want.UserID, req.UserID)
			if tt.want.Payload == nil {
				assert.Nil(t, req.Payload)
			} else {
				assert.JSONEq(t, string(tt.want.Payload), string(req.Payload))
			}
		})
	}
}

func TestDecodeErrorUnwrap(t *testing.T) {
	_, err := Decode([]byte("nope"))
	assert.ErrorIs(t, err, ErrInvalidJSON)

	_, err = Decode([]byte(`{"type":"quit","body":{}}`))
	assert.ErrorIs(t, err, ErrMissingFields)

	_, err = Decode([]byte(`{"type":"quit","body":"c1"}`))
	assert.ErrorIs(t, err, ErrMissingFields)
	assert.NotErrorIs(t, err, ErrInvalidJSON)
}

func TestEncode(t *testing.T) {
	b, err := Encode(model.EventOfferReceived, json.RawMessage(`{"type":"offer","sdp":"v=0"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"offer_sdp_recieved","body":{"type":"offer","sdp":"v=0"}}`, string(b))

	b, err = Encode(model.EventJoined, model.Joined{
		ChannelName: "c1",
		UserID:      "alice",
		Users:       []string{"alice"},
		Message:     "hi",
	})
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"type":"joined","body":{"channelName":"c1","userId":"alice","users":["alice"],"message":"hi"}}`,
		string(b))

	_, err = Encode(model.EventError, make(chan int))
	assert.ErrorIs(t, err, ErrEncode)
}

func TestEncodeError(t *testing.T) {
	assert.JSONEq(t,
		`{"type":"error","body":{"message":"Invalid JSON format"}}`,
		string(EncodeError(ReasonInvalidJSON)))
}
