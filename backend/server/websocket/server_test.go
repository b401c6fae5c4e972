package websocket

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/adwski/webrtc-signal-relay/backend/metrics"
	"github.com/adwski/webrtc-signal-relay/backend/model"
	"github.com/adwski/webrtc-signal-relay/backend/service"
	"github.com/adwski/webrtc-signal-relay/backend/storage/memory"
	sw "github.com/adwski/webrtc-signal-relay/backend/switch"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Type string          `json:"type"`
	Body json.RawMessage `json:"body"`
}

type relayFixture struct {
	url string
	reg *memory.MemStore
}

func newRelay(t *testing.T) *relayFixture {
	t.Helper()
	logger := zerolog.Nop()
	reg := memory.NewMemStore()
	m := metrics.New()
	svc := service.NewService(service.Config{
		Router: sw.NewSwitch(sw.Config{
			Logger:   &logger,
			Registry: reg,
			Metrics:  m,
		}),
		Metrics: m,
		Logger:  &logger,
	})
	srv := NewServer(Config{
		Logger:           &logger,
		SignalingService: svc,
	})

	ts := httptest.NewServer(srv.Handler)
	t.Cleanup(srv.Stop)
	t.Cleanup(ts.Close)

	return &relayFixture{
		url: "ws" + strings.TrimPrefix(ts.URL, "http") + "/",
		reg: reg,
	}
}

func (f *relayFixture) dial(t *testing.T) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(f.url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })

	env := readEnvelope(t, c)
	require.Equal(t, model.EventWelcome, env.Type)
	return c
}

func readEnvelope(t *testing.T, c *websocket.Conn) envelope {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, msg, err := c.ReadMessage()
	require.NoError(t, err)
	var env envelope
	require.NoError(t, json.Unmarshal(msg, &env), "raw message: %s", msg)
	return env
}

func requireSilent(t *testing.T, c *websocket.Conn) {
	t.Helper()
	require.NoError(t, c.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, msg, err := c.ReadMessage()
	require.Error(t, err, "unexpected message: %s", msg)
}

func send(t *testing.T, c *websocket.Conn, raw string) {
	t.Helper()
	require.NoError(t, c.WriteMessage(websocket.TextMessage, []byte(raw)))
}

func TestServer_SignalingScenario(t *testing.T) {
	f := newRelay(t)
	a := f.dial(t)
	b := f.dial(t)

	send(t, a, `{"type":"join","body":{"channelName":"c1","userId":"alice"}}`)
	env := readEnvelope(t, a)
	require.Equal(t, model.EventJoined, env.Type)
	var joined model.Joined
	require.NoError(t, json.Unmarshal(env.Body, &joined))
	assert.Equal(t, []string{"alice"}, joined.Users)

	send(t, b, `{"type":"join","body":{"channelName":"c1","userId":"bob"}}`)
	env = readEnvelope(t, b)
	require.Equal(t, model.EventJoined, env.Type)
	require.NoError(t, json.Unmarshal(env.Body, &joined))
	assert.Equal(t, []string{"alice", "bob"}, joined.Users)

	env = readEnvelope(t, a)
	require.Equal(t, model.EventUserJoined, env.Type)
	assert.JSONEq(t, `"bob"`, string(mustField(t, env.Body, "userId")))

	send(t, b, `{"type":"send_offer","body":{"channelName":"c1","userId":"bob","sdp":{"type":"offer","sdp":"v=0"}}}`)
	env = readEnvelope(t, a)
	require.Equal(t, model.EventOfferReceived, env.Type)
	assert.JSONEq(t, `{"type":"offer","sdp":"v=0"}`, string(env.Body))

	send(t, b, `{"type":"send_offer","body":{"channelName":"c1","userId":"bob"}}`)
	env = readEnvelope(t, b)
	require.Equal(t, model.EventError, env.Type)
	assert.JSONEq(t, `{"message":"Missing SDP in offer"}`, string(env.Body))
	requireSilent(t, a)

	send(t, a, `{"type":"quit","body":{"channelName":"c1","userId":"alice"}}`)
	env = readEnvelope(t, b)
	require.Equal(t, model.EventUserLeft, env.Type)
	assert.JSONEq(t, `"alice"`, string(mustField(t, env.Body, "userId")))
	assert.Equal(t, []string{"bob"}, f.reg.MembersOf("c1"))

	require.NoError(t, b.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	require.Eventually(t, func() bool {
		return f.reg.Channels() == 0
	}, 3*time.Second, 20*time.Millisecond)
}

func TestServer_DisconnectAnnouncesLeave(t *testing.T) {
	f := newRelay(t)
	a := f.dial(t)
	b := f.dial(t)

	send(t, a, `{"type":"join","body":{"channelName":"c1","userId":"alice"}}`)
	readEnvelope(t, a)
	send(t, b, `{"type":"join","body":{"channelName":"c1","userId":"bob"}}`)
	readEnvelope(t, b)
	readEnvelope(t, a)

	require.NoError(t, a.Close())

	env := readEnvelope(t, b)
	require.Equal(t, model.EventUserLeft, env.Type)
	assert.JSONEq(t, `"alice"`, string(mustField(t, env.Body, "userId")))
	assert.Equal(t, []string{"bob"}, f.reg.MembersOf("c1"))
}

func TestServer_MalformedInput(t *testing.T) {
	f := newRelay(t)
	a := f.dial(t)

	send(t, a, `{"type":"join",`)
	env := readEnvelope(t, a)
	require.Equal(t, model.EventError, env.Type)
	assert.JSONEq(t, `{"message":"Invalid JSON format"}`, string(env.Body))
	assert.Equal(t, 0, f.reg.Channels())

	// connection stays usable, response arrives right after the error
	send(t, a, `{"type":"join","body":{"channelName":"c1","userId":"alice"}}`)
	env = readEnvelope(t, a)
	assert.Equal(t, model.EventJoined, env.Type)
	requireSilent(t, a)
}

func TestServer_WSPath(t *testing.T) {
	f := newRelay(t)
	c, _, err := websocket.DefaultDialer.Dial(strings.TrimSuffix(f.url, "/")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	assert.Equal(t, model.EventWelcome, readEnvelope(t, c).Type)
}

func mustField(t *testing.T, body json.RawMessage, key string) json.RawMessage {
	t.Helper()
	var fields map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(body, &fields))
	v, ok := fields[key]
	require.True(t, ok, "field %s is missing in %s", key, body)
	return v
}
