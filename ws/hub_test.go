package ws

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nicebartender/salon-server/engine"
)

type fakeRoom struct {
	mu       sync.Mutex
	joinErr  error
	joined   []string
	left     []string
	incoming []string
}

func (r *fakeRoom) Join(name string, bot bool, persona string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.joinErr != nil {
		return r.joinErr
	}
	r.joined = append(r.joined, name)
	return nil
}

func (r *fakeRoom) Leave(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.left = append(r.left, name)
}

func (r *fakeRoom) Incoming(sender, to, text string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.incoming = append(r.incoming, sender+": "+text)
}

func (r *fakeRoom) leftNames() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.left...)
}

func (r *fakeRoom) received() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.incoming...)
}

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func startTestServer(t *testing.T, room Room) (*Hub, string) {
	t.Helper()
	hub := NewHub(room, "5001")
	go hub.Run()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// frame is the union of response and event wire shapes.
type frame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id"`
	OK      bool            `json:"ok"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
	Error   *WireError      `json:"error"`
}

func request(t *testing.T, conn *websocket.Conn, id, method string, params any) frame {
	t.Helper()
	raw, err := json.Marshal(params)
	require.NoError(t, err)
	require.NoError(t, conn.WriteJSON(wireMessage{Type: "req", ID: id, Method: method, Params: raw}))
	return readFrame(t, conn)
}

func readFrame(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(3 * time.Second))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestJoinAndSendRoundTrip(t *testing.T) {
	room := &fakeRoom{}
	_, url := startTestServer(t, room)
	conn := dial(t, url)

	res := request(t, conn, "1", "join", joinParams{Name: "alice"})
	require.True(t, res.OK, "join rejected: %+v", res.Error)
	assert.Equal(t, "res", res.Type)
	assert.Equal(t, "1", res.ID)

	res = request(t, conn, "2", "send", sendParams{Content: "안녕하세요"})
	require.True(t, res.OK)

	assert.Equal(t, []string{"alice: 안녕하세요"}, room.received())
}

func TestJoinRequiresValidBotToken(t *testing.T) {
	_, url := startTestServer(t, &fakeRoom{})

	conn := dial(t, url)
	res := request(t, conn, "1", "join", joinParams{Name: "봇1", BotToken: "wrong"})
	require.False(t, res.OK)
	assert.Equal(t, "INVALID_TOKEN", res.Error.Code)

	conn2 := dial(t, url)
	res = request(t, conn2, "1", "join", joinParams{Name: "봇1", BotToken: "5001"})
	require.True(t, res.OK)

	var payload struct {
		Bot bool `json:"bot"`
	}
	require.NoError(t, json.Unmarshal(res.Payload, &payload))
	assert.True(t, payload.Bot)
}

func TestJoinReportsNameTaken(t *testing.T) {
	_, url := startTestServer(t, &fakeRoom{joinErr: engine.ErrNameTaken})
	conn := dial(t, url)

	res := request(t, conn, "1", "join", joinParams{Name: "alice"})
	require.False(t, res.OK)
	assert.Equal(t, "NAME_TAKEN", res.Error.Code)
}

func TestSendBeforeJoinIsRejected(t *testing.T) {
	_, url := startTestServer(t, &fakeRoom{})
	conn := dial(t, url)

	res := request(t, conn, "1", "send", sendParams{Content: "hi"})
	require.False(t, res.OK)
	assert.Equal(t, "JOIN_REQUIRED", res.Error.Code)
}

func TestSecondJoinIsRejected(t *testing.T) {
	_, url := startTestServer(t, &fakeRoom{})
	conn := dial(t, url)

	require.True(t, request(t, conn, "1", "join", joinParams{Name: "alice"}).OK)
	res := request(t, conn, "2", "join", joinParams{Name: "alice2"})
	require.False(t, res.OK)
	assert.Equal(t, "ALREADY_JOINED", res.Error.Code)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	hub, url := startTestServer(t, &fakeRoom{})
	conns := []*websocket.Conn{dial(t, url), dial(t, url)}
	for i, conn := range conns {
		require.True(t, request(t, conn, fmt.Sprint(i), "join", joinParams{Name: fmt.Sprintf("p%d", i)}).OK)
	}

	hub.Broadcast("room.notice", map[string]any{"content": "공지"})

	for _, conn := range conns {
		f := readFrame(t, conn)
		assert.Equal(t, "event", f.Type)
		assert.Equal(t, "room.notice", f.Event)
		assert.Contains(t, string(f.Payload), "공지")
	}
}

func TestDisconnectLeavesTheRoom(t *testing.T) {
	room := &fakeRoom{}
	_, url := startTestServer(t, room)
	conn := dial(t, url)

	require.True(t, request(t, conn, "1", "join", joinParams{Name: "alice"}).OK)
	conn.Close()

	require.Eventually(t, func() bool {
		left := room.leftNames()
		return len(left) == 1 && left[0] == "alice"
	}, 3*time.Second, 10*time.Millisecond)
}
