package notification

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go-artists-client/internal/model"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// newWSServer runs onConn for every websocket connection and counts
// upgrades.
func newWSServer(t *testing.T, onConn func(*websocket.Conn)) (string, *atomic.Int64) {
	t.Helper()

	var upgrades atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgrades.Add(1)
		onConn(conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http"), &upgrades
}

func expectSubscribe(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	assert.Equal(t, "SUBSCRIBE", f.Command)
	assert.Equal(t, Topic, f.Destination)
}

func testChannel(url string, maxReconnects int) *Channel {
	return NewWithPolicy(url, time.Minute, 20*time.Millisecond, maxReconnects)
}

func TestChannel_DispatchesInRegistrationOrder(t *testing.T) {
	url, _ := newWSServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn)
		_ = conn.WriteJSON(model.Notification{Type: model.NotificationArtistCreated, Title: "first"})
		_ = conn.WriteJSON(model.Notification{Type: model.NotificationAlbumCreated, Title: "second"})
		// Hold the connection open.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	channel := testChannel(url, 0)
	defer channel.Disconnect()

	var mu sync.Mutex
	var got []string
	channel.AddListener(func(n model.Notification) {
		mu.Lock()
		got = append(got, "a:"+n.Title)
		mu.Unlock()
	})
	channel.AddListener(func(n model.Notification) {
		mu.Lock()
		got = append(got, "b:"+n.Title)
		mu.Unlock()
	})

	channel.Connect()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 4
	}, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a:first", "b:first", "a:second", "b:second"}, got)
}

func TestChannel_ListenerPanicDoesNotBlockLaterListeners(t *testing.T) {
	url, _ := newWSServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn)
		_ = conn.WriteJSON(model.Notification{Type: model.NotificationSystem, Title: "event"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	channel := testChannel(url, 0)
	defer channel.Disconnect()

	var later atomic.Int64
	channel.AddListener(func(model.Notification) {
		panic("listener exploded")
	})
	channel.AddListener(func(model.Notification) {
		later.Add(1)
	})

	channel.Connect()

	assert.Eventually(t, func() bool {
		return later.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannel_ReconnectIsBounded(t *testing.T) {
	// Every connection is dropped abnormally right after the upgrade.
	url, upgrades := newWSServer(t, func(conn *websocket.Conn) {
		conn.Close()
	})

	channel := testChannel(url, 5)
	channel.Connect()

	// Initial connect plus exactly 5 reconnect attempts.
	assert.Eventually(t, func() bool {
		return upgrades.Load() == 6
	}, 3*time.Second, 10*time.Millisecond)

	// The 6th failure schedules nothing further.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, int64(6), upgrades.Load())
	assert.Equal(t, StatusDisconnected, channel.Status())
}

func TestChannel_ForceReconnectResetsAttemptCounter(t *testing.T) {
	var healthy atomic.Bool
	url, upgrades := newWSServer(t, func(conn *websocket.Conn) {
		if !healthy.Load() {
			conn.Close()
			return
		}
		expectSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	channel := testChannel(url, 2)
	channel.Connect()

	// Exhaust the automatic attempts against a broken server.
	assert.Eventually(t, func() bool {
		return upgrades.Load() == 3 && channel.Status() == StatusDisconnected
	}, 3*time.Second, 10*time.Millisecond)

	// Recovery requires an explicit reconnect.
	healthy.Store(true)
	channel.ForceReconnect()
	defer channel.Disconnect()

	assert.Eventually(t, func() bool {
		return channel.Status() == StatusConnected
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChannel_ConnectIsIdempotent(t *testing.T) {
	url, upgrades := newWSServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	channel := testChannel(url, 0)
	defer channel.Disconnect()

	channel.Connect()
	channel.Connect()
	channel.Connect()

	assert.Eventually(t, func() bool {
		return channel.Status() == StatusConnected
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), upgrades.Load())
}

func TestChannel_DisconnectIsIdempotentAndStopsReconnects(t *testing.T) {
	frames := make(chan frame, 4)
	url, upgrades := newWSServer(t, func(conn *websocket.Conn) {
		for {
			var f frame
			if err := conn.ReadJSON(&f); err != nil {
				return
			}
			frames <- f
		}
	})

	channel := testChannel(url, 5)
	channel.Connect()

	assert.Eventually(t, func() bool {
		return channel.Status() == StatusConnected
	}, 2*time.Second, 10*time.Millisecond)

	channel.Disconnect()
	channel.Disconnect()

	assert.Equal(t, StatusDisconnected, channel.Status())

	// Subscribe on connect, unsubscribe on disconnect.
	require.Equal(t, "SUBSCRIBE", (<-frames).Command)
	require.Equal(t, "UNSUBSCRIBE", (<-frames).Command)

	// An intentional close never triggers the reconnect policy.
	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), upgrades.Load())
}

func TestChannel_NormalServerCloseDoesNotReconnect(t *testing.T) {
	url, upgrades := newWSServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn)
		deadline := time.Now().Add(time.Second)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"), deadline)
		conn.Close()
	})

	channel := testChannel(url, 5)
	channel.Connect()

	assert.Eventually(t, func() bool {
		return channel.Status() == StatusDisconnected
	}, 2*time.Second, 10*time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int64(1), upgrades.Load())
}

func TestChannel_RemoveListenerAndClear(t *testing.T) {
	url, _ := newWSServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn)
		_ = conn.WriteJSON(model.Notification{Type: model.NotificationSystem, Title: "one"})
		time.Sleep(400 * time.Millisecond)
		_ = conn.WriteJSON(model.Notification{Type: model.NotificationSystem, Title: "two"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	channel := testChannel(url, 0)
	defer channel.Disconnect()

	var calls atomic.Int64
	remove := channel.AddListener(func(model.Notification) {
		calls.Add(1)
	})

	channel.Connect()

	assert.Eventually(t, func() bool {
		return calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
	remove()

	time.Sleep(600 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load())

	channel.AddListener(func(model.Notification) {})
	channel.ClearListeners()
}

func TestChannel_MalformedPayloadIsSkipped(t *testing.T) {
	url, _ := newWSServer(t, func(conn *websocket.Conn) {
		expectSubscribe(t, conn)
		_ = conn.WriteMessage(websocket.TextMessage, []byte("not json"))
		_ = conn.WriteJSON(model.Notification{Type: model.NotificationSystem, Title: "valid"})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	channel := testChannel(url, 0)
	defer channel.Disconnect()

	got := make(chan model.Notification, 1)
	channel.AddListener(func(n model.Notification) {
		got <- n
	})

	channel.Connect()

	select {
	case n := <-got:
		assert.Equal(t, "valid", n.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}
