package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

type chanBus struct {
	ch chan []byte
}

func (b *chanBus) Publish(context.Context, string, []byte) error { return nil }

func (b *chanBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return b.ch, nil
}

func startHub(t *testing.T, bus domain.SignalBus, cfg Config) (*Hub, *websocket.Conn) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	hub := NewHub(bus, slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	go func() { _ = hub.Run(ctx) }()

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	env := readEnvelope(t, conn)
	require.Equal(t, "sink_status", env.Type)
	return hub, conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var env Envelope
	require.NoError(t, json.Unmarshal(data, &env))
	return env
}

func TestHub_BroadcastTradeLog(t *testing.T) {
	hub, conn := startHub(t, nil, Config{})

	hub.BroadcastTradeLog(domain.TradeLog{
		ID:           7,
		Venue:        "uniswap",
		BlockNumber:  100,
		SqrtPriceX96: "1",
		Amount0:      "2",
		Amount1:      "-3",
	})

	env := readEnvelope(t, conn)
	assert.Equal(t, TradeLogChannel, env.Type)

	var got domain.TradeLog
	require.NoError(t, json.Unmarshal(env.Payload, &got))
	assert.Equal(t, int64(7), got.ID)
	assert.Equal(t, "uniswap", got.Venue)
	assert.Equal(t, "-3", got.Amount1)
}

func TestHub_RelaysBusChannel(t *testing.T) {
	bus := &chanBus{ch: make(chan []byte, 4)}
	_, conn := startHub(t, bus, Config{BusChannels: []string{"ch:swaps"}})

	bus.ch <- []byte("not json")
	bus.ch <- []byte(`{"venue":"sushiswap"}`)

	env := readEnvelope(t, conn)
	assert.Equal(t, "ch:swaps", env.Type)
	assert.JSONEq(t, `{"venue":"sushiswap"}`, string(env.Payload))
}

func TestClient_HandleSubscription(t *testing.T) {
	c := &client{subs: map[string]bool{TradeLogChannel: true}}

	c.handleSubscription(subscribeMsg{Action: "unsubscribe", Channels: []string{TradeLogChannel}})
	assert.False(t, c.isSubscribed(TradeLogChannel))

	c.handleSubscription(subscribeMsg{Action: "subscribe", Channels: []string{"ch:swaps"}})
	assert.True(t, c.isSubscribed("ch:swaps"))
}

func TestClient_IsSubscribedWildcard(t *testing.T) {
	c := &client{subs: map[string]bool{"ch:*": true}}
	assert.True(t, c.isSubscribed("ch:swaps"))
	assert.False(t, c.isSubscribed(TradeLogChannel))
}
