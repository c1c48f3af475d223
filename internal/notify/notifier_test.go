package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/domain"
)

type recordingSender struct {
	titles []string
	err    error
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return "recording" }

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func TestNotifier_FiltersEvents(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{EventExecutionFailed}, quietLogger())

	require.NoError(t, n.Notify(context.Background(), EventExecutionConfirmed, "ok", ""))
	require.NoError(t, n.Notify(context.Background(), EventExecutionFailed, "boom", ""))
	assert.Equal(t, []string{"boom"}, rec.titles)
}

func TestNotifier_CombinesSenderErrors(t *testing.T) {
	good := &recordingSender{}
	bad := &recordingSender{err: errors.New("rate limited")}
	n := NewNotifier([]Sender{bad, good}, nil, quietLogger())

	err := n.Notify(context.Background(), EventExecutionConfirmed, "t", "m")
	assert.ErrorContains(t, err, "rate limited")
	assert.Len(t, good.titles, 1, "one failing sender must not stop the others")
}

func TestNotifier_NilIsNoop(t *testing.T) {
	var n *Notifier
	assert.NoError(t, n.NotifyExecution(context.Background(), domain.Execution{}))
}

func TestNotifyExecution_EventByStatus(t *testing.T) {
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{EventExecutionDryRun}, quietLogger())

	require.NoError(t, n.NotifyExecution(context.Background(), domain.Execution{
		BuyVenue: "Uniswap", SellVenue: "Pancakeswap", Status: domain.ExecutionDryRun, InputAmount: big.NewInt(5),
	}))
	require.NoError(t, n.NotifyExecution(context.Background(), domain.Execution{Status: domain.ExecutionConfirmed}))
	require.Len(t, rec.titles, 1)
	assert.Contains(t, rec.titles[0], "buy Uniswap, sell Pancakeswap")
}

func TestTelegramSender_Send(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("TOKEN", "42")
	s.baseURL = srv.URL
	require.NoError(t, s.Send(context.Background(), "Title", "body"))
	assert.Equal(t, "42", got["chat_id"])
	assert.Equal(t, "*Title*\nbody", got["text"])
}

func TestDiscordSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "bad webhook", http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewDiscordSender(srv.URL).Send(context.Background(), "t", "m")
	assert.ErrorContains(t, err, "unexpected status 404")
}
