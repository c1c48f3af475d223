package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/dexarb/internal/config"
	"github.com/alanyoungcy/dexarb/internal/domain"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func sinkConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Mode = config.ModeSink
	return &cfg
}

func TestWire_NoBackends(t *testing.T) {
	deps, cleanup, err := Wire(context.Background(), sinkConfig(), quietLogger())
	require.NoError(t, err)
	defer cleanup()

	require.NotNil(t, deps.TradeLogStore, "falls back to the in-memory store")
	assert.Nil(t, deps.ExecutionStore)
	assert.Nil(t, deps.LockManager)
	assert.Nil(t, deps.SignalBus)
	assert.Nil(t, deps.RateLimiter)
	assert.Nil(t, deps.Archiver)
	assert.NotNil(t, deps.Notifier)
	assert.Empty(t, deps.Probes)
}

func TestSinkServer_PostThenList(t *testing.T) {
	a := New(sinkConfig(), quietLogger())
	deps, cleanup, err := Wire(context.Background(), a.cfg, quietLogger())
	require.NoError(t, err)
	defer cleanup()

	srv := httptest.NewServer(a.newSinkServer(deps, nil).Handler())
	defer srv.Close()

	body := `{"venue":"uniswap","blockNumber":12,"timestamp":1700000000,` +
		`"sqrtPriceX96":"79228162514264337593543950336","amount0":"-5","amount1":"7"}`
	resp, err := http.Post(srv.URL+"/api/trade-logs", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/trade-logs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var logs []domain.TradeLog
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&logs))
	require.Len(t, logs, 1)
	assert.Equal(t, "uniswap", logs[0].Venue)

	resp, err = http.Get(srv.URL + "/api/executions")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, "executions need postgres")
}

func TestBuildOrchestrator_FailsBeforeDialing(t *testing.T) {
	cfg := config.Defaults()
	cfg.Project.BusyPolicy = "queue"
	a := New(&cfg, quietLogger())

	_, _, err := a.buildOrchestrator(context.Background(), &Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown busy policy")

	cfg.Project.BusyPolicy = "drop"
	_, _, err = a.buildOrchestrator(context.Background(), &Dependencies{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trading key")
}

func TestVenueFromConfig(t *testing.T) {
	v := venueFromConfig(config.VenueConfig{
		Name:    "sushiswap",
		Factory: "0x1af415a1EbA07a4986a52B6f2e7dE7003D82231e",
		Quoter:  "0x0524E833cCD057e4d7A296e3aaAb9f7675964Ce1",
		Router:  "0x8A21F6768C1f8075791D08546Dadf6daA0bE820c",
	})
	assert.Equal(t, "sushiswap", v.Name)
	assert.Equal(t, common.Address{}, v.Pool)
	assert.Equal(t, common.HexToAddress("0x1af415a1EbA07a4986a52B6f2e7dE7003D82231e"), v.Factory)
}
