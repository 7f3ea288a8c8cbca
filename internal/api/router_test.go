package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonny/radar/backend/internal/api/handlers"
	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/pipeline"
	"github.com/wonny/radar/backend/internal/s1_universe"
	"github.com/wonny/radar/backend/internal/selection"
	"github.com/wonny/radar/backend/internal/strategyconfig"
	"github.com/wonny/radar/backend/internal/testutil"
	"github.com/wonny/radar/backend/pkg/logger"
)

type fakeRadar struct {
	got selection.Filters
	err error
}

func (f *fakeRadar) Query(ctx context.Context, filters selection.Filters) (*selection.Result, error) {
	f.got = filters
	if f.err != nil {
		return nil, f.err
	}
	return &selection.Result{
		AsOf:       testutil.Day("20240110"),
		Considered: 2,
		Rejected:   map[string]int{"pe": 1},
		Rows:       []selection.Row{{TSCode: "600000.SH", ROE: 12, PETTM: 8, Signal: selection.NeutralSignal}},
	}, nil
}

type fakeRunner struct {
	mode  contracts.SyncMode
	date  time.Time
	codes []string
}

func (f *fakeRunner) Run(ctx context.Context, mode contracts.SyncMode, date time.Time, codes []string, progress pipeline.ProgressFunc) (*contracts.RunReport, error) {
	f.mode, f.date, f.codes = mode, date, codes
	progress(contracts.ProgressEvent{RunID: "r1", Mode: mode, Stage: "fetch", Level: contracts.LevelInfo, Message: "[1/1] X: 5 bars"})
	report := &contracts.RunReport{RunID: "r1", Mode: mode, Succeeded: 1}
	progress(contracts.ProgressEvent{RunID: "r1", Mode: mode, Level: contracts.LevelSuccess, Final: true, Report: report})
	return report, nil
}

type testServer struct {
	server *httptest.Server
	radar  *fakeRadar
	runner *fakeRunner
	store  *testutil.MemoryStore
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	log := logger.Nop()

	presets, err := strategyconfig.Default()
	require.NoError(t, err)

	store := testutil.NewMemoryStore()
	resolver := s1_universe.NewResolver(store, store, testutil.NewFakeFeed(), "000906.SH", log)

	ts := &testServer{radar: &fakeRadar{}, runner: &fakeRunner{}, store: store}
	router := NewRouter(Handlers{
		Radar:    handlers.NewRadarHandler(ts.radar, presets, log),
		Universe: handlers.NewUniverseHandler(resolver, store, log),
		Sync:     handlers.NewSyncHandler(ts.runner, log),
	}, log)

	ts.server = httptest.NewServer(router)
	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*http.Response, map[string]interface{}) {
	t.Helper()
	req, err := http.NewRequest(method, ts.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp, out
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, body := ts.do(t, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestRadar_DefaultsAndOverrides(t *testing.T) {
	ts := newTestServer(t)

	resp, body := ts.do(t, http.MethodGet, "/api/radar?max_pe=20&pool=all&pit=true&min_ocf=0.8&trend=false", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 2, body["considered"])

	got := ts.radar.got
	assert.Equal(t, 8.0, got.MinROE, "unset fields keep the preset")
	assert.Equal(t, 20.0, got.MaxPE)
	assert.Equal(t, 3.0, got.MaxPB)
	assert.Equal(t, contracts.PoolAll, got.Pool)
	assert.True(t, got.PointInTime)
	assert.False(t, got.TrendUp)
	assert.Equal(t, 0.8, got.MinOCFToProfit.Float64)
	assert.False(t, got.MaxToxicRatio.Valid)
}

func TestRadar_Preset(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodGet, "/api/radar?preset=forensic", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, ts.radar.got.PointInTime)
	assert.Equal(t, 0.8, ts.radar.got.MinOCFToProfit.Float64)
	assert.Equal(t, 0.05, ts.radar.got.MaxToxicRatio.Float64)
}

func TestRadar_BadRequests(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"unknown preset", "preset=yolo"},
		{"bad pool", "pool=nasdaq"},
		{"bad number", "min_roe=high"},
		{"nan", "max_pe=NaN"},
		{"bad bool", "pit=maybe"},
	}

	ts := newTestServer(t)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := ts.do(t, http.MethodGet, "/api/radar?"+tt.query, "")
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestRadar_EngineError(t *testing.T) {
	ts := newTestServer(t)
	ts.radar.err = errors.New("db down")

	resp, body := ts.do(t, http.MethodGet, "/api/radar", "")
	assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Radar query failed", body["error"])
}

func TestWatchlistAndUniverse(t *testing.T) {
	ts := newTestServer(t)

	resp, _ := ts.do(t, http.MethodPost, "/api/watchlist", `{"ts_code":" 000001.sz ","group_name":"banks","weight":2}`)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, body := ts.do(t, http.MethodGet, "/api/watchlist", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.EqualValues(t, 1, body["count"])
	entry := body["entries"].([]interface{})[0].(map[string]interface{})
	assert.Equal(t, "000001.SZ", entry["ts_code"])
	assert.Equal(t, "banks", entry["group_name"])

	_, body = ts.do(t, http.MethodGet, "/api/universe", "")
	assert.EqualValues(t, 1, body["count"])
	assert.Equal(t, []interface{}{"000001.SZ"}, body["codes"])

	resp, _ = ts.do(t, http.MethodDelete, "/api/watchlist/000001.SZ", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body = ts.do(t, http.MethodDelete, "/api/watchlist/000001.SZ", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body["error"])
}

func TestWatchlist_Validation(t *testing.T) {
	ts := newTestServer(t)

	for _, body := range []string{`not json`, `{"ts_code":""}`, `{"ts_code":"X","weight":-1}`} {
		resp, out := ts.do(t, http.MethodPost, "/api/watchlist", body)
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, body)
		assert.NotEmpty(t, out["error"])
	}
}

func TestSyncStream(t *testing.T) {
	ts := newTestServer(t)
	url := "ws" + strings.TrimPrefix(ts.server.URL, "http") + "/ws/sync?mode=vertical&codes=X,Y&date=20240105"

	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	var events []contracts.ProgressEvent
	for {
		var ev contracts.ProgressEvent
		if err := conn.ReadJSON(&ev); err != nil {
			break
		}
		events = append(events, ev)
	}

	require.Len(t, events, 2)
	assert.Equal(t, "[1/1] X: 5 bars", events[0].Message)
	assert.True(t, events[1].Final)
	require.NotNil(t, events[1].Report)
	assert.Equal(t, 1, events[1].Report.Succeeded)

	assert.Equal(t, contracts.ModeVerticalBackfill, ts.runner.mode)
	assert.Equal(t, []string{"X", "Y"}, ts.runner.codes)
	assert.Equal(t, testutil.Day("20240105"), ts.runner.date)
}

func TestSyncStream_RejectsBadParams(t *testing.T) {
	ts := newTestServer(t)

	for _, query := range []string{"mode=weekly", "mode=daily&date=2024-01-05", "mode=vertical"} {
		resp, body := ts.do(t, http.MethodGet, "/ws/sync?"+query, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, query)
		assert.NotEmpty(t, body["error"])
	}
}
