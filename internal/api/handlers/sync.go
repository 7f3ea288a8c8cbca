package handlers

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/wonny/radar/backend/internal/contracts"
	"github.com/wonny/radar/backend/internal/pipeline"
	"github.com/wonny/radar/backend/pkg/logger"
)

// SyncRunner runs one sync mode
type SyncRunner interface {
	Run(ctx context.Context, mode contracts.SyncMode, date time.Time, codes []string, progress pipeline.ProgressFunc) (*contracts.RunReport, error)
}

const writeWait = 10 * time.Second

// SyncHandler runs sync modes over a WebSocket and streams their progress
type SyncHandler struct {
	runner   SyncRunner
	upgrader websocket.Upgrader
	logger   *logger.Logger
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(runner SyncRunner, log *logger.Logger) *SyncHandler {
	return &SyncHandler{
		runner: runner,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
		logger: log,
	}
}

// Stream upgrades to a WebSocket, runs the requested mode and writes every
// progress event as JSON until the final one. Closing the socket cancels the
// run between units.
// GET /ws/sync?mode=daily|full|vertical|snapshot|announcement|derive&date=YYYYMMDD&codes=A,B
func (h *SyncHandler) Stream(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	mode, ok := contracts.ParseSyncMode(q.Get("mode"))
	if !ok {
		respondError(w, http.StatusBadRequest, "Invalid mode (valid: full, vertical, snapshot, announcement, daily, derive)")
		return
	}

	var date time.Time
	if s := q.Get("date"); s != "" {
		d, err := contracts.ParseDate(s)
		if err != nil {
			respondError(w, http.StatusBadRequest, "Invalid date (expected YYYYMMDD)")
			return
		}
		date = d
	}

	var codes []string
	if s := q.Get("codes"); s != "" {
		codes = strings.Split(s, ",")
	}
	if mode == contracts.ModeVerticalBackfill && len(codes) == 0 {
		respondError(w, http.StatusBadRequest, "codes is required for vertical mode")
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.WithoutCancel(r.Context()))
	defer cancel()

	// A read error means the client went away
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	log := h.logger.WithFields(map[string]interface{}{"mode": string(mode), "remote": r.RemoteAddr})
	log.Info("Sync stream started")

	events := pipeline.Stream(ctx, func(ctx context.Context, progress pipeline.ProgressFunc) (*contracts.RunReport, error) {
		return h.runner.Run(ctx, mode, date, codes, progress)
	})

	for ev := range events {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(ev); err != nil {
			log.WithError(err).Warn("Sync stream write failed, cancelling run")
			cancel()
			for range events {
			}
			return
		}
	}

	conn.SetWriteDeadline(time.Now().Add(writeWait))
	conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "sync finished"))
	log.Info("Sync stream finished")
}
