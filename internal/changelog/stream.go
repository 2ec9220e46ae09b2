package changelog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

const defaultBatchSize = 50

// AckFrame is sent by the client to acknowledge applied changes.
type AckFrame struct {
	Type string  `json:"type"`
	IDs  []int64 `json:"ids"`
}

// ChangesFrame carries a batch of pending changes to the client.
type ChangesFrame struct {
	Type    string   `json:"type"`
	Changes []Change `json:"changes"`
}

// AckedFrame reports how many rows an ack flipped.
type AckedFrame struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type errorFrame struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

// Stream pushes pending changes to a device over a websocket and records
// the device's acknowledgements.
type Stream struct {
	store     Store
	batchSize int
}

// NewStream creates a stream over store. batchSize <= 0 uses the default.
func NewStream(store Store, batchSize int) *Stream {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Stream{store: store, batchSize: batchSize}
}

// Serve upgrades the request and runs the session for profileID until the
// client disconnects. The device query parameter must name a device the
// profile registered.
func (s *Stream) Serve(w http.ResponseWriter, r *http.Request, profileID int64) {
	device := r.URL.Query().Get("device")
	if device == "" {
		http.Error(w, `{"error":"device is required"}`, http.StatusBadRequest)
		return
	}
	if _, err := s.store.Touch(r.Context(), profileID, device); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			http.Error(w, `{"error":"Device not found"}`, http.StatusNotFound)
			return
		}
		slog.Error("sync stream touch failed", "device", device, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	rc := http.NewResponseController(w)
	_ = rc.SetReadDeadline(time.Time{})
	_ = rc.SetWriteDeadline(time.Time{})

	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		slog.Warn("sync stream upgrade failed", "device", device, "error", err)
		return
	}
	defer conn.CloseNow()

	slog.Info("sync stream opened", "profile_id", profileID, "device", device)
	err = s.session(r.Context(), conn, profileID)
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure, websocket.StatusGoingAway:
		slog.Info("sync stream closed", "profile_id", profileID, "device", device)
		return
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("sync stream ended", "profile_id", profileID, "device", device, "error", err)
		conn.Close(websocket.StatusInternalError, "sync failed")
		return
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

func (s *Stream) session(ctx context.Context, conn *websocket.Conn, profileID int64) error {
	if err := s.sendPending(ctx, conn, profileID); err != nil {
		return err
	}

	for {
		var in AckFrame
		if err := wsjson.Read(ctx, conn, &in); err != nil {
			return err
		}

		switch in.Type {
		case "ack":
			n, err := s.store.MarkSynced(ctx, profileID, in.IDs)
			if err != nil {
				return fmt.Errorf("mark synced: %w", err)
			}
			if err := wsjson.Write(ctx, conn, AckedFrame{Type: "acked", Count: n}); err != nil {
				return err
			}
			if err := s.sendPending(ctx, conn, profileID); err != nil {
				return err
			}
		default:
			if err := wsjson.Write(ctx, conn, errorFrame{Type: "error", Error: "unknown frame type: " + in.Type}); err != nil {
				return err
			}
		}
	}
}

func (s *Stream) sendPending(ctx context.Context, conn *websocket.Conn, profileID int64) error {
	unsynced := false
	pending, err := s.store.List(ctx, profileID, &unsynced, s.batchSize)
	if err != nil {
		return fmt.Errorf("list pending: %w", err)
	}
	if pending == nil {
		pending = []Change{}
	}
	return wsjson.Write(ctx, conn, ChangesFrame{Type: "changes", Changes: pending})
}
