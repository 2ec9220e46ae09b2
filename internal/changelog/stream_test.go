package changelog_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/p-n-ai/pai-lms/internal/changelog"
)

func newStreamServer(t *testing.T, store changelog.Store) *httptest.Server {
	t.Helper()
	stream := changelog.NewStream(store, 2)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		stream.Serve(w, r, 1)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, device string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/?device=" + device
}

func TestStream_PushAndAck(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	store := changelog.NewMemoryStore()
	dev, _ := store.RegisterDevice(ctx, 1, "", "phone")
	for _, obj := range []string{"a", "b", "c"} {
		_, _ = store.Log(ctx, changelog.Entry{ProfileID: 1, ModelName: "m", ObjectID: obj, Change: json.RawMessage(`{}`)})
	}
	_, _ = store.Log(ctx, changelog.Entry{ProfileID: 2, ModelName: "m", ObjectID: "z", Change: json.RawMessage(`{}`)})

	srv := newStreamServer(t, store)
	conn, _, err := websocket.Dial(ctx, wsURL(srv, dev.Identifier), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()

	var first changelog.ChangesFrame
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read first batch: %v", err)
	}
	if first.Type != "changes" || len(first.Changes) != 2 {
		t.Fatalf("first batch = %+v, want 2 changes", first)
	}

	ids := []int64{first.Changes[0].ID, first.Changes[1].ID}
	if err := wsjson.Write(ctx, conn, changelog.AckFrame{Type: "ack", IDs: ids}); err != nil {
		t.Fatalf("write ack: %v", err)
	}

	var acked changelog.AckedFrame
	if err := wsjson.Read(ctx, conn, &acked); err != nil {
		t.Fatalf("read acked: %v", err)
	}
	if acked.Type != "acked" || acked.Count != 2 {
		t.Errorf("acked = %+v, want count 2", acked)
	}

	var next changelog.ChangesFrame
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("read next batch: %v", err)
	}
	if len(next.Changes) != 1 || next.Changes[0].ObjectID != "a" {
		t.Errorf("next batch = %+v, want only the oldest entry", next.Changes)
	}

	conn.Close(websocket.StatusNormalClosure, "")

	pending := false
	left, _ := store.List(context.Background(), 1, &pending, 0)
	if len(left) != 1 {
		t.Errorf("pending after ack = %d, want 1", len(left))
	}
}

func TestStream_UnknownDevice(t *testing.T) {
	store := changelog.NewMemoryStore()
	srv := newStreamServer(t, store)
	foreign, _ := store.RegisterDevice(context.Background(), 2, "", "someone else's phone")

	resp0, err := http.Get(srv.URL + "/?device=" + foreign.Identifier)
	if err != nil {
		t.Fatal(err)
	}
	defer resp0.Body.Close()
	if resp0.StatusCode != http.StatusNotFound {
		t.Errorf("foreign device status = %d, want 404", resp0.StatusCode)
	}

	resp, err := http.Get(srv.URL + "/?device=nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}

	resp2, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatal(err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp2.StatusCode)
	}
}
