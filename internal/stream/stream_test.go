package stream

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/satindergrewal/needledrop/internal/audio"
	"github.com/satindergrewal/needledrop/internal/detector"
	"github.com/satindergrewal/needledrop/internal/history"
	"github.com/satindergrewal/needledrop/internal/input"
	"github.com/satindergrewal/needledrop/internal/monitor"
)

func constFrame(n int, v float32) audio.Frame {
	s := make([]float32, n)
	for i := range s {
		s[i] = v
	}
	return audio.Frame{Samples: s, Captured: time.Now()}
}

func TestFeedSkipsWithoutListeners(t *testing.T) {
	b := NewBroadcaster()
	f := NewFeed(b, audio.StreamSampleRate)
	f.Push(constFrame(1000, 0.5))
	if f.framer.Pending() != 0 {
		t.Errorf("Pending = %d, want 0 with no listeners", f.framer.Pending())
	}
}

func TestFeedKeepsFramerWhileIdle(t *testing.T) {
	f := NewFeed(NewBroadcaster(), audio.StreamSampleRate)
	before := f.framer
	for i := 0; i < 3; i++ {
		f.Push(constFrame(1000, 0.5))
	}
	if f.framer != before {
		t.Error("idle feed replaced its framer")
	}
}

func TestFeedDropsPartialFrameWhenListenersLeave(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()
	f := NewFeed(b, audio.StreamSampleRate)

	f.Push(constFrame(100, 0.5))
	if f.framer.Pending() != 100 {
		t.Fatalf("Pending = %d, want 100", f.framer.Pending())
	}

	b.Unsubscribe(l)
	f.Push(constFrame(100, 0.5))
	if f.framer.Pending() != 0 {
		t.Errorf("Pending = %d, want 0 once listeners are gone", f.framer.Pending())
	}
}

func TestFeedFramesAndConverts(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	f := NewFeed(b, audio.StreamSampleRate)
	f.Push(constFrame(audio.StreamFrameSize*2+100, 0.5))

	if len(l.C) != 2 {
		t.Fatalf("frames = %d, want 2", len(l.C))
	}
	frame := <-l.C
	if len(frame) != audio.StreamFrameSize {
		t.Errorf("frame size = %d, want %d", len(frame), audio.StreamFrameSize)
	}
	if frame[0] != 16383 {
		t.Errorf("frame[0] = %d, want 16383", frame[0])
	}
	if f.framer.Pending() != 100 {
		t.Errorf("Pending = %d, want 100", f.framer.Pending())
	}
}

func TestFeedResamples(t *testing.T) {
	b := NewBroadcaster()
	l := b.Subscribe()
	defer b.Unsubscribe(l)

	f := NewFeed(b, audio.StreamSampleRate/2)
	f.Push(constFrame(audio.StreamFrameSize, 0.25))

	if len(l.C) != 2 {
		t.Errorf("frames = %d, want 2 after doubling the rate", len(l.C))
	}
}

func TestEncoderArgsMono48k(t *testing.T) {
	args := strings.Join(encoderArgs(), " ")
	for _, want := range []string{"-ar 48000", "-ac 1", "-f s16le", "libmp3lame"} {
		if !strings.Contains(args, want) {
			t.Errorf("encoder args %q missing %q", args, want)
		}
	}
}

func testSnapshot() monitor.Snapshot {
	return monitor.Snapshot{
		State:          detector.Playing,
		Icon:           detector.Playing.Icon(),
		AlbumID:        7,
		Side:           "B",
		SideIndex:      1,
		Sides:          2,
		SessionSeconds: 42,
		TotalSeconds:   100,
	}
}

func newTestServer(t *testing.T, queue int) (*Server, chan input.Event, *httptest.Server) {
	t.Helper()
	events := make(chan input.Event, queue)
	hub := NewHub(zerolog.Nop())
	s := NewServer(hub, NewBroadcaster(), events, zerolog.Nop())
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
	})
	return s, events, ts
}

func TestStatusBeforeFirstSnapshot(t *testing.T) {
	_, _, ts := newTestServer(t, 1)
	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusServiceUnavailable)
	}
}

func TestStatusReturnsLatestSnapshot(t *testing.T) {
	s, _, ts := newTestServer(t, 1)
	l := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(l)

	s.hub.Publish(testSnapshot())

	resp, err := http.Get(ts.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var got map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got["state"] != "PLAYING" {
		t.Errorf("state = %v, want PLAYING", got["state"])
	}
	if got["side"] != "B" {
		t.Errorf("side = %v, want B", got["side"])
	}
	if got["album_id"] != float64(7) {
		t.Errorf("album_id = %v, want 7", got["album_id"])
	}
	if got["listeners"] != float64(1) {
		t.Errorf("listeners = %v, want 1", got["listeners"])
	}
}

func post(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	resp.Body.Close()
	return resp
}

func TestAlbumEnqueuesSubmit(t *testing.T) {
	_, events, ts := newTestServer(t, 1)

	resp := post(t, ts.URL+"/api/album", `{"id": 123}`)
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	ev, ok := input.Poll(events)
	if !ok {
		t.Fatal("no event queued")
	}
	if ev.Kind != input.Submit || ev.Value != "123" {
		t.Errorf("event = %+v, want submit 123", ev)
	}
}

func TestAlbumRejectsBadBody(t *testing.T) {
	_, events, ts := newTestServer(t, 1)

	for _, body := range []string{`{"id": 0}`, `{"id": "x"}`, `nope`} {
		resp := post(t, ts.URL+"/api/album", body)
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("body %s: status = %d, want 400", body, resp.StatusCode)
		}
	}
	if _, ok := input.Poll(events); ok {
		t.Error("rejected request queued an event")
	}
}

func TestSideEnqueuesNavigation(t *testing.T) {
	_, events, ts := newTestServer(t, 2)

	post(t, ts.URL+"/api/side", `{"direction":"next"}`)
	post(t, ts.URL+"/api/side", `{"direction":"prev"}`)
	resp := post(t, ts.URL+"/api/side", `{"direction":"up"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("bad direction status = %d, want 400", resp.StatusCode)
	}

	want := []input.Kind{input.NextSide, input.PrevSide}
	for i, k := range want {
		ev, ok := input.Poll(events)
		if !ok || ev.Kind != k {
			t.Errorf("event %d = %+v, want %v", i, ev, k)
		}
	}
}

func TestControlQueueFull(t *testing.T) {
	_, _, ts := newTestServer(t, 1)

	if resp := post(t, ts.URL+"/api/side", `{"direction":"next"}`); resp.StatusCode != http.StatusAccepted {
		t.Fatalf("first status = %d, want 202", resp.StatusCode)
	}
	if resp := post(t, ts.URL+"/api/side", `{"direction":"next"}`); resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("full queue status = %d, want 503", resp.StatusCode)
	}
}

func TestMethodNotAllowed(t *testing.T) {
	_, _, ts := newTestServer(t, 1)
	resp, err := http.Get(ts.URL + "/api/album")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	_, _, ts := newTestServer(t, 1)
	resp, err := http.Get(ts.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestWebsocketReceivesSnapshots(t *testing.T) {
	s, _, ts := newTestServer(t, 1)
	s.hub.Publish(testSnapshot())

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var first map[string]any
	if err := conn.ReadJSON(&first); err != nil {
		t.Fatalf("read latest: %v", err)
	}
	if first["side"] != "B" {
		t.Errorf("latest side = %v, want B", first["side"])
	}

	next := testSnapshot()
	next.Side = "A"
	next.State = detector.Stopped
	s.hub.Publish(next)

	var second map[string]any
	if err := conn.ReadJSON(&second); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if second["side"] != "A" || second["state"] != "STOPPED" {
		t.Errorf("update = %v/%v, want A/STOPPED", second["side"], second["state"])
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	h := NewHub(zerolog.Nop())
	c := &client{hub: h, send: make(chan []byte, clientBuffer)}
	h.register(c)

	for i := 0; i < clientBuffer*2; i++ {
		h.Publish(testSnapshot())
	}
	if len(c.send) != clientBuffer {
		t.Errorf("queued = %d, want %d", len(c.send), clientBuffer)
	}

	h.unregister(c)
	if h.ClientCount() != 0 {
		t.Errorf("ClientCount = %d, want 0", h.ClientCount())
	}
}

func getJSON(t *testing.T, url string) (int, map[string]any) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, nil
	}
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, body
}

func TestHistoryDisabled(t *testing.T) {
	_, _, ts := newTestServer(t, 1)
	if code, _ := getJSON(t, ts.URL+"/api/history"); code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", code)
	}
}

func TestHistoryServesTotalsAndRecent(t *testing.T) {
	store, err := history.Open(":memory:")
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	defer store.Close()

	start := time.Date(2024, 5, 1, 20, 0, 0, 0, time.UTC)
	for i, l := range []history.Listen{
		{AlbumID: 7, Side: "A", Seconds: 600},
		{AlbumID: 7, Side: "B", Seconds: 540.5},
		{AlbumID: 9, Side: "A", Seconds: 100},
	} {
		l.StartedAt = start.Add(time.Duration(i) * time.Hour)
		l.StoppedAt = l.StartedAt.Add(10 * time.Minute)
		if err := store.Record(&l); err != nil {
			t.Fatalf("record: %v", err)
		}
	}

	hub := NewHub(zerolog.Nop())
	s := NewServer(hub, NewBroadcaster(), make(chan input.Event, 1), zerolog.Nop(), WithHistory(store))
	ts := httptest.NewServer(s.Handler())
	defer ts.Close()

	code, body := getJSON(t, ts.URL+"/api/history?album=7&limit=2")
	if code != http.StatusOK {
		t.Fatalf("status = %d, want 200", code)
	}
	life := body["lifetime"].(map[string]any)
	if life["sessions"] != float64(3) || life["seconds"] != 1240.5 {
		t.Errorf("lifetime = %v, want 3 sessions 1240.5s", life)
	}
	album := body["album"].(map[string]any)
	if album["sessions"] != float64(2) || album["seconds"] != 1140.5 {
		t.Errorf("album = %v, want 2 sessions 1140.5s", album)
	}
	recent := body["recent"].([]any)
	if len(recent) != 2 {
		t.Fatalf("recent = %d listens, want 2", len(recent))
	}
	if first := recent[0].(map[string]any); first["album_id"] != float64(9) {
		t.Errorf("newest listen album = %v, want 9", first["album_id"])
	}

	for _, q := range []string{"?limit=0", "?limit=x", "?album=-1"} {
		if code, _ := getJSON(t, ts.URL+"/api/history"+q); code != http.StatusBadRequest {
			t.Errorf("%s: status = %d, want 400", q, code)
		}
	}
}
