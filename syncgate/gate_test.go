package syncgate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livecap/config"
)

const videoURL = "https://www.youtube.com/watch?v=abc"

func newTestGate(t *testing.T, endpoint string) *Gate {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.SyncEndpoint = endpoint
	cfg.SyncKey = "anon-key"
	cfg.DataSyncConsent = true
	return New(cfg)
}

func countingServer(t *testing.T, calls *int) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*calls++
		w.WriteHeader(http.StatusCreated)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestWhitelistedHost(t *testing.T) {
	cases := []struct {
		url  string
		want bool
	}{
		{"https://youtube.com/watch?v=x", true},
		{"https://www.youtube.com/watch?v=x", true},
		{"https://m.youtube.com/watch?v=x", true},
		{"http://bilibili.com/video/x", true},
		{"https://player.vimeo.com/video/1", true},
		{"https://www.twitch.tv/somechannel", true},
		{"https://notyoutube.com/watch", false},
		{"https://youtube.com.evil.com/watch", false},
		{"https://example.com/", false},
		{"file:///home/user/video.mp4", false},
		{"ftp://youtube.com/x", false},
		{"", false},
		{"not a url at all ://", false},
	}
	for _, tc := range cases {
		if _, got := whitelistedHost(tc.url); got != tc.want {
			t.Errorf("whitelistedHost(%q) = %v, want %v", tc.url, got, tc.want)
		}
	}
}

func TestDenialConditionsAreIndependent(t *testing.T) {
	calls := 0
	server := countingServer(t, &calls)

	mutate := []struct {
		name string
		mut  func(g *Gate) (url, original string)
	}{
		{"no consent", func(g *Gate) (string, string) {
			g.consent = false
			return videoURL, "hello"
		}},
		{"no endpoint", func(g *Gate) (string, string) {
			g.endpoint = ""
			return videoURL, "hello"
		}},
		{"no key", func(g *Gate) (string, string) {
			g.key = ""
			return videoURL, "hello"
		}},
		{"not whitelisted", func(g *Gate) (string, string) {
			return "https://example.com/watch", "hello"
		}},
		{"blank original", func(g *Gate) (string, string) {
			return videoURL, "   \n\t"
		}},
	}
	for _, tc := range mutate {
		t.Run(tc.name, func(t *testing.T) {
			g := newTestGate(t, server.URL)
			url, original := tc.mut(g)
			synced, err := g.SyncSegment(context.Background(), url, original, "t", "en", "vi")
			if err != nil {
				t.Fatalf("SyncSegment: %v", err)
			}
			if synced {
				t.Error("denied sample reported as synced")
			}
		})
	}
	if calls != 0 {
		t.Errorf("denied samples reached the network %d times", calls)
	}
}

func TestSyncSegmentUploads(t *testing.T) {
	var gotRecord Record
	var gotHeaders http.Header
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeaders = r.Header.Clone()
		json.NewDecoder(r.Body).Decode(&gotRecord)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	g := newTestGate(t, server.URL)
	g.now = func() time.Time { return time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC) }

	synced, err := g.SyncSegment(context.Background(), videoURL, "hello", "xin chào", "en", "vi")
	if err != nil {
		t.Fatalf("SyncSegment: %v", err)
	}
	if !synced {
		t.Fatal("allowed sample not synced")
	}
	if gotHeaders.Get("apikey") != "anon-key" || gotHeaders.Get("Authorization") != "Bearer anon-key" {
		t.Errorf("auth headers = %v", gotHeaders)
	}
	if gotRecord.Site != "www.youtube.com" {
		t.Errorf("Site = %q", gotRecord.Site)
	}
	if gotRecord.Original != "hello" || gotRecord.Translated != "xin chào" {
		t.Errorf("texts = %q / %q", gotRecord.Original, gotRecord.Translated)
	}
	if gotRecord.SourceLang != "en" || gotRecord.TargetLang != "vi" {
		t.Errorf("langs = %q / %q", gotRecord.SourceLang, gotRecord.TargetLang)
	}
	if gotRecord.CreatedAt != "2026-08-28T12:00:00Z" {
		t.Errorf("CreatedAt = %q", gotRecord.CreatedAt)
	}
	if gotRecord.DeviceID == "" {
		t.Error("DeviceID missing")
	}
}

func TestSyncTruncatesLongText(t *testing.T) {
	var gotRecord Record
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotRecord)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	g := newTestGate(t, server.URL)
	long := strings.Repeat("à", 600)
	if _, err := g.SyncSegment(context.Background(), videoURL, long, long, "en", "vi"); err != nil {
		t.Fatalf("SyncSegment: %v", err)
	}
	if n := len([]rune(gotRecord.Original)); n != maxTextLen {
		t.Errorf("Original length = %d runes, want %d", n, maxTextLen)
	}
	if n := len([]rune(gotRecord.Translated)); n != maxTextLen {
		t.Errorf("Translated length = %d runes, want %d", n, maxTextLen)
	}
}

func TestDeviceIDLazyAndStable(t *testing.T) {
	var ids []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec Record
		json.NewDecoder(r.Body).Decode(&rec)
		ids = append(ids, rec.DeviceID)
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	g := newTestGate(t, server.URL)
	if _, err := os.Stat(g.deviceFile); !os.IsNotExist(err) {
		t.Fatal("device id file created before first sync")
	}

	g.SyncSegment(context.Background(), videoURL, "one", "", "en", "vi")
	g.SyncSegment(context.Background(), videoURL, "two", "", "en", "vi")
	if len(ids) != 2 || ids[0] != ids[1] {
		t.Errorf("ids = %v, want two identical", ids)
	}

	data, err := os.ReadFile(g.deviceFile)
	if err != nil {
		t.Fatalf("device id not persisted: %v", err)
	}
	if strings.TrimSpace(string(data)) != ids[0] {
		t.Errorf("persisted id %q != sent id %q", data, ids[0])
	}

	// A fresh gate over the same data dir reuses the stored id.
	cfg := config.Default()
	cfg.DataDir = filepath.Dir(g.deviceFile)
	cfg.SyncEndpoint = server.URL
	cfg.SyncKey = "anon-key"
	cfg.DataSyncConsent = true
	g2 := New(cfg)
	g2.SyncSegment(context.Background(), videoURL, "three", "", "en", "vi")
	if ids[2] != ids[0] {
		t.Errorf("new gate minted a new id: %q != %q", ids[2], ids[0])
	}
}

func TestSyncServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	g := newTestGate(t, server.URL)
	synced, err := g.SyncSegment(context.Background(), videoURL, "hello", "", "en", "vi")
	if err == nil {
		t.Fatal("expected error on HTTP 403")
	}
	if synced {
		t.Error("failed upload reported as synced")
	}
}
