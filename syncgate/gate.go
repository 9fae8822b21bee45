// Package syncgate uploads anonymized caption samples to a remote
// collection endpoint, but only when every consent condition holds. The
// gate fails closed: any doubt means no network call.
package syncgate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"livecap/config"
	"livecap/log"
)

// maxTextLen bounds each uploaded text field.
const maxTextLen = 500

// whitelistedSites are the only hosts whose captions may ever leave the
// machine. Subdomains match; anything else does not.
var whitelistedSites = []string{
	"youtube.com",
	"bilibili.com",
	"vimeo.com",
	"twitch.tv",
}

// Record is the uploaded sample shape.
type Record struct {
	DeviceID   string `json:"device_id"`
	Site       string `json:"site"`
	Original   string `json:"original"`
	Translated string `json:"translated"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
	CreatedAt  string `json:"created_at"`
}

// Gate decides per segment whether a sample may be uploaded, and uploads
// it when allowed.
type Gate struct {
	endpoint string
	key      string
	consent  bool

	deviceFile string
	client     *http.Client
	now        func() time.Time
	newID      func() string

	mu       sync.Mutex
	deviceID string
}

func New(cfg *config.Config) *Gate {
	return &Gate{
		endpoint:   cfg.SyncEndpoint,
		key:        cfg.SyncKey,
		consent:    cfg.DataSyncConsent,
		deviceFile: filepath.Join(cfg.DataDir, "device_id"),
		client:     &http.Client{Timeout: 10 * time.Second},
		now:        time.Now,
		newID:      uuid.NewString,
	}
}

// SyncSegment uploads one sample if every condition allows it. The bool
// reports whether an upload happened; a denied sample is (false, nil),
// never an error.
func (g *Gate) SyncSegment(ctx context.Context, videoURL, original, translated, sourceLang, targetLang string) (bool, error) {
	if !g.consent {
		return false, nil
	}
	if g.endpoint == "" || g.key == "" {
		return false, nil
	}
	host, ok := whitelistedHost(videoURL)
	if !ok {
		return false, nil
	}
	if strings.TrimSpace(original) == "" {
		return false, nil
	}

	deviceID, err := g.ensureDeviceID()
	if err != nil {
		return false, fmt.Errorf("device id: %w", err)
	}

	record := Record{
		DeviceID:   deviceID,
		Site:       host,
		Original:   truncate(original, maxTextLen),
		Translated: truncate(translated, maxTextLen),
		SourceLang: sourceLang,
		TargetLang: targetLang,
		CreatedAt:  g.now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(record)
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", g.endpoint, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", g.key)
	req.Header.Set("Authorization", "Bearer "+g.key)
	req.Header.Set("Prefer", "return=minimal")

	resp, err := g.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("sync request failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return false, fmt.Errorf("sync rejected: HTTP %d", resp.StatusCode)
	}

	log.Info("synced caption sample for " + host)
	return true, nil
}

// ensureDeviceID returns the persisted device identifier, creating it on
// first use.
func (g *Gate) ensureDeviceID() (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.deviceID != "" {
		return g.deviceID, nil
	}

	data, err := os.ReadFile(g.deviceFile)
	if err == nil {
		if id := strings.TrimSpace(string(data)); id != "" {
			g.deviceID = id
			return id, nil
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}

	id := g.newID()
	if err := os.MkdirAll(filepath.Dir(g.deviceFile), 0o755); err != nil {
		return "", err
	}
	if err := os.WriteFile(g.deviceFile, []byte(id+"\n"), 0o600); err != nil {
		return "", err
	}
	g.deviceID = id
	return id, nil
}

// whitelistedHost reports whether the video URL's host is a whitelisted
// site or a subdomain of one, and returns the host when it is.
func whitelistedHost(rawURL string) (string, bool) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return "", false
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", false
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", false
	}
	for _, site := range whitelistedSites {
		if host == site || strings.HasSuffix(host, "."+site) {
			return host, true
		}
	}
	return "", false
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
