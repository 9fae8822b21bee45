package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"livecap/lang"
)

// VideoRecord identifies one watched video. The id is a content hash of
// the URL, so the same video maps to the same record across sessions.
type VideoRecord struct {
	ID           string    `json:"id"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"createdAt"`
	LastAccessed time.Time `json:"lastAccessed"`
}

// Segment is one captioned span of a video. Translations always carries a
// slot for every supported language code; unfilled slots are empty strings.
type Segment struct {
	VideoID       string            `json:"videoId"`
	StartTime     float64           `json:"startTime"`
	EndTime       float64           `json:"endTime"`
	Original      string            `json:"original"`
	SourceLang    string            `json:"sourceLang"`
	Translations  map[string]string `json:"translations"`
	Confidence    float64           `json:"confidence"`
	Model         string            `json:"model"`
	UserCorrected bool              `json:"userCorrected"`
	CorrectedText string            `json:"correctedText"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// VideoID derives the stable record id for a video URL.
func VideoID(url string) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:])
}

// normalizeTranslations returns a map with exactly one slot per supported
// code, dropping anything else.
func normalizeTranslations(in map[string]string) map[string]string {
	out := make(map[string]string, len(lang.Supported))
	for _, code := range lang.Supported {
		out[code] = in[code]
	}
	return out
}

// mergeTranslations unions two slot maps; a non-empty incoming slot wins
// over whatever was stored.
func mergeTranslations(existing, incoming map[string]string) map[string]string {
	out := normalizeTranslations(existing)
	for _, code := range lang.Supported {
		if v := incoming[code]; v != "" {
			out[code] = v
		}
	}
	return out
}
