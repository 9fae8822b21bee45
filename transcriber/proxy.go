package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
)

// Proxy routes chunks through an operator-run backend instead of a
// user-supplied provider key. The backend does both transcription and
// translation in one round trip.
type Proxy struct {
	endpoint string
	secret   string
	client   *TracedClient
}

func NewProxy(endpoint, secret string) *Proxy {
	return &Proxy{
		endpoint: endpoint,
		secret:   secret,
		client:   NewTracedClient(endpoint),
	}
}

func (p *Proxy) Name() string { return "proxy" }

type proxyResponse struct {
	// The backend has returned both a bare text shape and a full
	// original/translated shape across versions; accept either.
	Text         string `json:"text"`
	Original     string `json:"original"`
	Translated   string `json:"translated"`
	DetectedLang string `json:"detected_lang"`
	Detail       string `json:"detail"`
}

func (p *Proxy) Process(ctx context.Context, audioData []byte, format string, opts Options, history []Entry) (*Result, error) {
	if p.endpoint == "" || p.secret == "" {
		return nil, ErrMissingCredentials
	}

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "chunk."+format)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(audioData); err != nil {
		return nil, err
	}

	writer.WriteField("source_lang", opts.SourceLang)
	writer.WriteField("target_lang", opts.TargetLang)
	writer.WriteField("include_original", strconv.FormatBool(opts.IncludeOriginal))
	writer.WriteField("context", Serialize(history))
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", p.endpoint, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-API-Key", p.secret)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &ProcessingError{Reason: fmt.Sprintf("backend request failed: %v", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var pResp proxyResponse
		if json.Unmarshal(resp.Body, &pResp) == nil && pResp.Detail != "" {
			return nil, &ProcessingError{Reason: pResp.Detail}
		}
		return nil, &ProcessingError{Reason: fmt.Sprintf("HTTP %d", resp.StatusCode)}
	}

	var pResp proxyResponse
	if err := json.Unmarshal(resp.Body, &pResp); err != nil {
		return nil, &ProcessingError{Reason: fmt.Sprintf("backend response parse error: %v", err)}
	}

	original := pResp.Original
	if original == "" {
		original = pResp.Text
	}

	return &Result{
		Original:   strings.TrimSpace(original),
		Translated: strings.TrimSpace(pResp.Translated),
		Provider:   "proxy",
	}, nil
}
