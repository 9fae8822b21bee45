package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"strings"
)

// directProvider POSTs chunks straight to a cloud provider with the
// user's own key: one transcription call, plus an optional
// chat-completion translation leg.
type directProvider struct {
	name          string
	apiKey        string
	transcribeURL string
	chatURL       string
	whisperModel  string
	chatModel     string

	client     *TracedClient
	chatClient *TracedClient
}

func (d *directProvider) Name() string { return d.name }

// Warm pre-opens the transcription connection.
func (d *directProvider) Warm() {
	go d.client.Warm()
}

func (d *directProvider) Process(ctx context.Context, audioData []byte, format string, opts Options, history []Entry) (*Result, error) {
	if d.apiKey == "" {
		return nil, ErrMissingAPIKey
	}

	original, err := d.transcribe(ctx, audioData, format, opts.SourceLang)
	if err != nil {
		return nil, err
	}

	result := &Result{Original: original, Provider: d.name}
	if opts.TargetLang == "" || strings.TrimSpace(original) == "" {
		return result, nil
	}

	// Translation failure degrades to an empty translation; the
	// transcription is never discarded.
	translated, err := d.translate(ctx, original, opts.TargetLang, history)
	if err != nil {
		return result, nil
	}
	result.Translated = translated
	return result, nil
}

func (d *directProvider) transcribe(ctx context.Context, audioData []byte, format, sourceLang string) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	part, err := writer.CreateFormFile("file", "chunk."+format)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(audioData); err != nil {
		return "", err
	}

	writer.WriteField("model", d.whisperModel)
	writer.WriteField("response_format", "json")
	if sourceLang != "" && sourceLang != "auto" {
		writer.WriteField("language", sourceLang)
	}
	writer.Close()

	req, err := http.NewRequestWithContext(ctx, "POST", d.transcribeURL, &body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := d.client.Do(req)
	if err != nil {
		return "", &ProcessingError{Reason: fmt.Sprintf("%s request failed: %v", d.name, err)}
	}
	if resp.StatusCode != 200 {
		return "", apiError(d.name, resp.StatusCode, resp.Body)
	}

	var tResp struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(resp.Body, &tResp); err != nil {
		return "", &ProcessingError{Reason: fmt.Sprintf("%s response parse error: %v", d.name, err)}
	}
	return strings.TrimSpace(tResp.Text), nil
}

func translationPrompt(targetLang string, history []Entry) string {
	prompt := fmt.Sprintf(
		"You are a professional translator. Translate the following text to %s. "+
			"Maintain the original meaning, tone, and formatting. "+
			"Only return the translated text without any explanation, quotes, or markdown.",
		targetLang,
	)
	if len(history) > 0 {
		prompt += "\n\nRecent dialogue and translations, keep pronouns and register consistent:\n" + PromptLines(history)
	}
	return prompt
}

func (d *directProvider) translate(ctx context.Context, text, targetLang string, history []Entry) (string, error) {
	payload := map[string]any{
		"model": d.chatModel,
		"messages": []map[string]string{
			{"role": "system", "content": translationPrompt(targetLang, history)},
			{"role": "user", "content": text},
		},
		"temperature": 0.3,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", d.chatURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+d.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.chatClient.Do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != 200 {
		return "", apiError(d.name, resp.StatusCode, resp.Body)
	}

	var cResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(resp.Body, &cResp); err != nil {
		return "", fmt.Errorf("%s chat response parse error: %w", d.name, err)
	}
	if len(cResp.Choices) == 0 {
		return "", fmt.Errorf("%s chat response has no choices", d.name)
	}
	return strings.TrimSpace(cResp.Choices[0].Message.Content), nil
}
