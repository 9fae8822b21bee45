package transcriber

const (
	openaiTranscribeURL = "https://api.openai.com/v1/audio/transcriptions"
	openaiChatURL       = "https://api.openai.com/v1/chat/completions"
	openaiWhisperModel  = "whisper-1"
	openaiChatModel     = "gpt-4o-mini"
)

func NewOpenAI(apiKey string) *directProvider {
	return &directProvider{
		name:          "openai",
		apiKey:        apiKey,
		transcribeURL: openaiTranscribeURL,
		chatURL:       openaiChatURL,
		whisperModel:  openaiWhisperModel,
		chatModel:     openaiChatModel,
		client:        NewTracedClient(openaiTranscribeURL),
		chatClient:    NewTracedClient(openaiChatURL),
	}
}
