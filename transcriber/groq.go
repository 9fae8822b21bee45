package transcriber

const (
	groqTranscribeURL = "https://api.groq.com/openai/v1/audio/transcriptions"
	groqChatURL       = "https://api.groq.com/openai/v1/chat/completions"
	groqWhisperModel  = "whisper-large-v3-turbo"
	groqChatModel     = "llama-3.3-70b-versatile"
)

func NewGroq(apiKey string) *directProvider {
	return &directProvider{
		name:          "groq",
		apiKey:        apiKey,
		transcribeURL: groqTranscribeURL,
		chatURL:       groqChatURL,
		whisperModel:  groqWhisperModel,
		chatModel:     groqChatModel,
		client:        NewTracedClient(groqTranscribeURL),
		chatClient:    NewTracedClient(groqChatURL),
	}
}
