package openairt

// Audio formats accepted by the Realtime API.
const (
	AudioFormatPCM16    = "pcm16"
	AudioFormatG711ULaw = "g711_ulaw"
	AudioFormatG711ALaw = "g711_alaw"
)

// Voices for audio output.
const (
	VoiceAlloy   = "alloy"
	VoiceAsh     = "ash"
	VoiceCoral   = "coral"
	VoiceEcho    = "echo"
	VoiceSage    = "sage"
	VoiceShimmer = "shimmer"
	VoiceVerse   = "verse"
)

// Modalities.
const (
	ModalityText  = "text"
	ModalityAudio = "audio"
)

// SessionConfig is the payload of a session.update event.
type SessionConfig struct {
	Modalities        []string       `json:"modalities,omitzero"`
	Instructions      string         `json:"instructions,omitzero"`
	Voice             string         `json:"voice,omitzero"`
	InputAudioFormat  string         `json:"input_audio_format,omitzero"`
	OutputAudioFormat string         `json:"output_audio_format,omitzero"`
	TurnDetection     *TurnDetection `json:"turn_detection,omitzero"`
	Tools             []Tool         `json:"tools,omitzero"`
	ToolChoice        string         `json:"tool_choice,omitzero"`
	Temperature       *float64       `json:"temperature,omitzero"`
}

// TurnDetection configures server-side voice activity detection.
type TurnDetection struct {
	// Type is "server_vad" or "semantic_vad".
	Type string `json:"type,omitzero"`

	Threshold         float64 `json:"threshold,omitzero"`
	PrefixPaddingMs   int     `json:"prefix_padding_ms,omitzero"`
	SilenceDurationMs int     `json:"silence_duration_ms,omitzero"`
}

// Tool declares a function the model may call. Parameters holds the JSON
// Schema for the arguments; any value that marshals to a schema object
// works, including *jsonschema.Schema.
type Tool struct {
	Type        string `json:"type"`
	Name        string `json:"name"`
	Description string `json:"description,omitzero"`
	Parameters  any    `json:"parameters,omitzero"`
}

// ConversationItem is an item of the server-held conversation.
type ConversationItem struct {
	ID        string        `json:"id,omitzero"`
	Type      string        `json:"type,omitzero"`
	Status    string        `json:"status,omitzero"`
	Role      string        `json:"role,omitzero"`
	Content   []ContentPart `json:"content,omitzero"`
	CallID    string        `json:"call_id,omitzero"`
	Name      string        `json:"name,omitzero"`
	Arguments string        `json:"arguments,omitzero"`
	Output    string        `json:"output,omitzero"`
}

// ContentPart is a piece of message content.
type ContentPart struct {
	Type       string `json:"type,omitzero"`
	Text       string `json:"text,omitzero"`
	Audio      string `json:"audio,omitzero"`
	Transcript string `json:"transcript,omitzero"`
}

// SessionResource is the server's view of the session, carried on
// session.created and session.updated.
type SessionResource struct {
	ID                string `json:"id,omitzero"`
	Model             string `json:"model,omitzero"`
	Voice             string `json:"voice,omitzero"`
	InputAudioFormat  string `json:"input_audio_format,omitzero"`
	OutputAudioFormat string `json:"output_audio_format,omitzero"`
}

// ResponseResource is a completed or in-progress model response, carried
// on response.created and response.done.
type ResponseResource struct {
	ID     string             `json:"id,omitzero"`
	Status string             `json:"status,omitzero"`
	Output []ConversationItem `json:"output,omitzero"`
	Usage  *Usage             `json:"usage,omitzero"`
}

// Usage is the token accounting attached to a finished response.
type Usage struct {
	TotalTokens  int `json:"total_tokens,omitzero"`
	InputTokens  int `json:"input_tokens,omitzero"`
	OutputTokens int `json:"output_tokens,omitzero"`
}
