package openairt

// Client event types.
const (
	EventTypeSessionUpdate            = "session.update"
	EventTypeInputAudioBufferAppend   = "input_audio_buffer.append"
	EventTypeInputAudioBufferCommit   = "input_audio_buffer.commit"
	EventTypeInputAudioBufferClear    = "input_audio_buffer.clear"
	EventTypeConversationItemCreate   = "conversation.item.create"
	EventTypeConversationItemTruncate = "conversation.item.truncate"
	EventTypeResponseCreate           = "response.create"
	EventTypeResponseCancel           = "response.cancel"
)

// Server event types.
const (
	EventTypeError          = "error"
	EventTypeSessionCreated = "session.created"
	EventTypeSessionUpdated = "session.updated"

	EventTypeConversationItemCreated   = "conversation.item.created"
	EventTypeConversationItemTruncated = "conversation.item.truncated"

	EventTypeInputAudioBufferCommitted     = "input_audio_buffer.committed"
	EventTypeInputAudioBufferSpeechStarted = "input_audio_buffer.speech_started"
	EventTypeInputAudioBufferSpeechStopped = "input_audio_buffer.speech_stopped"

	EventTypeResponseCreated              = "response.created"
	EventTypeResponseDone                 = "response.done"
	EventTypeResponseOutputItemAdded      = "response.output_item.added"
	EventTypeResponseOutputItemDone       = "response.output_item.done"
	EventTypeResponseAudioDelta           = "response.audio.delta"
	EventTypeResponseAudioDone            = "response.audio.done"
	EventTypeResponseAudioTranscriptDelta = "response.audio_transcript.delta"
	EventTypeResponseAudioTranscriptDone  = "response.audio_transcript.done"
)

// ServerEvent is a tagged server event. Type selects which of the optional
// fields are populated; fields not belonging to the event type are zero.
type ServerEvent struct {
	Type    string `json:"type"`
	EventID string `json:"event_id,omitzero"`

	// Session is set for session.created and session.updated.
	Session *SessionResource `json:"session,omitzero"`

	// Item is set for conversation.item.* events.
	Item *ConversationItem `json:"item,omitzero"`

	// ItemID identifies the item for audio deltas, truncation and
	// speech detection events.
	ItemID string `json:"item_id,omitzero"`

	// AudioStartMs and AudioEndMs bracket detected speech.
	AudioStartMs int `json:"audio_start_ms,omitzero"`
	AudioEndMs   int `json:"audio_end_ms,omitzero"`

	// ContentIndex addresses the content part for deltas and truncation.
	ContentIndex int `json:"content_index,omitzero"`

	// Delta carries the increment for *.delta events. For audio deltas
	// it is base64-encoded audio in the session's output format.
	Delta string `json:"delta,omitzero"`

	// Transcript is the final text for transcript done events.
	Transcript string `json:"transcript,omitzero"`

	// Response is set for response.created and response.done.
	Response *ResponseResource `json:"response,omitzero"`

	// Err is set for error events.
	Err *Error `json:"error,omitzero"`

	// Raw preserves the wire message for logging and diagnostics.
	Raw []byte `json:"-"`
}

// FunctionCall describes a tool invocation requested by the model.
type FunctionCall struct {
	CallID    string
	Name      string
	Arguments string
}

// FunctionCall reports whether this event is a finished response whose
// first output item is a function call, and returns the call if so.
func (e *ServerEvent) FunctionCall() (*FunctionCall, bool) {
	if e.Type != EventTypeResponseDone || e.Response == nil || len(e.Response.Output) == 0 {
		return nil, false
	}
	first := e.Response.Output[0]
	if first.Type != "function_call" {
		return nil, false
	}
	return &FunctionCall{
		CallID:    first.CallID,
		Name:      first.Name,
		Arguments: first.Arguments,
	}, true
}
