package voiceagents

import "github.com/koscakluka/bridge-core/core/events"

type SessionOptions struct {
	// Prompt overrides the agent's configured system prompt for this session.
	Prompt *string
	// FirstMessage overrides the agent's configured opening utterance.
	FirstMessage *string
	// DynamicVariables are arbitrary per-conversation values made available
	// to the agent (display name, numeric identifiers, ...).
	DynamicVariables map[string]any

	// AudioCallback is called with each base64 audio chunk produced by the
	// agent, exactly as carried on the wire.
	AudioCallback func(chunk events.AgentAudioChunk)
	// InterruptionCallback is called when the caller barges in and buffered
	// agent audio should be flushed from playback.
	InterruptionCallback func(interruption events.AgentInterruption)
	// AgentTranscriptCallback is called with transcribed agent speech.
	AgentTranscriptCallback func(transcript events.AgentTranscript)
	// UserTranscriptCallback is called with transcribed caller speech.
	UserTranscriptCallback func(transcript events.UserTranscript)
	// MetadataCallback is called when the agent acknowledges initiation.
	MetadataCallback func(metadata events.InitiationMetadata)
	// ClosedCallback is called exactly once when the session connection ends,
	// with the read error that ended it (nil on a clean close).
	ClosedCallback func(err error)
}

type SessionOption func(*SessionOptions)

func WithPrompt(prompt string) SessionOption {
	return func(o *SessionOptions) {
		o.Prompt = &prompt
	}
}

func WithFirstMessage(firstMessage string) SessionOption {
	return func(o *SessionOptions) {
		o.FirstMessage = &firstMessage
	}
}

func WithDynamicVariables(variables map[string]any) SessionOption {
	return func(o *SessionOptions) {
		o.DynamicVariables = variables
	}
}

func WithAudioCallback(callback func(chunk events.AgentAudioChunk)) SessionOption {
	return func(o *SessionOptions) {
		o.AudioCallback = callback
	}
}

func WithInterruptionCallback(callback func(interruption events.AgentInterruption)) SessionOption {
	return func(o *SessionOptions) {
		o.InterruptionCallback = callback
	}
}

func WithAgentTranscriptCallback(callback func(transcript events.AgentTranscript)) SessionOption {
	return func(o *SessionOptions) {
		o.AgentTranscriptCallback = callback
	}
}

func WithUserTranscriptCallback(callback func(transcript events.UserTranscript)) SessionOption {
	return func(o *SessionOptions) {
		o.UserTranscriptCallback = callback
	}
}

func WithMetadataCallback(callback func(metadata events.InitiationMetadata)) SessionOption {
	return func(o *SessionOptions) {
		o.MetadataCallback = callback
	}
}

func WithClosedCallback(callback func(err error)) SessionOption {
	return func(o *SessionOptions) {
		o.ClosedCallback = callback
	}
}
