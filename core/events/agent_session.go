package events

const (
	// KindAgentAudioChunk identifies one frame of synthesized agent audio.
	KindAgentAudioChunk Kind = "agent_session.audio_chunk"
	// KindAgentInterruption identifies a barge-in by the caller.
	KindAgentInterruption Kind = "agent_session.interruption"
	// KindAgentTranscript identifies transcribed agent speech.
	KindAgentTranscript Kind = "agent_session.transcript"
	// KindUserTranscript identifies transcribed caller speech.
	KindUserTranscript Kind = "agent_session.user_transcript"
	// KindInitiationMetadata identifies the session initiation acknowledgment.
	KindInitiationMetadata Kind = "agent_session.initiation_metadata"
)

// AgentAudioChunk carries one base64-encoded frame of agent audio, verbatim.
type AgentAudioChunk struct {
	Base
	Audio string
}

// NewAgentAudioChunk creates an agent audio chunk event.
func NewAgentAudioChunk(audio string) AgentAudioChunk {
	return AgentAudioChunk{Base: NewBase(KindAgentAudioChunk), Audio: audio}
}

// AgentInterruption marks a caller barge-in.
type AgentInterruption struct{ Base }

// NewAgentInterruption creates an interruption event.
func NewAgentInterruption() AgentInterruption {
	return AgentInterruption{Base: NewBase(KindAgentInterruption)}
}

// AgentTranscript carries transcribed agent speech, surfaced for
// observability only.
type AgentTranscript struct {
	Base
	Text string
}

// NewAgentTranscript creates an agent transcript event.
func NewAgentTranscript(text string) AgentTranscript {
	return AgentTranscript{Base: NewBase(KindAgentTranscript), Text: text}
}

// UserTranscript carries transcribed caller speech, surfaced for
// observability only.
type UserTranscript struct {
	Base
	Text string
}

// NewUserTranscript creates a user transcript event.
func NewUserTranscript(text string) UserTranscript {
	return UserTranscript{Base: NewBase(KindUserTranscript), Text: text}
}

// InitiationMetadata marks the agent session acknowledging initiation.
type InitiationMetadata struct{ Base }

// NewInitiationMetadata creates an initiation metadata event.
func NewInitiationMetadata() InitiationMetadata {
	return InitiationMetadata{Base: NewBase(KindInitiationMetadata)}
}
