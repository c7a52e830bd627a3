package elevenlabs

import (
	"time"

	"github.com/koscakluka/bridge-core/core/voiceagents"
)

// agentMessage covers every inbound shape the agent transport produces,
// keyed by the type discriminator.
type agentMessage struct {
	Type string `json:"type"`

	// Audio chunks appear under one of two payload shapes depending on the
	// provider version; both are checked, the direct chunk field wins.
	Audio *struct {
		Chunk string `json:"chunk"`
	} `json:"audio,omitempty"`
	AudioEvent *struct {
		AudioBase64 string `json:"audio_base_64"`
	} `json:"audio_event,omitempty"`

	PingEvent *struct {
		EventID int `json:"event_id"`
	} `json:"ping_event,omitempty"`

	AgentResponseEvent *struct {
		AgentResponse string `json:"agent_response"`
	} `json:"agent_response_event,omitempty"`
	UserTranscriptionEvent *struct {
		UserTranscript string `json:"user_transcript"`
	} `json:"user_transcription_event,omitempty"`
}

func (m agentMessage) audioChunk() (string, bool) {
	if m.Audio != nil && m.Audio.Chunk != "" {
		return m.Audio.Chunk, true
	}
	if m.AudioEvent != nil && m.AudioEvent.AudioBase64 != "" {
		return m.AudioEvent.AudioBase64, true
	}
	return "", false
}

type userAudioChunk struct {
	UserAudioChunk string `json:"user_audio_chunk"`
}

type pongMessage struct {
	Type    string `json:"type"`
	EventID int    `json:"event_id"`
}

func pongMsg(eventID int) pongMessage {
	return pongMessage{Type: "pong", EventID: eventID}
}

type initiationPayload struct {
	Type                       string                     `json:"type"`
	ConversationConfigOverride conversationConfigOverride `json:"conversation_config_override"`
	DynamicVariables           map[string]any             `json:"dynamic_variables,omitempty"`
}

type conversationConfigOverride struct {
	Agent agentOverride `json:"agent"`
}

type agentOverride struct {
	Prompt       *agentPrompt `json:"prompt,omitempty"`
	FirstMessage string       `json:"first_message,omitempty"`
}

type agentPrompt struct {
	Prompt string `json:"prompt"`
}

func newInitiationPayload(options voiceagents.SessionOptions) initiationPayload {
	payload := initiationPayload{
		Type:             "conversation_initiation_client_data",
		DynamicVariables: options.DynamicVariables,
	}
	if options.Prompt != nil {
		payload.ConversationConfigOverride.Agent.Prompt = &agentPrompt{Prompt: *options.Prompt}
	}
	if options.FirstMessage != nil {
		payload.ConversationConfigOverride.Agent.FirstMessage = *options.FirstMessage
	}
	return payload
}

func closeWriteDeadline() time.Time {
	return time.Now().Add(time.Second)
}
