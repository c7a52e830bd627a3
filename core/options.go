package bridge

import (
	"context"

	"github.com/koscakluka/bridge-core/core/telephony"
	"github.com/koscakluka/bridge-core/core/voiceagents"
)

// CallLeg is one inbound telephony media-stream connection.
type CallLeg interface {
	Listen(ctx context.Context, opts ...telephony.StreamOption) error
	SendMedia(streamSID, payload string) error
	SendClear(streamSID string) error
	Close() error
}

// AgentSession is one outbound connection to the voice-agent transport.
type AgentSession interface {
	SendUserAudio(audio string) error
	Close() error
}

// SignedURLFetcher obtains a one-time authenticated connection URL for an
// agent session.
type SignedURLFetcher interface {
	FetchSignedURL(ctx context.Context, agentID, apiKey string) (string, error)
}

// AgentDialer opens an agent session against a signed URL.
type AgentDialer func(ctx context.Context, signedURL string, opts ...voiceagents.SessionOption) (AgentSession, error)

type CoordinatorOption func(*Coordinator)

func WithSignedURLFetcher(fetcher SignedURLFetcher) CoordinatorOption {
	return func(c *Coordinator) {
		c.signedURLs = fetcher
	}
}

func WithAgentDialer(dialer AgentDialer) CoordinatorOption {
	return func(c *Coordinator) {
		c.dialAgent = dialer
	}
}

// WithAgentCredentials sets the agent identifier and API credential handed to
// the signed-URL fetcher.
func WithAgentCredentials(agentID, apiKey string) CoordinatorOption {
	return func(c *Coordinator) {
		c.agentID = agentID
		c.apiKey = apiKey
	}
}

// WithDefaultOverrides sets the prompt and first utterance used when a call
// start carries no overrides of its own.
func WithDefaultOverrides(prompt, firstMessage string) CoordinatorOption {
	return func(c *Coordinator) {
		c.defaultPrompt = prompt
		c.defaultFirstMessage = firstMessage
	}
}

// WithDynamicVariables sets the per-conversation variables forwarded in every
// session's initiation payload.
func WithDynamicVariables(variables map[string]any) CoordinatorOption {
	return func(c *Coordinator) {
		c.dynamicVariables = variables
	}
}
