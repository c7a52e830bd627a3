package telephony

import "github.com/koscakluka/bridge-core/core/events"

type StreamOptions struct {
	// StartCallback is called once the telephony side binds the stream and
	// call identifiers and supplies the custom parameters.
	StartCallback func(started events.CallStarted)
	// MediaCallback is called with each base64 frame of caller audio,
	// exactly as carried on the wire.
	MediaCallback func(media events.CallMedia)
	// StopCallback is called when the telephony side signals the end of
	// call audio. The underlying connection closes separately.
	StopCallback func(stopped events.CallStopped)
}

type StreamOption func(*StreamOptions)

func WithStartCallback(callback func(started events.CallStarted)) StreamOption {
	return func(o *StreamOptions) {
		o.StartCallback = callback
	}
}

func WithMediaCallback(callback func(media events.CallMedia)) StreamOption {
	return func(o *StreamOptions) {
		o.MediaCallback = callback
	}
}

func WithStopCallback(callback func(stopped events.CallStopped)) StreamOption {
	return func(o *StreamOptions) {
		o.StopCallback = callback
	}
}
