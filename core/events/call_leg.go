package events

const (
	// KindCallStarted identifies the telephony stream binding its identifiers.
	KindCallStarted Kind = "call_leg.started"
	// KindCallMedia identifies one frame of caller audio.
	KindCallMedia Kind = "call_leg.media"
	// KindCallStopped identifies the end of call audio.
	KindCallStopped Kind = "call_leg.stopped"
)

// CallStarted carries the identifiers and custom parameters bound by the
// telephony side when the media stream starts.
type CallStarted struct {
	Base
	StreamSID        string
	CallSID          string
	CustomParameters map[string]any
}

// NewCallStarted creates a call started event.
func NewCallStarted(streamSID, callSID string, customParameters map[string]any) CallStarted {
	return CallStarted{
		Base:             NewBase(KindCallStarted),
		StreamSID:        streamSID,
		CallSID:          callSID,
		CustomParameters: customParameters,
	}
}

// CallMedia carries one base64-encoded frame of caller audio, verbatim.
type CallMedia struct {
	Base
	Payload string
}

// NewCallMedia creates a call media event.
func NewCallMedia(payload string) CallMedia {
	return CallMedia{Base: NewBase(KindCallMedia), Payload: payload}
}

// CallStopped marks the end of call audio.
type CallStopped struct{ Base }

// NewCallStopped creates a call stopped event.
func NewCallStopped() CallStopped {
	return CallStopped{Base: NewBase(KindCallStopped)}
}
