package events

import "testing"

func TestConstructorsEmitExpectedKinds(t *testing.T) {
	testCases := []struct {
		name     string
		event    Event
		expected Kind
	}{
		{name: "call started", event: NewCallStarted("S1", "C1", nil), expected: KindCallStarted},
		{name: "call media", event: NewCallMedia("QUJD"), expected: KindCallMedia},
		{name: "call stopped", event: NewCallStopped(), expected: KindCallStopped},
		{name: "agent audio chunk", event: NewAgentAudioChunk("QUJD"), expected: KindAgentAudioChunk},
		{name: "agent interruption", event: NewAgentInterruption(), expected: KindAgentInterruption},
		{name: "agent transcript", event: NewAgentTranscript("text"), expected: KindAgentTranscript},
		{name: "user transcript", event: NewUserTranscript("text"), expected: KindUserTranscript},
		{name: "initiation metadata", event: NewInitiationMetadata(), expected: KindInitiationMetadata},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			if got := testCase.event.Kind(); got != testCase.expected {
				t.Fatalf("expected kind %q, got %q", testCase.expected, got)
			}
		})
	}
}

func TestCallStartedAndStoppedKindsAreDistinct(t *testing.T) {
	started := NewCallStarted("S1", "C1", nil)
	stopped := NewCallStopped()

	if started.Kind() == stopped.Kind() {
		t.Fatalf("expected call started and call stopped kinds to differ, both were %q", started.Kind())
	}
}

func TestCallStartedCarriesIdentifiers(t *testing.T) {
	event := NewCallStarted("S1", "C1", map[string]any{"prompt": "hi"})

	if event.StreamSID != "S1" || event.CallSID != "C1" {
		t.Fatalf("unexpected identifiers: %+v", event)
	}
	if got := event.CustomParameters["prompt"]; got != "hi" {
		t.Fatalf("expected custom parameters carried through, got %v", got)
	}
	if event.Timestamp().IsZero() {
		t.Fatal("expected a non-zero timestamp")
	}
}
