package twilio

import (
	"strings"
	"testing"
)

func TestStreamTwiML(t *testing.T) {
	doc, err := StreamTwiML("wss://bridge.example/outbound-media-stream", map[string]string{
		"prompt":        "you are a scheduling assistant",
		"first_message": "hello there",
	})
	if err != nil {
		t.Fatalf("failed to render call setup document: %v", err)
	}

	if !strings.HasPrefix(doc, "<?xml") {
		t.Errorf("expected an xml header, got %q", doc[:min(len(doc), 20)])
	}
	for _, want := range []string{
		`<Response>`,
		`<Connect>`,
		`<Stream url="wss://bridge.example/outbound-media-stream">`,
		`<Parameter name="first_message" value="hello there">`,
		`<Parameter name="prompt" value="you are a scheduling assistant">`,
	} {
		if !strings.Contains(doc, want) {
			t.Errorf("expected document to contain %q, got:\n%s", want, doc)
		}
	}
}

func TestStreamTwiMLWithoutParameters(t *testing.T) {
	doc, err := StreamTwiML("wss://bridge.example/outbound-media-stream", nil)
	if err != nil {
		t.Fatalf("failed to render call setup document: %v", err)
	}
	if strings.Contains(doc, "<Parameter") {
		t.Errorf("expected no parameter elements, got:\n%s", doc)
	}
}
