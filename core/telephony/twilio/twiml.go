package twilio

import (
	"encoding/xml"
	"fmt"
	"slices"
)

// StreamTwiML renders the call-setup document that instructs the telephony
// provider to open a bidirectional media stream to the given websocket URL,
// carrying the custom parameters as stream connection parameters.
func StreamTwiML(streamURL string, parameters map[string]string) (string, error) {
	doc := twimlResponse{}
	doc.Connect.Stream.URL = streamURL
	names := make([]string, 0, len(parameters))
	for name := range parameters {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		doc.Connect.Stream.Parameters = append(doc.Connect.Stream.Parameters,
			twimlParameter{Name: name, Value: parameters[name]})
	}

	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to render call setup document: %w", err)
	}
	return xml.Header + string(body), nil
}

type twimlResponse struct {
	XMLName xml.Name `xml:"Response"`
	Connect struct {
		Stream struct {
			URL        string           `xml:"url,attr"`
			Parameters []twimlParameter `xml:"Parameter"`
		} `xml:"Stream"`
	} `xml:"Connect"`
}

type twimlParameter struct {
	Name  string `xml:"name,attr"`
	Value string `xml:"value,attr"`
}
