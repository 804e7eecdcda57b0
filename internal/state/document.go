package state

import "time"

// Document is the transport-friendly form of a Snapshot shared by the HTTP
// API and the MQTT bridge.
type Document struct {
	Availability        string       `json:"availability"`
	Power               int          `json:"power"`
	Routes              []RouteEntry `json:"routes"`
	InputNames          []string     `json:"inputNames"`
	OutputNames         []string     `json:"outputNames"`
	PresetNames         []string     `json:"presetNames"`
	LastUpdated         *time.Time   `json:"lastUpdated,omitempty"`
	LastSuccess         *time.Time   `json:"lastSuccess,omitempty"`
	LastError           string       `json:"lastError,omitempty"`
	ConsecutiveFailures int          `json:"consecutiveFailures"`
}

// RouteEntry is one output and the input feeding it.
type RouteEntry struct {
	Output int `json:"output"`
	Input  int `json:"input"`
}

// Document renders the snapshot for serialization.
func (s Snapshot) Document() Document {
	doc := Document{
		Availability:        s.Availability.String(),
		Power:               s.Status.Power,
		Routes:              make([]RouteEntry, 0, len(s.Status.Routes)),
		InputNames:          orEmpty(s.Status.InputNames),
		OutputNames:         orEmpty(s.Status.OutputNames),
		PresetNames:         orEmpty(s.Status.PresetNames),
		ConsecutiveFailures: s.ConsecutiveFailures,
	}
	for i, input := range s.Status.Routes {
		doc.Routes = append(doc.Routes, RouteEntry{Output: i + 1, Input: input})
	}
	if !s.LastUpdated.IsZero() {
		t := s.LastUpdated.UTC()
		doc.LastUpdated = &t
	}
	if !s.LastSuccess.IsZero() {
		t := s.LastSuccess.UTC()
		doc.LastSuccess = &t
	}
	if s.LastError != nil {
		doc.LastError = s.LastError.Error()
	}
	return doc
}

func orEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
