// Package paper defines the wire-level document types shared by the editor
// client and the backend: the aggregate document, the list entry, and the
// generation request.
package paper

import (
	"encoding/json"
	"fmt"

	"github.com/paperdesk/paperdesk/section"
)

// Info is one entry of the paper list.
type Info struct {
	ID           string `json:"id"`
	DocumentName string `json:"documentName"`
}

// Document is the aggregate of one paper: its name and per-section state.
// It is owned exclusively by the active editing session and loaded/saved
// wholesale.
//
// The JSON form is flat, matching the historical payload: one
// {content, status} object per section key plus a documentName string at
// the same level.
type Document struct {
	ID           string
	DocumentName string
	Sections     map[string]section.State
}

// New creates an empty document for the given structure.
func New(id, name string, g *section.Graph) *Document {
	sections := make(map[string]section.State, len(g.AllKeys()))
	for _, key := range g.AllKeys() {
		sections[key] = section.State{Status: section.StatusEmpty}
	}
	return &Document{ID: id, DocumentName: name, Sections: sections}
}

// wireState is the serialized per-section entry.
type wireState struct {
	Content string         `json:"content"`
	Status  section.Status `json:"status"`
}

// MarshalJSON emits the flat document payload. The ID is routing
// information and is not part of the body.
func (d *Document) MarshalJSON() ([]byte, error) {
	flat := make(map[string]any, len(d.Sections)+1)
	flat["documentName"] = d.DocumentName
	for key, st := range d.Sections {
		flat[key] = wireState{Content: st.Content, Status: st.Status}
	}
	return json.Marshal(flat)
}

// UnmarshalJSON reads the flat document payload. Entries that are not
// section objects are ignored, mirroring the tolerant historical loader.
func (d *Document) UnmarshalJSON(data []byte) error {
	var flat map[string]json.RawMessage
	if err := json.Unmarshal(data, &flat); err != nil {
		return fmt.Errorf("decode document: %w", err)
	}

	d.Sections = make(map[string]section.State, len(flat))
	for key, raw := range flat {
		if key == "documentName" {
			if err := json.Unmarshal(raw, &d.DocumentName); err != nil {
				return fmt.Errorf("decode documentName: %w", err)
			}
			continue
		}
		var ws wireState
		if err := json.Unmarshal(raw, &ws); err != nil {
			continue
		}
		d.Sections[key] = section.State{Content: ws.Content, Status: ws.Status}
	}
	return nil
}

// GenerateRequest is the body of a section generation call. Field names
// match the backend contract.
type GenerateRequest struct {
	APIKey        string    `json:"apiKey"`
	Model         string    `json:"model"`
	Temperature   float64   `json:"temperature"`
	Language      string    `json:"language"`
	TargetSection string    `json:"target_section"`
	PaperData     *Document `json:"paper_data"`
	ActionType    string    `json:"action_type"`
	UserPrompt    string    `json:"user_prompt,omitempty"`
}
