// Package prompt holds the instruction sets sent to the vision model.
// The instructions are configuration, not code: each document type gets a
// profile, loadable from a JSON file and validated before use.
package prompt

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
)

// Profile describes the desired output shape for one document type.
type Profile struct {
	Name         string `json:"name"`
	Instructions string `json:"instructions"`
}

// MessageLog is the built-in profile for exported message-log PDFs
// (iMessage/SMS extractions): each message bubble becomes a left- or
// right-aligned div, timestamps follow their message's alignment, and
// running headers/footers are suppressed.
func MessageLog() *Profile {
	return &Profile{
		Name: "imessage-log",
		Instructions: strings.TrimSpace(`
You are an AI assistant processing message logs.
Your goal is to extract messages and format them as HTML divs based on their alignment in the image to reconstruct the conversation flow.

Instructions:
1. Identify all message bubbles on the page.
2. If a message is visually on the RIGHT side (usually outgoing/blue), format it as:
   <div style="text-align: right; margin: 5px; color: #0066cc;">[CONTENT]</div>
3. If a message is visually on the LEFT side (usually incoming/gray), format it as:
   <div style="text-align: left; margin: 5px; color: #333;">[CONTENT]</div>
4. If there is a timestamp, format it with the same alignment as the associated message.
5. IGNORE page headers or footers like "Page X of Y", "iMessage", "extract by DigiDNA", etc.
6. Output ONLY the HTML strings, one per line. Do not wrap in markdown code blocks.
`),
	}
}

// Load reads a profile from a JSON file and validates it against the
// profile schema. Errors are never silently swallowed into the built-in
// default; an unreadable or invalid file fails the run.
func Load(path string) (*Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read profile %q: %w", path, err)
	}
	if err := validateProfileJSON(raw); err != nil {
		return nil, fmt.Errorf("profile %q: %w", path, err)
	}
	var p Profile
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, fmt.Errorf("parse profile %q: %w", path, err)
	}
	return &p, nil
}
