package analyze

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

var thinkBlockRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// requiredFields must all be present at the top level of a provider response.
// Empty collections are fine; a missing field is a schema failure and the
// attempt is retried.
var requiredFields = []string{"title", "summary", "ideas", "tasks", "structured_notes"}

// cleanResponse strips reasoning markup and surrounding prose, keeping the
// outermost JSON object. Models that ignore the no-extra-text instruction
// still produce a recoverable payload this way.
func cleanResponse(raw string) string {
	cleaned := thinkBlockRe.ReplaceAllString(strings.TrimSpace(raw), "")

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start >= 0 && end > start {
		return cleaned[start : end+1]
	}
	return strings.TrimSpace(cleaned)
}

// parseResponse validates and decodes a provider response into a Result.
// Unknown top-level fields are ignored; the five required fields must be
// present. Unknown priority or note_type values fall back to Medium and
// Reference respectively.
func parseResponse(raw string) (*Result, error) {
	cleaned := cleanResponse(raw)

	var top map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &top); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %w", err)
	}

	for _, field := range requiredFields {
		value, ok := top[field]
		if !ok || string(value) == "null" {
			return nil, fmt.Errorf("response is missing required field %q", field)
		}
	}

	var result Result
	if err := json.Unmarshal([]byte(cleaned), &result); err != nil {
		return nil, fmt.Errorf("response does not match the analysis schema: %w", err)
	}

	if result.Ideas == nil {
		result.Ideas = []string{}
	}
	if result.Tasks == nil {
		result.Tasks = []TaskItem{}
	}
	if result.StructuredNotes == nil {
		result.StructuredNotes = []StructuredNote{}
	}

	for i := range result.Tasks {
		result.Tasks[i].Priority = normalizePriority(result.Tasks[i].Priority)
	}
	for i := range result.StructuredNotes {
		result.StructuredNotes[i].NoteType = normalizeNoteType(result.StructuredNotes[i].NoteType)
		if result.StructuredNotes[i].Tags == nil {
			result.StructuredNotes[i].Tags = []string{}
		}
	}

	return &result, nil
}

func normalizePriority(priority string) string {
	switch priority {
	case "Low", "Medium", "High", "Urgent":
		return priority
	}
	return "Medium"
}

func normalizeNoteType(noteType string) string {
	switch noteType {
	case "Meeting", "Brainstorm", "Decision", "Action", "Reference":
		return noteType
	}
	return "Reference"
}
