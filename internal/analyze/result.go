// Package analyze extracts a structured result (title, summary, ideas,
// tasks, notes) from transcript text through a pluggable text-analysis
// provider, with language-aware prompting and bounded retry.
package analyze

// Result is the structured analysis of one transcript. The JSON shape is the
// wire contract with the provider: the five top-level fields are required in
// provider output, with empty collections allowed.
type Result struct {
	Title           string           `json:"title"`
	Summary         string           `json:"summary"`
	Ideas           []string         `json:"ideas"`
	Tasks           []TaskItem       `json:"tasks"`
	StructuredNotes []StructuredNote `json:"structured_notes"`
}

// TaskItem is one actionable task in a Result
type TaskItem struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Priority    string `json:"priority"`
}

// StructuredNote is one structured note in a Result
type StructuredNote struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	Tags     []string `json:"tags"`
	NoteType string   `json:"note_type"`
}

// Empty reports whether the result carries no extracted content
func (r *Result) Empty() bool {
	return r.Title == "" && r.Summary == "" &&
		len(r.Ideas) == 0 && len(r.Tasks) == 0 && len(r.StructuredNotes) == 0
}

func emptyResult() *Result {
	return &Result{
		Ideas:           []string{},
		Tasks:           []TaskItem{},
		StructuredNotes: []StructuredNote{},
	}
}
