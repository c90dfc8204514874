package survey

import "github.com/civiq-care/backend/internal/scoring"

// Directive is a render instruction returned by the Engine and consumed by a
// transport (HTTP handler, Telegram bot). The Engine never formats text; it
// tells the transport what to show.
type Directive interface {
	directive()
}

// Question asks the transport to render one questionnaire item with its
// answer options.
type Question struct {
	Ordinal int
	Total   int
	Text    string
	Options []int
}

// AlreadyCompleted signals that the user finished the survey earlier and no
// state was changed.
type AlreadyCompleted struct{}

// CompletionSummary is emitted exactly once, on the terminal transition.
// PersistWarning is set when the durable write failed; the completion itself
// stands regardless.
type CompletionSummary struct {
	Score          scoring.Result
	PersistWarning bool
}

// Results carries a completed session's answers and score for display.
type Results struct {
	Answers map[int]int
	Score   scoring.Result
}

// ResetConfirmation signals that the user's session was removed.
type ResetConfirmation struct{}

// Cancelled signals that an in-progress session was discarded without
// scoring or persisting.
type Cancelled struct{}

func (Question) directive()          {}
func (AlreadyCompleted) directive()  {}
func (CompletionSummary) directive() {}
func (Results) directive()           {}
func (ResetConfirmation) directive() {}
func (Cancelled) directive()         {}
