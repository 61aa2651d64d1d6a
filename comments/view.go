package comments

import (
	"context"
	"log/slog"
)

// State is the per-view submission state.
type State int

const (
	// AwaitingSubmission is the initial state: the form is shown.
	AwaitingSubmission State = iota
	// Submitted is terminal for a view: the thank-you panel replaces the form.
	Submitted
)

func (s State) String() string {
	switch s {
	case AwaitingSubmission:
		return "awaiting-submission"
	case Submitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Outcome classifies the result of a submit attempt.
type Outcome int

const (
	Success Outcome = iota
	ValidationError
	TransportError
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case ValidationError:
		return "validation-error"
	case TransportError:
		return "transport-error"
	default:
		return "unknown"
	}
}

// Result is returned by View.Submit. Fields is set for ValidationError and
// Err for TransportError.
type Result struct {
	Outcome Outcome
	Fields  FieldErrors
	Err     error
}

// View holds the comment form state for one page view. It is not safe for
// concurrent use; each request builds its own.
type View struct {
	state  State
	form   Form
	result Result
	logger *slog.Logger
}

// NewView returns a view in AwaitingSubmission. A nil logger uses slog.Default.
func NewView(logger *slog.Logger) *View {
	if logger == nil {
		logger = slog.Default()
	}
	return &View{logger: logger}
}

// Restore returns a view already in the Submitted state, used when the
// success is carried across a redirect.
func Restore(logger *slog.Logger) *View {
	v := NewView(logger)
	v.state = Submitted
	return v
}

func (v *View) State() State { return v.state }

// Form returns the last submitted (normalized) form, used to refill inputs.
func (v *View) Form() Form { return v.form }

// Last returns the result of the most recent Submit.
func (v *View) Last() Result { return v.result }

// Submit validates f and, when it passes, posts it once through p.
// Only a successful post moves the view to Submitted.
func (v *View) Submit(ctx context.Context, p Poster, f Form) Result {
	if v.state == Submitted {
		v.result = Result{Outcome: Success}
		return v.result
	}

	if fields := Validate(&f); fields != nil {
		v.form = f
		v.result = Result{Outcome: ValidationError, Fields: fields}
		return v.result
	}
	v.form = f

	if err := p.Post(ctx, f); err != nil {
		v.logger.Error("comment submission failed", "post_id", f.PostID, "error", err)
		v.result = Result{Outcome: TransportError, Err: err}
		return v.result
	}

	v.state = Submitted
	v.form = Form{PostID: f.PostID}
	v.result = Result{Outcome: Success}
	return v.result
}
