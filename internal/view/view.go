// Package view maps the state of a trip request to what the page shows.
// It has no side effects; the server templates and the CLI both consume
// the returned Page.
package view

import (
	"html/template"

	"github.com/ca-srg/tripintel/internal/render"
	"github.com/ca-srg/tripintel/internal/types"
)

// Phase is the lifecycle step of the single active request
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseInvalid   Phase = "invalid"
	PhasePending   Phase = "pending"
	PhaseReport    Phase = "report"
	PhaseNoContent Phase = "no_content"
	PhaseFailed    Phase = "failed"
)

// Severity of a user-facing message
type Severity string

const (
	SeverityNone    Severity = ""
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

const (
	ButtonLabelIdle    = "Plan My Trip"
	ButtonLabelPending = "Planning..."

	MsgInvalidDestination = "Please enter a valid travel destination to begin."
	MsgNoContent          = "Could not generate a travel report. Please try a different destination or check your input."
	msgFailedPrefix       = "An unexpected error occurred while processing your request. Please try again later."
)

// State is everything the page depends on
type State struct {
	Phase   Phase
	Request types.TripRequest
	Report  *render.Report
	Err     error
}

// Page is the render description of a State
type Page struct {
	Request         types.TripRequest
	ButtonLabel     string
	ButtonDisabled  bool
	ShowLoading     bool
	ShowTitle       bool
	ShowSources     bool
	ShowPlaceholder bool
	Message         string
	Severity        Severity
	// Body is sanitized by the renderer and safe to emit unescaped.
	Body    template.HTML
	Sources []types.Source
}

// Build derives the Page for a State
func Build(s State) Page {
	page := Page{
		Request:     s.Request,
		ButtonLabel: ButtonLabelIdle,
	}

	switch s.Phase {
	case PhasePending:
		page.ButtonLabel = ButtonLabelPending
		page.ButtonDisabled = true
		page.ShowLoading = true
	case PhaseInvalid:
		page.Message = MsgInvalidDestination
		page.Severity = SeverityWarning
	case PhaseNoContent:
		page.Message = MsgNoContent
		page.Severity = SeverityWarning
	case PhaseFailed:
		page.Message = FailureMessage(s.Err)
		page.Severity = SeverityError
	case PhaseReport:
		if s.Report == nil {
			page.Message = MsgNoContent
			page.Severity = SeverityWarning
			break
		}
		// Report.HTML only ever comes out of the sanitizing renderer.
		page.Body = template.HTML(s.Report.HTML)
		page.ShowTitle = true
		if s.Report.HasSources() {
			page.ShowSources = true
			page.Sources = s.Report.Sources
		}
	default:
		page.ShowPlaceholder = true
	}

	return page
}

// FailureMessage is the text shown when a request could not be completed
func FailureMessage(err error) string {
	if err == nil {
		return msgFailedPrefix
	}
	return msgFailedPrefix + " (" + err.Error() + ")"
}
