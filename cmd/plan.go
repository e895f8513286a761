package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/ca-srg/tripintel/internal/render"
	"github.com/ca-srg/tripintel/internal/tripclient"
	"github.com/ca-srg/tripintel/internal/types"
	"github.com/ca-srg/tripintel/internal/view"
)

var (
	planDestination string
	planOrigin      string
	planExperience  string
	planServerURL   string
	planFormat      string
	planTimeout     time.Duration
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Request a travel intelligence report from a running server",
	Long: `
Request a travel report for a destination from a tripintel server and print
it. Failed calls to the server are retried with exponential backoff.

Output formats:
- text: the report as markdown followed by its sources (default)
- html: the sanitized report body and a source list
- json / yaml: the request, the report and its sources

Examples:
  tripintel plan -d "Kyoto, Japan"
  tripintel plan -d Lisbon -o Toronto -e "seafood and fado" --format html
  tripintel plan -d Reykjavik --server http://planner.internal:3000 --format yaml
`,
	RunE: runPlan,
}

// serverURLEnv overrides the default --server value
const serverURLEnv = "TRIPINTEL_SERVER_URL"

func init() {
	registerPlanFlags(planCmd.Flags())
}

func registerPlanFlags(fs *pflag.FlagSet) {
	fs.StringVarP(&planDestination, "destination", "d", "", "Travel destination (required)")
	fs.StringVarP(&planOrigin, "origin", "o", "", "Origin city or country")
	fs.StringVarP(&planExperience, "experience", "e", "", "Desired experience")
	fs.StringVar(&planServerURL, "server", "http://localhost:3000", "Base URL of the tripintel server (env "+serverURLEnv+")")
	fs.StringVarP(&planFormat, "format", "f", "text", "Output format: text|html|json|yaml")
	fs.DurationVar(&planTimeout, "timeout", 10*time.Minute, "Overall deadline including retries")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if !validFormat(planFormat) {
		return fmt.Errorf("invalid format: %s. Valid formats: text, html, json, yaml", planFormat)
	}

	req := types.TripRequest{
		Destination: planDestination,
		Origin:      planOrigin,
		Experience:  planExperience,
	}.Normalized()
	if req.Destination == "" {
		return errors.New(view.MsgInvalidDestination)
	}

	loadDotEnv()
	serverURL := planServerURL
	if env := strings.TrimSpace(os.Getenv(serverURLEnv)); env != "" && !cmd.Flags().Changed("server") {
		serverURL = env
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), planTimeout)
	defer cancel()

	client := tripclient.New(serverURL,
		tripclient.WithLogger(log.New(os.Stderr, "[tripclient] ", log.LstdFlags)),
	)

	fmt.Fprintf(os.Stderr, "%s %s\n", view.ButtonLabelPending, req.Destination)

	state := planState(ctx, client, req)
	page := view.Build(state)
	if page.Severity != view.SeverityNone {
		return errors.New(page.Message)
	}
	return writeReport(cmd.OutOrStdout(), planFormat, req, state.Report)
}

type tripPlanner interface {
	PlanTrip(ctx context.Context, req types.TripRequest) (json.RawMessage, error)
}

// planState runs one request and maps the outcome to a view state
func planState(ctx context.Context, client tripPlanner, req types.TripRequest) view.State {
	state := view.State{Request: req}

	raw, err := client.PlanTrip(ctx, req)
	if err != nil {
		state.Phase = view.PhaseFailed
		state.Err = err
		return state
	}

	report, err := render.Render(raw)
	switch {
	case errors.Is(err, render.ErrNoContent):
		state.Phase = view.PhaseNoContent
	case err != nil:
		state.Phase = view.PhaseFailed
		state.Err = err
	default:
		state.Phase = view.PhaseReport
		state.Report = report
	}
	return state
}

func validFormat(f string) bool {
	switch f {
	case "text", "html", "json", "yaml":
		return true
	}
	return false
}

// reportHTML mirrors the report and sources sections of the server page.
var reportHTML = template.Must(template.New("report").Parse(`<h1>Travel Report: {{.Request.Destination}}</h1>
{{.Body}}
{{if .ShowSources}}<h2>Sources</h2>
<ul>
{{range .Sources}}<li><a href="{{.URI}}" target="_blank" rel="noopener noreferrer">{{.Title}}</a></li>
{{end}}</ul>
{{end}}`))

type planOutput struct {
	Request types.TripRequest `json:"request" yaml:"request"`
	Report  *render.Report    `json:"report" yaml:"report"`
}

func writeReport(w io.Writer, format string, req types.TripRequest, report *render.Report) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(planOutput{Request: req, Report: report})
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(planOutput{Request: req, Report: report}); err != nil {
			return fmt.Errorf("failed to encode yaml: %w", err)
		}
		return enc.Close()
	case "html":
		page := view.Build(view.State{Phase: view.PhaseReport, Request: req, Report: report})
		return reportHTML.Execute(w, page)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "Travel Report: %s\n\n%s\n", req.Destination, strings.TrimSpace(report.Markdown))
		if report.HasSources() {
			b.WriteString("\nSources:\n")
			for i, s := range report.Sources {
				fmt.Fprintf(&b, "  %d. %s\n     %s\n", i+1, s.Title, s.URI)
			}
		}
		_, err := io.WriteString(w, b.String())
		return err
	}
}
