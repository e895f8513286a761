// Package render turns a generateContent response into a sanitized HTML
// report with its grounding sources.
package render

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	gmhtml "github.com/yuin/goldmark/renderer/html"

	"github.com/ca-srg/tripintel/internal/types"
)

// ErrNoContent is returned when the response carries no generated text.
// Callers show a fallback message; it is not a failure of the request.
var ErrNoContent = errors.New("render: response contains no generated text")

// Report is a rendered travel report
type Report struct {
	// HTML is the sanitized body, safe to insert into a page.
	HTML string `json:"html" yaml:"html"`
	// Markdown is the generated text as returned upstream.
	Markdown string         `json:"markdown" yaml:"markdown"`
	Sources  []types.Source `json:"sources" yaml:"sources"`
}

// HasSources reports whether the sources panel should be shown
func (r *Report) HasSources() bool {
	return r != nil && len(r.Sources) > 0
}

// Renderer converts markdown to HTML and sanitizes the result
type Renderer struct {
	markdown goldmark.Markdown
	policy   *bluemonday.Policy
}

// New creates a Renderer. Raw HTML in the markdown is passed through to the
// sanitizer rather than escaped.
func New() *Renderer {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithRendererOptions(gmhtml.WithUnsafe()),
	)

	policy := bluemonday.UGCPolicy()
	policy.AddTargetBlankToFullyQualifiedLinks(true)

	return &Renderer{markdown: md, policy: policy}
}

var defaultRenderer = New()

// Render decodes a raw API response and renders it with the default Renderer
func Render(raw []byte) (*Report, error) {
	return defaultRenderer.Render(raw)
}

// Render decodes a raw API response and renders it
func (r *Renderer) Render(raw []byte) (*Report, error) {
	var result types.APIResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("render: failed to decode response: %w", err)
	}
	return r.RenderResult(&result)
}

// RenderResult renders an already decoded API response
func (r *Renderer) RenderResult(result *types.APIResult) (*Report, error) {
	text := ExtractText(result)
	if text == "" {
		return nil, ErrNoContent
	}

	body, err := r.ToHTML(text)
	if err != nil {
		return nil, err
	}

	var candidate *types.Candidate
	if len(result.Candidates) > 0 {
		candidate = &result.Candidates[0]
	}

	return &Report{
		HTML:     body,
		Markdown: text,
		Sources:  ExtractSources(candidate),
	}, nil
}

// ToHTML converts markdown to sanitized HTML. There is no variant that skips
// sanitization.
func (r *Renderer) ToHTML(markdown string) (string, error) {
	var buf bytes.Buffer
	if err := r.markdown.Convert([]byte(markdown), &buf); err != nil {
		return "", fmt.Errorf("render: failed to convert markdown: %w", err)
	}
	return r.policy.Sanitize(buf.String()), nil
}

// ExtractText returns candidates[0].content.parts[0].text, or "" when any
// step of the path is missing.
func ExtractText(result *types.APIResult) string {
	if result == nil || len(result.Candidates) == 0 {
		return ""
	}
	content := result.Candidates[0].Content
	if content == nil || len(content.Parts) == 0 {
		return ""
	}
	return content.Parts[0].Text
}
