package types

import (
	"strings"

	"golang.org/x/text/unicode/norm"
	"google.golang.org/genai"
)

// TripRequest is the body accepted by POST /api/plan-trip
type TripRequest struct {
	Destination string `json:"destination" yaml:"destination"`
	Origin      string `json:"origin,omitempty" yaml:"origin,omitempty"`
	Experience  string `json:"experience,omitempty" yaml:"experience,omitempty"`
}

// Normalized returns a copy with every field trimmed and NFC-normalized
func (r TripRequest) Normalized() TripRequest {
	return TripRequest{
		Destination: normalizeInput(r.Destination),
		Origin:      normalizeInput(r.Origin),
		Experience:  normalizeInput(r.Experience),
	}
}

func normalizeInput(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}

// APIResult is the subset of the Gemini generateContent response the renderer reads
type APIResult struct {
	Candidates []Candidate `json:"candidates"`
}

// Candidate is one generated response variation
type Candidate struct {
	Content           *CandidateContent  `json:"content,omitempty"`
	GroundingMetadata *GroundingMetadata `json:"groundingMetadata,omitempty"`
}

// CandidateContent holds the generated parts
type CandidateContent struct {
	Parts []ContentPart `json:"parts"`
}

// ContentPart is a single text part
type ContentPart struct {
	Text string `json:"text"`
}

// GroundingMetadata carries the citations attached to a candidate.
// GroundingChunks is the shape returned by current API versions and is only
// consulted when GroundingAttributions is empty.
type GroundingMetadata struct {
	GroundingAttributions []GroundingAttribution  `json:"groundingAttributions,omitempty"`
	GroundingChunks       []*genai.GroundingChunk `json:"groundingChunks,omitempty"`
	WebSearchQueries      []string                `json:"webSearchQueries,omitempty"`
}

// GroundingAttribution links generated text to a web source
type GroundingAttribution struct {
	Web *WebSource `json:"web,omitempty"`
}

// WebSource is the web reference of an attribution
type WebSource struct {
	URI   string `json:"uri,omitempty"`
	Title string `json:"title,omitempty"`
}

// Source is a complete citation shown next to a report
type Source struct {
	URI   string `json:"uri" yaml:"uri"`
	Title string `json:"title" yaml:"title"`
}

// ErrorBody is the JSON error shape returned by the API
type ErrorBody struct {
	Error string `json:"error"`
}
