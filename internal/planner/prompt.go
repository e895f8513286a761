package planner

import (
	"fmt"

	"google.golang.org/genai"

	"github.com/ca-srg/tripintel/internal/types"
)

const (
	defaultPromptOrigin = "the user's origin city"
	defaultQueryOrigin  = "an unspecified location"
)

const systemPromptTemplate = `You are a specialized, comprehensive travel analyst and risk assessor. Your task is to provide a detailed, single-block travel report for the user's requested destination, using real-time information from Google Search.

  ## 1. Logistics & Booking Estimates
  - Provide current flight price ranges for travel from %s (including airports searched).
  - List accommodation type recommendations and price estimates (e.g., luxury, mid-range, budget hostels).

  ## 2. Local Safety & Real-Time News
  - Summarize the latest, most relevant news or advisories for travelers.
  - Provide an objective assessment of the crime rate and specific safety concerns.
  - Clearly identify areas that are known to be tourism-friendly and those that are recommended to avoid.

  ## 3. Culture, Food & Guides
  - Recommend must-try local foods and dining areas.
  - List major travel centers (e.g., transit hubs, main information offices).
  - Recommend 1-3 highly-rated, local travel guides or guide services.`

// Payload is the generateContent request body sent upstream
type Payload struct {
	Contents          []*genai.Content `json:"contents"`
	Tools             []Tool           `json:"tools"`
	SystemInstruction *genai.Content   `json:"systemInstruction"`
}

// Tool enables a server-side tool for the request
type Tool struct {
	GoogleSearch *GoogleSearch `json:"google_search,omitempty"`
}

// GoogleSearch turns on Google Search grounding; it takes no options
type GoogleSearch struct{}

// SystemPrompt returns the travel analyst instruction for the given origin
func SystemPrompt(origin string) string {
	if origin == "" {
		origin = defaultPromptOrigin
	}
	return fmt.Sprintf(systemPromptTemplate, origin)
}

// UserQuery returns the user turn for a trip request
func UserQuery(req types.TripRequest) string {
	origin := req.Origin
	if origin == "" {
		origin = defaultQueryOrigin
	}

	query := fmt.Sprintf("Generate a full travel intelligence report for traveling from %s to: %s.", origin, req.Destination)
	if req.Experience != "" {
		query += fmt.Sprintf(" The user is specifically looking for the following experience: %s. Tailor all recommendations (accommodation, food, guides, and area suggestions) to meet this request.", req.Experience)
	}
	return query
}

// BuildPayload assembles the upstream request body for a trip request
func BuildPayload(req types.TripRequest) Payload {
	return Payload{
		Contents: []*genai.Content{
			{Parts: []*genai.Part{genai.NewPartFromText(UserQuery(req))}},
		},
		Tools: []Tool{
			{GoogleSearch: &GoogleSearch{}},
		},
		SystemInstruction: &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(SystemPrompt(req.Origin))},
		},
	}
}
