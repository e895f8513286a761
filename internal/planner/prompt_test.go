package planner

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ca-srg/tripintel/internal/types"
)

func TestSystemPrompt(t *testing.T) {
	t.Parallel()

	assert.Contains(t, SystemPrompt(""), "travel from the user's origin city (including airports searched)")
	assert.Contains(t, SystemPrompt("Tokyo"), "travel from Tokyo (including airports searched)")
	assert.True(t, strings.HasPrefix(SystemPrompt("Tokyo"), "You are a specialized, comprehensive travel analyst and risk assessor."))
	assert.Contains(t, SystemPrompt(""), "## 3. Culture, Food & Guides")
}

func TestUserQuery(t *testing.T) {
	t.Parallel()

	testcases := []struct {
		name string
		req  types.TripRequest
		want string
	}{
		{
			name: "destination only",
			req:  types.TripRequest{Destination: "Rome"},
			want: "Generate a full travel intelligence report for traveling from an unspecified location to: Rome.",
		},
		{
			name: "with origin",
			req:  types.TripRequest{Destination: "Rome", Origin: "Berlin"},
			want: "Generate a full travel intelligence report for traveling from Berlin to: Rome.",
		},
		{
			name: "with experience",
			req:  types.TripRequest{Destination: "Rome", Origin: "Berlin", Experience: "street food"},
			want: "Generate a full travel intelligence report for traveling from Berlin to: Rome." +
				" The user is specifically looking for the following experience: street food." +
				" Tailor all recommendations (accommodation, food, guides, and area suggestions) to meet this request.",
		},
	}

	for _, tt := range testcases {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, UserQuery(tt.req))
		})
	}
}

func TestBuildPayloadShape(t *testing.T) {
	t.Parallel()

	req := types.TripRequest{Destination: "Lisbon", Origin: "Madrid"}
	b, err := json.Marshal(BuildPayload(req))
	require.NoError(t, err)

	expected := map[string]any{
		"contents": []any{
			map[string]any{"parts": []any{map[string]any{"text": UserQuery(req)}}},
		},
		"tools": []any{
			map[string]any{"google_search": map[string]any{}},
		},
		"systemInstruction": map[string]any{
			"parts": []any{map[string]any{"text": SystemPrompt("Madrid")}},
		},
	}

	var got map[string]any
	require.NoError(t, json.Unmarshal(b, &got))
	assert.Equal(t, expected, got)
}
