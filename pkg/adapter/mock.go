package adapter

import (
	"context"

	"github.com/zen-systems/intentgate/pkg/artifact"
)

// MockAdapter returns deterministic responses for local runs and tests.
type MockAdapter struct {
	responses       map[string]string
	defaultResponse string
	failWith        error
	calls           int
}

// NewMockAdapter creates a mock adapter with a default response.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		responses:       make(map[string]string),
		defaultResponse: "none",
	}
}

// NewMockAdapterWithResponses creates a mock adapter with predefined responses.
// The map is keyed by exact prompt; unmatched prompts get defaultResponse.
func NewMockAdapterWithResponses(responses map[string]string, defaultResponse string) *MockAdapter {
	if defaultResponse == "" {
		defaultResponse = "none"
	}
	return &MockAdapter{responses: responses, defaultResponse: defaultResponse}
}

// SetDefaultResponse overrides the response for unmatched prompts.
func (a *MockAdapter) SetDefaultResponse(response string) {
	a.defaultResponse = response
}

// Fail makes every subsequent Generate call return err. Passing nil restores
// normal operation.
func (a *MockAdapter) Fail(err error) {
	a.failWith = err
}

// Calls returns how many times Generate has been invoked.
func (a *MockAdapter) Calls() int {
	return a.calls
}

// Name returns the adapter identifier.
func (a *MockAdapter) Name() string {
	return "mock"
}

// Models returns the list of supported mock models.
func (a *MockAdapter) Models() []string {
	return []string{"mock-1"}
}

// Generate returns a deterministic response for the prompt.
func (a *MockAdapter) Generate(_ context.Context, model string, prompt string) (*Response, error) {
	a.calls++
	if a.failWith != nil {
		return nil, a.failWith
	}
	if model == "" {
		model = "mock-1"
	}
	content := a.defaultResponse
	if response, ok := a.responses[prompt]; ok {
		content = response
	}
	art := artifact.New(content, a.Name(), model, prompt)
	return &Response{Artifact: art}, nil
}
