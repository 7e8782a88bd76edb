package router

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/zen-systems/intentgate/pkg/adapter"
	"github.com/zen-systems/intentgate/pkg/catalog"
	"github.com/zen-systems/intentgate/pkg/config"
)

// noSelection is the sentinel the model is instructed to reply with when no
// agent fits.
const noSelection = "none"

// LLMTier asks a fast model to pick an agent when the cheaper tiers are
// inconclusive. The prompt carries only agent names and one-line
// descriptions, never conversation history.
//
// Confidence is a fixed constant: the completion interface exposes no
// calibrated probability, so the value only encodes "an LLM decided".
type LLMTier struct {
	llm   adapter.Adapter
	model string
	cfg   *config.RouterConfig
}

// NewLLMTier creates the tier-3 classifier.
func NewLLMTier(llm adapter.Adapter, model string, cfg *config.RouterConfig) *LLMTier {
	return &LLMTier{llm: llm, model: model, cfg: cfg}
}

// Name returns the tier identifier.
func (t *LLMTier) Name() string { return "llm" }

// Number returns the tier's position in the pipeline.
func (t *LLMTier) Number() int { return 3 }

// Attempt asks the model to classify the message. Timeouts, transport
// errors, and unparseable replies all collapse to inconclusive.
func (t *LLMTier) Attempt(ctx context.Context, message string, agents []*catalog.Agent) Result {
	if t.llm == nil || len(agents) == 0 {
		return inconclusive()
	}

	// The call sits on the user-facing response path, so it gets a tight
	// deadline on top of whatever the caller carries.
	timeout := time.Duration(t.cfg.ClassifierTimeoutMs) * time.Millisecond
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	prompt := t.buildPrompt(message, agents)
	resp, err := t.llm.Generate(ctx, t.model, prompt)
	if err != nil && adapter.IsTransient(err) && ctx.Err() == nil {
		// One retry inside the same deadline; after that the default-agent
		// fallback takes over.
		log.Printf("[router] classifier call failed, retrying once: %v", err)
		resp, err = t.llm.Generate(ctx, t.model, prompt)
	}
	if err != nil {
		log.Printf("[router] classifier call failed: %v", err)
		return inconclusive()
	}

	name, ok := parseSelection(resp.Artifact.Content, agents)
	if !ok {
		return inconclusive()
	}
	return Result{Decisive: true, Agent: name, Confidence: t.cfg.ClassifierConfidence}
}

func (t *LLMTier) buildPrompt(message string, agents []*catalog.Agent) string {
	var sb strings.Builder
	sb.WriteString("You route user messages to specialized agents.\n\nAgents:\n")
	for _, agent := range agents {
		fmt.Fprintf(&sb, "- %s: %s\n", agent.Name, firstLine(agent.Description))
	}
	fmt.Fprintf(&sb, "\nUser message:\n%s\n\n", message)
	sb.WriteString("Reply with exactly one agent name from the list above, ")
	sb.WriteString("or \"" + noSelection + "\" if no agent fits. Reply with the name only.")
	return sb.String()
}

// parseSelection matches the model's reply against known agent names,
// case-insensitively. Anything else, including the "none" sentinel, counts
// as no selection.
func parseSelection(reply string, agents []*catalog.Agent) (string, bool) {
	answer := strings.ToLower(strings.TrimSpace(reply))
	if idx := strings.IndexByte(answer, '\n'); idx >= 0 {
		answer = strings.TrimSpace(answer[:idx])
	}
	answer = strings.Trim(answer, "\"'`.")

	if answer == "" || answer == noSelection {
		return "", false
	}
	for _, agent := range agents {
		if strings.EqualFold(agent.Name, answer) {
			return agent.Name, true
		}
	}
	return "", false
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return strings.TrimSpace(s[:idx])
	}
	return strings.TrimSpace(s)
}
