package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Agent holds the routing metadata for one registered agent.
type Agent struct {
	Name          string    `json:"name"`
	DisplayName   string    `json:"display_name,omitempty"`
	Description   string    `json:"description"`
	Keywords      []string  `json:"keywords"`
	RegexPatterns []string  `json:"regex_patterns"`
	Embedding     []float32 `json:"-"`
	Priority      int       `json:"priority"`
	Enabled       bool      `json:"enabled"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	// compiled holds the precompiled case-insensitive patterns. Populated at
	// catalog load so a malformed pattern is rejected at registration time,
	// never at match time.
	compiled []*regexp.Regexp
}

// Validate checks the agent definition and compiles its regex patterns.
func (a *Agent) Validate() error {
	if strings.TrimSpace(a.Name) == "" {
		return fmt.Errorf("agent name is required")
	}
	if strings.TrimSpace(a.Description) == "" {
		return fmt.Errorf("agent %q: description is required", a.Name)
	}
	if a.DisplayName == "" {
		a.DisplayName = a.Name
	}
	return a.compilePatterns()
}

// compilePatterns compiles regex_patterns case-insensitively.
func (a *Agent) compilePatterns() error {
	compiled := make([]*regexp.Regexp, 0, len(a.RegexPatterns))
	for _, pattern := range a.RegexPatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return fmt.Errorf("agent %q: invalid pattern %q: %w", a.Name, pattern, err)
		}
		compiled = append(compiled, re)
	}
	a.compiled = compiled
	return nil
}

// MatchesPattern reports whether any of the agent's patterns matches the
// message. Patterns are unanchored substring searches.
func (a *Agent) MatchesPattern(message string) bool {
	for _, re := range a.compiled {
		if re.MatchString(message) {
			return true
		}
	}
	return false
}

// NormalizedKeywords returns the keyword set lowercased with duplicates and
// blanks removed, preserving order.
func (a *Agent) NormalizedKeywords() []string {
	seen := make(map[string]bool, len(a.Keywords))
	out := make([]string, 0, len(a.Keywords))
	for _, kw := range a.Keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		out = append(out, kw)
	}
	return out
}

// DescriptionHash returns a stable hash of the description, used to detect
// when a stored embedding is out of date.
func (a *Agent) DescriptionHash() string {
	sum := sha256.Sum256([]byte(a.Description))
	return hex.EncodeToString(sum[:])
}
