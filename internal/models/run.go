package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorPolicy decides what happens after a failed invocation.
type ErrorPolicy int

// Error handling policies.
const (
	PolicySkip ErrorPolicy = iota
	PolicyRetry
	PolicyPause
)

var policyTokens = map[ErrorPolicy]string{
	PolicySkip:  "skip",
	PolicyRetry: "retry",
	PolicyPause: "pause",
}

// ErrUnknownPolicy is returned when a policy token is not recognised.
var ErrUnknownPolicy = errors.New("unknown error policy")

func (p ErrorPolicy) String() string {
	if tok, ok := policyTokens[p]; ok {
		return tok
	}
	return fmt.Sprintf("policy(%d)", int(p))
}

// ParseErrorPolicy converts skip/retry/pause into an ErrorPolicy.
func ParseErrorPolicy(token string) (ErrorPolicy, error) {
	normalized := strings.ToLower(strings.TrimSpace(token))
	for policy, tok := range policyTokens {
		if tok == normalized {
			return policy, nil
		}
	}
	return 0, fmt.Errorf("%w: %q (must be one of skip, retry, pause)", ErrUnknownPolicy, token)
}

// MarshalText implements encoding.TextMarshaler.
func (p ErrorPolicy) MarshalText() ([]byte, error) {
	tok, ok := policyTokens[p]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownPolicy, int(p))
	}
	return []byte(tok), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ErrorPolicy) UnmarshalText(text []byte) error {
	parsed, err := ParseErrorPolicy(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}

// RunConfig is the read-only configuration for one run.
type RunConfig struct {
	TaskFile        string
	ResultsFile     string
	WorkingDir      string
	MaxIterations   int
	Delay           time.Duration // pause between tasks
	Timeout         time.Duration // per invocation
	RetryBackoff    time.Duration // fixed wait between retries
	OnError         ErrorPolicy
	MaxRetries      int // only used by PolicyRetry
	SkipPermissions bool
}

// Validate checks the run configuration bounds.
func (c *RunConfig) Validate() error {
	if c.TaskFile == "" {
		return errors.New("task file is required")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iterations must be > 0, got %d", c.MaxIterations)
	}
	if c.Delay < 0 {
		return fmt.Errorf("delay must be >= 0, got %v", c.Delay)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be > 0, got %v", c.Timeout)
	}
	if c.RetryBackoff < 0 {
		return fmt.Errorf("retry_backoff must be >= 0, got %v", c.RetryBackoff)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must be >= 0, got %d", c.MaxRetries)
	}
	if _, ok := policyTokens[c.OnError]; !ok {
		return fmt.Errorf("%w: %d", ErrUnknownPolicy, int(c.OnError))
	}
	return nil
}
