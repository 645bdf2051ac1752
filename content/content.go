// Package content is the boundary to text generation providers. Callers see
// a single Service whose Generate never fails: provider faults, budget
// refusals and malformed output come back as Result variants so every
// caller can fall back to deterministic text.
package content

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"
)

// Kind selects the output shape a request expects.
type Kind int

const (
	KindText Kind = iota
	KindJSON
)

func (k Kind) String() string {
	if k == KindJSON {
		return "json"
	}
	return "text"
}

// Request is one generation call.
type Request struct {
	Kind        Kind
	System      string
	Prompt      string
	Temperature float64
	// UserID is charged against the per-user budget.
	UserID string
}

// Status classifies a Result.
type Status int

const (
	StatusOK Status = iota
	StatusProviderUnavailable
	StatusBudgetExhausted
	StatusInvalid
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusProviderUnavailable:
		return "provider_unavailable"
	case StatusBudgetExhausted:
		return "budget_exhausted"
	default:
		return "invalid"
	}
}

// BudgetMessage is the text carried by a BudgetExhausted result.
const BudgetMessage = "LLM budget exhausted for today; using basic parser."

// Result is the outcome of Generate. Text is set for StatusOK, and for
// StatusBudgetExhausted it holds BudgetMessage.
type Result struct {
	Status Status
	Text   string
	Err    error
}

// Ok reports whether the result carries provider output.
func (r Result) Ok() bool { return r.Status == StatusOK }

func ok(text string) Result { return Result{Status: StatusOK, Text: text} }

// Service generates content.
type Service interface {
	Generate(ctx context.Context, req Request) Result
}

// Provider talks to one generation backend.
type Provider interface {
	Name() string
	Complete(ctx context.Context, req Request) (string, error)
}

// Budget admits or refuses a metered call.
type Budget interface {
	TryConsumeLLMCall(ctx context.Context, day, userID string, maxPerDay, maxPerUser int) (bool, string, error)
}

// ErrUnavailable is returned by providers that are not configured.
var ErrUnavailable = errors.New("content provider unavailable")

// Options configures a Client.
type Options struct {
	JSON Provider
	Text Provider
	// Metered names the providers whose calls count against the budget.
	Metered       map[string]bool
	Budget        Budget
	MaxPerDay     int
	MaxPerUser    int
	MaxInputChars int
	Timeout       time.Duration
	Logger        *slog.Logger
	Now           func() time.Time
}

// Client routes requests to the configured providers.
type Client struct {
	opts Options
}

// New returns a Client. Missing providers default to the stub.
func New(opts Options) *Client {
	if opts.JSON == nil {
		opts.JSON = Stub{}
	}
	if opts.Text == nil {
		opts.Text = Stub{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	return &Client{opts: opts}
}

// Generate implements Service.
func (c *Client) Generate(ctx context.Context, req Request) Result {
	provider := c.opts.Text
	if req.Kind == KindJSON {
		provider = c.opts.JSON
	}
	log := c.opts.Logger.With("provider", provider.Name(), "kind", req.Kind.String())

	if c.opts.MaxInputChars > 0 {
		req.Prompt = truncate(req.Prompt, c.opts.MaxInputChars)
		req.System = truncate(req.System, c.opts.MaxInputChars)
	}

	if c.opts.Metered[provider.Name()] && c.opts.Budget != nil {
		user := req.UserID
		if user == "" {
			user = "system"
		}
		day := c.opts.Now().UTC().Format("2006-01-02")
		allowed, reason, err := c.opts.Budget.TryConsumeLLMCall(ctx, day, user, c.opts.MaxPerDay, c.opts.MaxPerUser)
		if err != nil {
			log.Warn("llm budget check failed", "error", err)
			return Result{Status: StatusProviderUnavailable, Err: err}
		}
		if !allowed {
			log.Warn("llm budget exhausted", "reason", reason, "user", user)
			return Result{Status: StatusBudgetExhausted, Text: BudgetMessage}
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()
	text, err := provider.Complete(callCtx, req)
	if err != nil {
		log.Warn("content provider failed", "error", err)
		return Result{Status: StatusProviderUnavailable, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		log.Warn("content provider returned empty output")
		return Result{Status: StatusInvalid, Err: errors.New("empty output")}
	}
	if req.Kind == KindJSON {
		obj, err := ExtractJSON(text)
		if err != nil {
			log.Warn("content provider returned malformed json", "error", err)
			return Result{Status: StatusInvalid, Err: err}
		}
		return ok(obj)
	}
	return ok(text)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) > n {
		r = r[:n]
	}
	return string(r)
}
