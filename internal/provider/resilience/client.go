package resilience

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// ErrCircuitOpen is returned without calling the provider while its circuit
// is open or its half-open trial calls are used up.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// ServerError is a 5xx answer from a provider.
type ServerError struct {
	StatusCode int
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("provider answered %d %s", e.StatusCode, http.StatusText(e.StatusCode))
}

// ClientConfig configures a provider HTTP client.
type ClientConfig struct {
	// Name is the provider name; it keys the breaker and the registry entry.
	Name string

	// Timeout bounds each attempt, not the whole call.
	Timeout time.Duration

	// MaxRetries is the number of attempts after the first. Zero disables retries.
	MaxRetries uint64

	InitialInterval time.Duration
	MaxInterval     time.Duration

	// Breaker is replaced by DefaultBreakerConfig when zero.
	Breaker BreakerConfig

	// Registry, when set, receives the client and the outcome of each call.
	Registry *Registry

	Transport http.RoundTripper
	Logger    zerolog.Logger
}

// DefaultClientConfig returns the settings provider clients start from.
func DefaultClientConfig(name string) ClientConfig {
	return ClientConfig{
		Name:            name,
		Timeout:         10 * time.Second,
		MaxRetries:      2,
		InitialInterval: 200 * time.Millisecond,
		MaxInterval:     2 * time.Second,
		Breaker:         DefaultBreakerConfig(),
		Logger:          zerolog.Nop(),
	}
}

// Client sends provider requests through a circuit breaker, retrying
// transport errors and 5xx answers with exponential backoff.
type Client struct {
	name     string
	http     *http.Client
	breaker  *gobreaker.CircuitBreaker[*http.Response]
	registry *Registry
	logger   zerolog.Logger

	maxRetries      uint64
	initialInterval time.Duration
	maxInterval     time.Duration
}

// NewClient builds a client and registers it with cfg.Registry.
func NewClient(cfg ClientConfig) *Client {
	defaults := DefaultClientConfig(cfg.Name)
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.InitialInterval <= 0 {
		cfg.InitialInterval = defaults.InitialInterval
	}
	if cfg.MaxInterval <= 0 {
		cfg.MaxInterval = defaults.MaxInterval
	}
	if cfg.Breaker == (BreakerConfig{}) {
		cfg.Breaker = defaults.Breaker
	}

	c := &Client{
		name:            cfg.Name,
		http:            &http.Client{Timeout: cfg.Timeout, Transport: cfg.Transport},
		registry:        cfg.Registry,
		logger:          cfg.Logger.With().Str("provider", cfg.Name).Logger(),
		maxRetries:      cfg.MaxRetries,
		initialInterval: cfg.InitialInterval,
		maxInterval:     cfg.MaxInterval,
	}
	c.breaker = newBreaker(cfg.Name, cfg.Breaker, c.stateChanged) //nolint:bodyclose // type parameter

	if c.registry != nil {
		c.registry.Register(c.name, c)
	}
	return c
}

// Name returns the provider name.
func (c *Client) Name() string {
	return c.name
}

// CircuitState returns the breaker's current state.
func (c *Client) CircuitState() gobreaker.State {
	return c.breaker.State()
}

// CircuitCounts returns the breaker's counts for the current generation.
func (c *Client) CircuitCounts() gobreaker.Counts {
	return c.breaker.Counts()
}

// Do sends req. A 4xx answer comes back untouched. When retries run out on
// 5xx answers the last one is returned with a nil error so the provider
// client can map its body. ErrCircuitOpen is returned when the breaker
// refuses the call.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	var last *http.Response
	keep := func(resp *http.Response) {
		if last != nil {
			_ = last.Body.Close()
		}
		last = resp
	}

	attempt := 0
	err := backoff.RetryNotify(func() error {
		attempt++
		resp, err := c.send(ctx, req)
		if resp != nil {
			keep(resp)
		}
		return err
	}, c.policy(ctx), func(err error, wait time.Duration) {
		c.logger.Debug().
			Err(err).
			Int("attempt", attempt).
			Dur("wait", wait).
			Msg("retrying provider request")
	})

	switch {
	case err == nil:
		c.succeeded()
		return last, nil
	case errors.Is(err, context.Canceled):
		keep(nil)
		return nil, err
	}

	c.failed(err)
	if last != nil && !errors.Is(err, ErrCircuitOpen) {
		return last, nil
	}
	keep(nil)
	return nil, err
}

func (c *Client) policy(ctx context.Context) backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = c.initialInterval
	bo.MaxInterval = c.maxInterval
	bo.MaxElapsedTime = 0
	return backoff.WithContext(backoff.WithMaxRetries(bo, c.maxRetries), ctx)
}

// send makes one attempt through the breaker. Errors that retrying cannot fix
// are wrapped as permanent.
func (c *Client) send(ctx context.Context, req *http.Request) (*http.Response, error) {
	out, err := cloneForAttempt(ctx, req)
	if err != nil {
		return nil, backoff.Permanent(err)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		r, err := c.http.Do(out)
		if err != nil {
			return nil, err
		}
		if r.StatusCode >= http.StatusInternalServerError {
			return r, &ServerError{StatusCode: r.StatusCode}
		}
		return r, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, backoff.Permanent(ErrCircuitOpen)
	case errors.Is(err, context.Canceled):
		return resp, backoff.Permanent(err)
	}
	return resp, err
}

// cloneForAttempt copies req with a rewound body so every attempt sends the
// full payload.
func cloneForAttempt(ctx context.Context, req *http.Request) (*http.Request, error) {
	out := req.Clone(ctx)
	if req.Body == nil || req.Body == http.NoBody || req.GetBody == nil {
		return out, nil
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, fmt.Errorf("rewinding request body: %w", err)
	}
	out.Body = body
	return out, nil
}

func (c *Client) stateChanged(name string, from, to gobreaker.State) {
	evt := c.logger.Info()
	if to == gobreaker.StateOpen {
		evt = c.logger.Warn()
	}
	evt.Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")

	if c.registry != nil {
		c.registry.recordTransition(name)
	}
}

func (c *Client) succeeded() {
	if c.registry != nil {
		c.registry.RecordSuccess(c.name)
	}
}

func (c *Client) failed(err error) {
	c.logger.Warn().Err(err).Msg("provider request failed")
	if c.registry != nil {
		c.registry.RecordFailure(c.name, err)
	}
}
