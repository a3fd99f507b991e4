// Package intranet is the REST client for the school intranet API, the
// external collaborator that owns profile snapshots and event counts. The
// client rate-limits and circuit-breaks its calls; retries and timeouts
// beyond the per-request context are left to callers.
package intranet

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"

	"github.com/campusdash/rncpsim/internal/progression"
)

// Common errors.
var (
	ErrNoCursus     = errors.New("profile has no cursus entries")
	ErrUnauthorized = errors.New("intranet rejected credentials")
)

// Config holds client settings.
type Config struct {
	BaseURL    string  `yaml:"base_url"`
	Token      string  `yaml:"token"`
	CursusSlug string  `yaml:"cursus_slug"`
	RPS        float64 `yaml:"rps"`
	Burst      int     `yaml:"burst"`
}

// Client fetches profile snapshots and event counts.
type Client struct {
	baseURL    string
	token      string
	cursusSlug string
	httpClient *http.Client
	limiter    *rate.Limiter
	breaker    *gobreaker.CircuitBreaker
	logger     zerolog.Logger
}

// NewClient builds a client with a token-bucket limiter and a circuit
// breaker that opens after five consecutive failures.
func NewClient(cfg Config, logger zerolog.Logger) *Client {
	rps := cfg.RPS
	if rps <= 0 {
		rps = 2
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 4
	}

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "intranet",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})

	return &Client{
		baseURL:    cfg.BaseURL,
		token:      cfg.Token,
		cursusSlug: cfg.CursusSlug,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(rps), burst),
		breaker:    breaker,
		logger:     logger.With().Str("component", "intranet").Logger(),
	}
}

// get performs one rate-limited, breaker-guarded GET and returns the body.
func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return nil, err
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("request failed: %w", err)
		}
		defer resp.Body.Close()

		c.logger.Debug().
			Str("path", path).
			Int("status", resp.StatusCode).
			Dur("elapsed", time.Since(start)).
			Msg("intranet request")

		switch {
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return nil, ErrUnauthorized
		case resp.StatusCode != http.StatusOK:
			return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
		}
		return io.ReadAll(resp.Body)
	})
	if err != nil {
		return nil, err
	}
	return body.([]byte), nil
}

// FetchProfile retrieves a user's profile and translates it into the
// reconciliation input: validations from every cursus plus the active
// cursus' fractional level.
func (c *Client) FetchProfile(ctx context.Context, login string) (progression.ProfileData, error) {
	b, err := c.get(ctx, "/v2/users/"+login)
	if err != nil {
		return progression.ProfileData{}, fmt.Errorf("failed to fetch profile: %w", err)
	}

	var payload profilePayload
	if err := json.Unmarshal(b, &payload); err != nil {
		return progression.ProfileData{}, fmt.Errorf("failed to decode profile: %w", err)
	}
	if len(payload.CursusUsers) == 0 {
		return progression.ProfileData{}, ErrNoCursus
	}

	cursus := c.selectCursus(payload.CursusUsers)

	data := progression.ProfileData{
		Login: payload.Login,
		Level: cursus.Level,
	}
	for _, pu := range payload.ProjectsUsers {
		if !pu.Validated || pu.FinalMark == nil {
			continue
		}
		inCurriculum := false
		for _, id := range pu.CursusIDs {
			if id == cursus.Cursus.ID {
				inCurriculum = true
				break
			}
		}
		data.Validations = append(data.Validations, progression.ProfileValidation{
			ProjectID:    pu.Project.Slug,
			Name:         pu.Project.Name,
			FinalMark:    *pu.FinalMark,
			XP:           pu.Experience,
			InCurriculum: inCurriculum,
		})
	}
	return data, nil
}

// selectCursus picks the cursus entry matching the configured slug. The
// historical index-1-else-0 convention survives only as the fallback for
// profiles where no slug matches.
func (c *Client) selectCursus(entries []cursusUser) cursusUser {
	if c.cursusSlug != "" {
		for _, cu := range entries {
			if cu.Cursus.Slug == c.cursusSlug {
				return cu
			}
		}
	}
	if len(entries) > 1 {
		return entries[1]
	}
	return entries[0]
}

// FetchEventCount returns how many events the user attended.
func (c *Client) FetchEventCount(ctx context.Context, login string) (int, error) {
	b, err := c.get(ctx, "/v2/users/"+login+"/events")
	if err != nil {
		return 0, fmt.Errorf("failed to fetch events: %w", err)
	}
	var events []eventPayload
	if err := json.Unmarshal(b, &events); err != nil {
		return 0, fmt.Errorf("failed to decode events: %w", err)
	}
	return len(events), nil
}
