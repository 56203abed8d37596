// Package proxy serves the filtering reverse proxy and its control API.
package proxy

import (
	"context"

	"github.com/bnema/maa-copilot-filter/internal/filter"
	"github.com/bnema/maa-copilot-filter/internal/models"
	"github.com/bnema/maa-copilot-filter/internal/state"
	"github.com/rs/zerolog"
)

// Interceptor transforms the body of a response from a matched endpoint.
// On error the caller delivers the original body.
type Interceptor interface {
	Intercept(ctx context.Context, endpoint string, body []byte) ([]byte, error)
}

// CopilotInterceptor filters copilot query responses against the current
// roster and settings
type CopilotInterceptor struct {
	state  *state.State
	engine *filter.Engine
	log    zerolog.Logger
}

var _ Interceptor = (*CopilotInterceptor)(nil)

// NewCopilotInterceptor creates an interceptor over st
func NewCopilotInterceptor(st *state.State, engine *filter.Engine, log zerolog.Logger) *CopilotInterceptor {
	return &CopilotInterceptor{
		state:  st,
		engine: engine,
		log:    log.With().Str("component", "interceptor").Logger(),
	}
}

// Intercept filters the listing array of a query response
func (c *CopilotInterceptor) Intercept(ctx context.Context, endpoint string, body []byte) ([]byte, error) {
	snap := c.state.Snapshot()
	if !filter.Active(snap.Index, snap.Config) {
		return body, nil
	}

	out, res, err := filter.RewriteResponse(body, func(listings []models.RawListing) filter.Result {
		return c.engine.Filter(listings, snap.Index, snap.Config)
	})
	if err != nil {
		return nil, err
	}

	c.state.RecordFiltered(res.Removed)
	c.log.Info().
		Str("endpoint", endpoint).
		Int("kept", len(res.Listings)).
		Int("removed", res.Removed).
		Msg("listings filtered")

	return out, nil
}
