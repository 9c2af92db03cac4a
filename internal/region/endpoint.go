package region

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/google/uuid"

	"github.com/shehryarbajwa/browserbase-mcp/pkg/models"
)

// Endpoint is a control plane for a browser that is already running, such
// as a hosted CDP service. Every lease points at the same URL; stopping a
// lease leaves the browser up.
type Endpoint struct {
	ConnectURL string
	Headers    map[string]string
	Region     string
	PublicURL  string
}

func (e *Endpoint) Start(_ context.Context, req models.LaunchRequest) (*models.Lease, error) {
	if e.ConnectURL == "" {
		return nil, errors.New("no CDP endpoint configured")
	}

	region := req.Region
	if e.Region != "" {
		region = e.Region
	}

	return &models.Lease{
		ID:          uuid.NewString(),
		Region:      region,
		ConnectURL:  e.ConnectURL,
		Headers:     maps.Clone(e.Headers),
		LiveViewURL: LiveViewURL(e.PublicURL, req.SessionID),
		StartedAt:   time.Now(),
	}, nil
}

func (e *Endpoint) Stop(_ context.Context, _ *models.Lease) error {
	return nil
}
