package ingestion

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/granhackaria/eventharvest/internal/config"
	"github.com/granhackaria/eventharvest/internal/models"
)

const eventsSearchQuery = `
query EventsSearch($lat: Float!, $lon: Float!, $radius: Int!, $first: Int!) {
  eventsSearch(input: {
    first: $first
    filter: { status: UPCOMING, lat: $lat, lon: $lon, radius: $radius }
  }) {
    totalCount
    edges {
      node {
        id
        title
        description
        dateTime
        eventUrl
        featuredEventPhoto { baseUrl }
        venue { name address city state country }
        group { name }
      }
    }
  }
}`

// accessTokenSource is implemented by TokenCache.
type accessTokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Invalidate()
}

// GraphQLTransport searches upcoming events through the platform's GraphQL
// API with an OAuth bearer token.
type GraphQLTransport struct {
	endpoint string
	tokens   accessTokenSource
	client   *http.Client
	cfg      config.PlatformConfig
	policy   RetryPolicy
}

// NewGraphQLTransport creates the OAuth transport.
func NewGraphQLTransport(cfg config.PlatformConfig, tokens accessTokenSource, client *http.Client) *GraphQLTransport {
	return &GraphQLTransport{
		endpoint: cfg.GraphQLURL,
		tokens:   tokens,
		client:   client,
		cfg:      cfg,
		policy:   DefaultRetryPolicy(),
	}
}

// Name identifies the transport in logs.
func (t *GraphQLTransport) Name() string {
	return "graphql"
}

// Fetch returns upcoming events around the configured point. Throttling is
// retried with backoff; a 401 drops the cached token and fails the call.
func (t *GraphQLTransport) Fetch(ctx context.Context) ([]models.PlatformEvent, error) {
	var events []models.PlatformEvent
	err := Retry(ctx, t.policy, func() error {
		var err error
		events, err = t.search(ctx)
		return err
	})
	return events, err
}

type graphQLResponse struct {
	Data *struct {
		EventsSearch *struct {
			Edges []struct {
				Node graphQLEvent `json:"node"`
			} `json:"edges"`
		} `json:"eventsSearch"`
	} `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type graphQLEvent struct {
	ID                 string  `json:"id"`
	Title              string  `json:"title"`
	Description        *string `json:"description"`
	DateTime           string  `json:"dateTime"`
	EventURL           string  `json:"eventUrl"`
	FeaturedEventPhoto *struct {
		BaseURL string `json:"baseUrl"`
	} `json:"featuredEventPhoto"`
	Venue *struct {
		Name    string `json:"name"`
		Address string `json:"address"`
		City    string `json:"city"`
		State   string `json:"state"`
		Country string `json:"country"`
	} `json:"venue"`
	Group *struct {
		Name string `json:"name"`
	} `json:"group"`
}

func (t *GraphQLTransport) search(ctx context.Context) ([]models.PlatformEvent, error) {
	token, err := t.tokens.AccessToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	body, err := json.Marshal(map[string]any{
		"query": eventsSearchQuery,
		"variables": map[string]any{
			"lat":    t.cfg.Latitude,
			"lon":    t.cfg.Longitude,
			"radius": int(t.cfg.RadiusKm),
			"first":  t.cfg.First,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("encode query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graphql request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		t.tokens.Invalidate()
		return nil, fmt.Errorf("%w: graphql returned 401, token dropped for next request", ErrUnauthorized)
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, NewRetryableErrorWithDelay(&StatusError{StatusCode: resp.StatusCode, Body: "rate limited"}, RetryAfter(resp.Header, time.Now()))
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	var out graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode graphql response: %w", err)
	}
	if len(out.Errors) > 0 {
		msgs := make([]string, 0, len(out.Errors))
		for _, e := range out.Errors {
			msgs = append(msgs, e.Message)
		}
		return nil, fmt.Errorf("graphql errors: %s", strings.Join(msgs, ", "))
	}
	if out.Data == nil || out.Data.EventsSearch == nil {
		return nil, nil
	}

	events := make([]models.PlatformEvent, 0, len(out.Data.EventsSearch.Edges))
	for _, edge := range out.Data.EventsSearch.Edges {
		n := edge.Node
		if n.ID == "" || n.Title == "" {
			continue
		}
		events = append(events, n.toPlatformEvent())
	}
	return events, nil
}

func (n graphQLEvent) toPlatformEvent() models.PlatformEvent {
	pe := models.PlatformEvent{
		ID:       n.ID,
		Platform: string(models.SourceMeetup),
		Title:    n.Title,
		EventURL: n.EventURL,
	}
	if n.Description != nil {
		pe.Description = *n.Description
	}
	if t, err := time.Parse(time.RFC3339, n.DateTime); err == nil {
		pe.StartsAt = t
	}
	if n.FeaturedEventPhoto != nil {
		pe.ImageURL = n.FeaturedEventPhoto.BaseURL
	}
	if n.Venue != nil {
		pe.VenueName = n.Venue.Name
		pe.Address = n.Venue.Address
		pe.City = n.Venue.City
		pe.State = n.Venue.State
		pe.Country = n.Venue.Country
	}
	if n.Group != nil {
		pe.GroupName = n.Group.Name
	}
	return pe
}

// StatusError is an unexpected upstream HTTP status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("upstream status %d", e.StatusCode)
	}
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}
