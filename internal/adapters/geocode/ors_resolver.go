package geocode

import (
	"context"
	"errors"
	"field-visit-service/internal/domain"
	"field-visit-service/internal/platform/obs"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const defaultORSBaseURL = "https://api.openrouteservice.org"

type geocodeResponse struct {
	Features []struct {
		Geometry struct {
			Coordinates []float64 `json:"coordinates"`
		} `json:"geometry"`
	} `json:"features"`
}

// ORSResolver geocodes visit addresses with OpenRouteService
// (/geocode/search). Transient failures (network errors, 429, 5xx) are
// retried with backoff by the HTTP client.
//
// The resolver is safe for concurrent use.
type ORSResolver struct {
	client  *resty.Client
	country string
	log     *zap.Logger
}

type ORSOptions struct {
	APIKey  string
	BaseURL string
	// Country restricts results (boundary.country); empty means worldwide.
	Country string
	Timeout time.Duration
}

func NewORSResolver(opts ORSOptions, log *zap.Logger) (*ORSResolver, error) {
	if opts.APIKey == "" {
		return nil, errors.New("ORS api key is empty")
	}
	if opts.BaseURL == "" {
		opts.BaseURL = defaultORSBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}

	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(3).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(2 * time.Second).
		SetHeader("Authorization", opts.APIKey).
		SetHeader("Accept", "application/json").
		AddRetryCondition(retryable)

	return &ORSResolver{client: client, country: opts.Country, log: log}, nil
}

func retryable(resp *resty.Response, err error) bool {
	if err != nil {
		return true
	}
	switch resp.StatusCode() {
	case http.StatusTooManyRequests,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func (o *ORSResolver) ResolveVisit(ctx context.Context, v domain.Visit) (domain.Coordinates, error) {
	addr := normalize(v.PropertyAddress)
	if addr == "" {
		return domain.Coordinates{}, fmt.Errorf("geocode visit %q: no property address", v.ID)
	}
	return o.Geocode(ctx, addr)
}

// Geocode resolves one address to its best match.
func (o *ORSResolver) Geocode(ctx context.Context, address string) (_ domain.Coordinates, err error) {
	defer obs.Time(ctx, o.log, "ors.Geocode")(&err)

	params := map[string]string{
		"text": address,
		"size": "1",
	}
	if o.country != "" {
		params["boundary.country"] = o.country
	}

	var decoded geocodeResponse
	resp, err := o.client.R().
		SetContext(ctx).
		SetQueryParams(params).
		SetResult(&decoded).
		Get("/geocode/search")
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: execute request: %w", address, err)
	}
	if resp.IsError() {
		return domain.Coordinates{}, fmt.Errorf("geocode %q: unexpected status %d: %s", address, resp.StatusCode(), resp.String())
	}

	if len(decoded.Features) == 0 {
		return domain.Coordinates{}, fmt.Errorf("no geocode results for %q", address)
	}

	coords := decoded.Features[0].Geometry.Coordinates
	if len(coords) != 2 {
		return domain.Coordinates{}, fmt.Errorf("invalid coordinate format for %q", address)
	}

	return domain.Coordinates{Lon: coords[0], Lat: coords[1]}, nil
}
