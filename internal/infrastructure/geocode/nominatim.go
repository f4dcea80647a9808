package geocode

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"sitepresence/internal/bootstrap/config"
	"sitepresence/internal/errs"
	"sitepresence/internal/ports"
)

const (
	DefaultBaseURL = "https://nominatim.openstreetmap.org"
	maxBodyBytes   = 1 << 20
	maxBodyPreview = 200
)

var (
	ErrEmptyAddress = errors.New("reverse geocode returned no address")
	ErrUpstream     = errors.New("reverse geocode upstream error")
)

type nominatimResponse struct {
	DisplayName string `json:"display_name"`
	Error       string `json:"error"`
}

// NominatimClient reverse geocodes through the Nominatim /reverse endpoint
// (format=jsonv2). Requests are rate limited client side.
type NominatimClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	language   string
	timeout    time.Duration
	limiter    *rate.Limiter
}

var _ ports.ReverseGeocoder = (*NominatimClient)(nil)

func NewNominatimClient(cfg config.GeocodeConfig, httpClient *http.Client) *NominatimClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}

	return &NominatimClient{
		httpClient: httpClient,
		baseURL:    baseURL,
		userAgent:  strings.TrimSpace(cfg.UserAgent),
		language:   strings.TrimSpace(cfg.Language),
		timeout:    cfg.Timeout,
		limiter:    rate.NewLimiter(limit, 1),
	}
}

func (c *NominatimClient) ReverseGeocode(ctx context.Context, latitude float64, longitude float64) (string, error) {
	if ctx == nil {
		return "", errors.New("context is required")
	}
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", errs.Wrap(err, "wait for rate limiter")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.reverseURL(latitude, longitude), nil)
	if err != nil {
		return "", errs.Wrap(err, "build reverse geocode request")
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.language != "" {
		req.Header.Set("Accept-Language", c.language)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errs.Wrap(err, "reverse geocode request")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return "", errs.Wrap(err, "read reverse geocode body")
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d: %s", ErrUpstream, resp.StatusCode, preview(body))
	}

	var payload nominatimResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", errs.Wrap(err, "decode reverse geocode body")
	}
	if payload.Error != "" {
		return "", fmt.Errorf("%w: %s", ErrUpstream, payload.Error)
	}

	address := strings.TrimSpace(payload.DisplayName)
	if address == "" {
		return "", ErrEmptyAddress
	}
	return address, nil
}

func (c *NominatimClient) reverseURL(latitude float64, longitude float64) string {
	q := url.Values{}
	q.Set("format", "jsonv2")
	q.Set("lat", strconv.FormatFloat(latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(longitude, 'f', -1, 64))
	return c.baseURL + "/reverse?" + q.Encode()
}

func preview(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxBodyPreview {
		return s[:maxBodyPreview] + "..."
	}
	return s
}
