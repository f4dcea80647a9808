package geocode

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sitepresence/internal/bootstrap/config"
)

const reverseURLPattern = `=~^https://geo\.test/reverse`

func newTestClient(t *testing.T) *NominatimClient {
	t.Helper()
	httpClient := &http.Client{}
	httpmock.ActivateNonDefault(httpClient)
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewNominatimClient(config.GeocodeConfig{
		BaseURL:   "https://geo.test/",
		UserAgent: "sitepresence-test/1.0",
		Language:  "id",
		Timeout:   time.Second,
	}, httpClient)
}

func TestReverseGeocodeSuccess(t *testing.T) {
	client := newTestClient(t)

	httpmock.RegisterResponder("GET", reverseURLPattern, func(req *http.Request) (*http.Response, error) {
		q := req.URL.Query()
		assert.Equal(t, "jsonv2", q.Get("format"))
		assert.Equal(t, "-6.2", q.Get("lat"))
		assert.Equal(t, "106.8", q.Get("lon"))
		assert.Equal(t, "sitepresence-test/1.0", req.Header.Get("User-Agent"))
		assert.Equal(t, "id", req.Header.Get("Accept-Language"))
		return httpmock.NewStringResponse(http.StatusOK, `{"place_id":1,"display_name":"  Jl. Jend. Sudirman, Jakarta  "}`), nil
	})

	address, err := client.ReverseGeocode(context.Background(), -6.2, 106.8)
	require.NoError(t, err)
	assert.Equal(t, "Jl. Jend. Sudirman, Jakarta", address)
	assert.Equal(t, 1, httpmock.GetTotalCallCount())
}

func TestReverseGeocodeFailures(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server_error", http.StatusInternalServerError, "oops", ErrUpstream},
		{"unable_to_geocode", http.StatusOK, `{"error":"Unable to geocode"}`, ErrUpstream},
		{"empty_display_name", http.StatusOK, `{"display_name":"   "}`, ErrEmptyAddress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t)
			httpmock.RegisterResponder("GET", reverseURLPattern, httpmock.NewStringResponder(tt.status, tt.body))

			_, err := client.ReverseGeocode(context.Background(), 1, 2)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.wantErr), "err = %v", err)
		})
	}
}

func TestReverseGeocodeMalformedBody(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder("GET", reverseURLPattern, httpmock.NewStringResponder(http.StatusOK, `{"display_name":`))

	_, err := client.ReverseGeocode(context.Background(), 1, 2)
	require.Error(t, err)
}

func TestReverseGeocodeTransportError(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder("GET", reverseURLPattern, httpmock.NewErrorResponder(errors.New("offline")))

	_, err := client.ReverseGeocode(context.Background(), 1, 2)
	require.Error(t, err)
}

func TestReverseGeocodeHonorsCancelledContext(t *testing.T) {
	client := newTestClient(t)
	httpmock.RegisterResponder("GET", reverseURLPattern, httpmock.NewStringResponder(http.StatusOK, `{"display_name":"x"}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ReverseGeocode(ctx, 1, 2)
	require.Error(t, err)
	assert.Equal(t, 0, httpmock.GetTotalCallCount())
}
