package iplookup

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ngltool/pkg/httpx"
	logx "ngltool/pkg/logx"
)

const fullGeoBody = `{
	"ip": "203.0.113.9",
	"country_name": "Indonesia",
	"region": "Jakarta",
	"city": "Jakarta",
	"postal": "10110",
	"latitude": -6.2146,
	"longitude": 106.8451,
	"timezone": "Asia/Jakarta",
	"org": "PT Example Net",
	"asn": "AS64500",
	"continent_code": "AS",
	"currency": "IDR",
	"languages": "id,en,nl,jv",
	"country_calling_code": "+62"
}`

// upstream fakes both endpoints on one server and records request paths.
type upstream struct {
	server   *httptest.Server
	selfCode int
	selfBody string
	geoCode  int
	geoBody  string

	mu    sync.Mutex
	paths []string
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{
		selfCode: http.StatusOK,
		selfBody: `{"ip":"198.51.100.7"}`,
		geoCode:  http.StatusOK,
		geoBody:  fullGeoBody,
	}
	u.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		u.mu.Lock()
		u.paths = append(u.paths, r.URL.Path)
		u.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		if r.URL.Path == "/self" {
			w.WriteHeader(u.selfCode)
			_, _ = io.WriteString(w, u.selfBody)
			return
		}
		w.WriteHeader(u.geoCode)
		_, _ = io.WriteString(w, u.geoBody)
	}))
	t.Cleanup(u.server.Close)
	return u
}

func (u *upstream) client() *Client {
	return New(httpx.New(u.server.Client(), ""), u.server.URL+"/self?format=json", u.server.URL+"/geo/{ip}/json/", logx.Nop())
}

func (u *upstream) requested() []string {
	u.mu.Lock()
	defer u.mu.Unlock()
	return append([]string(nil), u.paths...)
}

func TestLookup_DiscoversSelfAddressFirst(t *testing.T) {
	u := newUpstream(t)

	rec, err := u.client().Lookup(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, []string{"/self", "/geo/198.51.100.7/json/"}, u.requested())
	assert.Equal(t, "203.0.113.9", rec.Address)
	assert.Equal(t, "Indonesia", rec.Country)
	assert.Equal(t, "-6.2146", rec.Latitude)
	assert.Equal(t, "106.8451", rec.Longitude)
	assert.Equal(t, "PT Example Net", rec.ISP)
	assert.Equal(t, "PT Example Net", rec.Org)
	assert.Equal(t, "AS64500", rec.ASN)
	assert.Equal(t, "+62", rec.CallingCode)
}

func TestLookup_ExplicitAddressSkipsDiscovery(t *testing.T) {
	u := newUpstream(t)

	_, err := u.client().Lookup(context.Background(), " 1.2.3.4 ")
	require.NoError(t, err)
	assert.Equal(t, []string{"/geo/1.2.3.4/json/"}, u.requested())
}

func TestLookup_MissingFieldsUsePlaceholder(t *testing.T) {
	u := newUpstream(t)
	u.geoBody = `{"ip":"1.2.3.4","country_name":"Germany","city":null,"region":"","latitude":0}`

	rec, err := u.client().Lookup(context.Background(), "1.2.3.4")
	require.NoError(t, err)

	assert.Equal(t, "Germany", rec.Country)
	assert.Equal(t, Placeholder, rec.Postal)
	assert.Equal(t, Placeholder, rec.City)
	assert.Equal(t, Placeholder, rec.Region)
	assert.Equal(t, "0", rec.Latitude)
	for _, f := range rec.Fields() {
		assert.NotEmpty(t, f.Value, f.Label)
	}
}

func TestLookup_DiscoveryNetworkFailure(t *testing.T) {
	u := newUpstream(t)
	geoCalls := 0
	g := getterFunc(func(ctx context.Context, endpoint string, v any) error {
		if strings.Contains(endpoint, "/self") {
			return &httpx.NetworkError{Method: http.MethodGet, URL: endpoint, Err: errors.New("dial tcp: connection refused")}
		}
		geoCalls++
		return nil
	})
	c := New(g, u.server.URL+"/self", u.server.URL+"/geo/{ip}/json/", logx.Nop())

	_, err := c.Lookup(context.Background(), "")
	require.Error(t, err)

	var le *LookupError
	require.True(t, errors.As(err, &le))
	assert.ErrorIs(t, err, ErrDiscovery)
	var ne *httpx.NetworkError
	assert.True(t, errors.As(err, &ne))
	assert.True(t, strings.HasPrefix(err.Error(), "self-address discovery failed"))
	assert.Zero(t, geoCalls)
}

func TestLookup_DiscoveryStatusFailure(t *testing.T) {
	u := newUpstream(t)
	u.selfCode = http.StatusServiceUnavailable

	_, err := u.client().Lookup(context.Background(), "")
	require.Error(t, err)
	assert.Equal(t, "self-address discovery failed", err.Error())
	assert.Equal(t, []string{"/self"}, u.requested())
}

func TestLookup_DiscoveryEmptyAddress(t *testing.T) {
	u := newUpstream(t)
	u.selfBody = `{"ip":""}`

	_, err := u.client().Lookup(context.Background(), "")
	assert.ErrorIs(t, err, ErrDiscovery)
	assert.ErrorIs(t, err, ErrNoAddress)
}

func TestLookup_GeolocationStatusFailure(t *testing.T) {
	u := newUpstream(t)
	u.geoCode = http.StatusTooManyRequests

	_, err := u.client().Lookup(context.Background(), "1.2.3.4")
	require.Error(t, err)

	var le *LookupError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, "lookup endpoint returned 429", err.Error())
	assert.Equal(t, http.StatusTooManyRequests, httpx.StatusCode(err))
	assert.NotErrorIs(t, err, ErrDiscovery)
}

func TestLookup_InBandError(t *testing.T) {
	u := newUpstream(t)
	u.geoBody = `{"ip":"999.1.1.1","error":true,"reason":"Invalid IP Address"}`

	_, err := u.client().Lookup(context.Background(), "999.1.1.1")
	require.Error(t, err)
	assert.Equal(t, "lookup endpoint reported: Invalid IP Address", err.Error())
}

type getterFunc func(ctx context.Context, endpoint string, v any) error

func (f getterFunc) GetJSON(ctx context.Context, endpoint string, v any) error {
	return f(ctx, endpoint, v)
}
