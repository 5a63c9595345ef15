// Package iplookup resolves an address (the caller's own when none is given)
// and fetches its geolocation.
package iplookup

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"ngltool/pkg/httpx"
	logx "ngltool/pkg/logx"
)

// Channel is the terminal log channel for lookups.
const Channel = "ip"

var (
	ErrDiscovery = errors.New("self-address discovery failed")
	ErrNoAddress = errors.New("self-address discovery returned no ip")
)

// LookupError is returned for any failure of either stage. Err is the
// underlying httpx or decode error, if any.
type LookupError struct {
	Msg string
	Err error
}

func (e *LookupError) Error() string {
	// Status failures already carry the code in Msg.
	if e.Err == nil || httpx.StatusCode(e.Err) != 0 {
		return e.Msg
	}
	return e.Msg + ": " + e.Err.Error()
}

func (e *LookupError) Unwrap() error { return e.Err }

// Is matches ErrDiscovery for first-stage failures.
func (e *LookupError) Is(target error) bool {
	return target == ErrDiscovery && e.Msg == ErrDiscovery.Error()
}

// Getter is the part of httpx.Client used by Client.
type Getter interface {
	GetJSON(ctx context.Context, endpoint string, v any) error
}

type Client struct {
	http        Getter
	selfURL     string
	geoTemplate string
	log         logx.Logger
}

// New builds a Client. geoTemplate must contain "{ip}".
func New(g Getter, selfURL, geoTemplate string, log logx.Logger) *Client {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{http: g, selfURL: selfURL, geoTemplate: geoTemplate, log: log}
}

// Lookup geolocates address, discovering the caller's public address first
// when address is empty. The first failing stage aborts the call.
func (c *Client) Lookup(ctx context.Context, address string) (Record, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		ip, err := c.discover(ctx)
		if err != nil {
			c.log.Warn("self-address discovery failed", logx.Err(err))
			return Record{}, &LookupError{Msg: ErrDiscovery.Error(), Err: err}
		}
		c.log.Debug("discovered public address", logx.String("ip", ip))
		address = ip
	}

	endpoint := c.geoURL(address)
	var body geoBody
	if err := c.http.GetJSON(ctx, endpoint, &body); err != nil {
		c.log.Warn("geolocation request failed", logx.String("ip", address), logx.Err(err))
		var se *httpx.StatusError
		if errors.As(err, &se) {
			return Record{}, &LookupError{Msg: fmt.Sprintf("lookup endpoint returned %d", se.Code), Err: err}
		}
		return Record{}, &LookupError{Msg: "lookup request failed", Err: err}
	}
	if reason, failed := body.failure(); failed {
		return Record{}, &LookupError{Msg: "lookup endpoint reported: " + reason}
	}

	rec := newRecord(body)
	c.log.Info("lookup finished",
		logx.String("ip", rec.Address),
		logx.String("country", rec.Country),
		logx.String("asn", rec.ASN),
	)
	return rec, nil
}

func (c *Client) discover(ctx context.Context) (string, error) {
	var body struct {
		IP string `json:"ip"`
	}
	if err := c.http.GetJSON(ctx, c.selfURL, &body); err != nil {
		return "", err
	}
	ip := strings.TrimSpace(body.IP)
	if ip == "" {
		return "", ErrNoAddress
	}
	return ip, nil
}

func (c *Client) geoURL(address string) string {
	return strings.ReplaceAll(c.geoTemplate, "{ip}", url.PathEscape(address))
}
