package iplookup

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Placeholder stands in for every field the upstream omits.
const Placeholder = "-"

// Record is a normalized geolocation result. No field is ever empty.
type Record struct {
	Address     string `json:"address"`
	Country     string `json:"country"`
	Region      string `json:"region"`
	City        string `json:"city"`
	Postal      string `json:"postal"`
	Latitude    string `json:"latitude"`
	Longitude   string `json:"longitude"`
	Timezone    string `json:"timezone"`
	ISP         string `json:"isp"`
	Org         string `json:"org"`
	ASN         string `json:"asn"`
	Continent   string `json:"continent"`
	Currency    string `json:"currency"`
	Languages   string `json:"languages"`
	CallingCode string `json:"calling_code"`
}

// Field is one labelled row of a Record, in display order.
type Field struct {
	Label string
	Value string
}

func (r Record) Fields() []Field {
	return []Field{
		{"IP Address", r.Address},
		{"Country", r.Country},
		{"Region", r.Region},
		{"City", r.City},
		{"ZIP Code", r.Postal},
		{"Latitude", r.Latitude},
		{"Longitude", r.Longitude},
		{"Timezone", r.Timezone},
		{"ISP", r.ISP},
		{"Organization", r.Org},
		{"AS Number", r.ASN},
		{"Continent", r.Continent},
		{"Currency", r.Currency},
		{"Languages", r.Languages},
		{"Calling Code", r.CallingCode},
	}
}

// geoBody is the subset of the geolocation response we read. Values stay
// raw because the service mixes strings, numbers and nulls.
type geoBody map[string]json.RawMessage

func newRecord(b geoBody) Record {
	org := b.str("org")
	return Record{
		Address:     b.str("ip"),
		Country:     b.str("country_name"),
		Region:      b.str("region"),
		City:        b.str("city"),
		Postal:      b.str("postal"),
		Latitude:    b.str("latitude"),
		Longitude:   b.str("longitude"),
		Timezone:    b.str("timezone"),
		ISP:         org,
		Org:         org,
		ASN:         b.str("asn"),
		Continent:   b.str("continent_code"),
		Currency:    b.str("currency"),
		Languages:   b.str("languages"),
		CallingCode: b.str("country_calling_code"),
	}
}

// str renders key as text, or Placeholder when it is absent, null, empty
// or not a scalar.
func (b geoBody) str(key string) string {
	raw, ok := b[key]
	if !ok {
		return Placeholder
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return Placeholder
	}
	switch x := v.(type) {
	case string:
		if s := strings.TrimSpace(x); s != "" {
			return s
		}
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	}
	return Placeholder
}

// failure reports the service's in-band error ({"error": true, "reason": ...}).
func (b geoBody) failure() (string, bool) {
	raw, ok := b["error"]
	if !ok {
		return "", false
	}
	var flag bool
	if err := json.Unmarshal(raw, &flag); err != nil || !flag {
		return "", false
	}
	reason := b.str("reason")
	if reason == Placeholder {
		reason = "unknown error"
	}
	return reason, true
}
