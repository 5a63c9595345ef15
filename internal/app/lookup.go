package app

import (
	"context"
	"fmt"
	"net/netip"
	"strings"
	"sync/atomic"

	"ngltool/internal/iplookup"
	logx "ngltool/pkg/logx"
)

// Mode selects whose address is looked up.
type Mode string

const (
	ModeSelf  Mode = "self"
	ModeOther Mode = "other"
)

// Locator is implemented by *iplookup.Client.
type Locator interface {
	Lookup(ctx context.Context, address string) (iplookup.Record, error)
}

type LookupRequest struct {
	Mode    Mode
	Address string
}

type LookupHandler struct {
	locator Locator
	term    *Terminal
	log     logx.Logger

	busy atomic.Bool
}

func NewLookupHandler(locator Locator, term *Terminal, log logx.Logger) *LookupHandler {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &LookupHandler{locator: locator, term: term, log: log}
}

// Handle performs one lookup and prints the record. Every error, including
// validation, is reported as an ERROR line before being returned.
func (h *LookupHandler) Handle(ctx context.Context, req LookupRequest) (iplookup.Record, error) {
	if !h.busy.CompareAndSwap(false, true) {
		h.line("⏳ BUSY: wait for the current scan to finish")
		return iplookup.Record{}, ErrBusy
	}
	defer h.busy.Store(false)

	h.line("🌐 SCANNING: Starting IP analysis...")

	rec, err := h.lookup(ctx, req)
	if err != nil {
		h.line("❌ ERROR: " + err.Error())
		return iplookup.Record{}, err
	}

	for _, f := range rec.Fields() {
		h.line(fmt.Sprintf("   %-13s %s", f.Label+":", f.Value))
	}
	h.line("✅ SUCCESS: IP scan completed")
	h.line(fmt.Sprintf("📍 LOCATION: %s, %s, %s", rec.City, rec.Region, rec.Country))
	h.line(fmt.Sprintf("🌍 COORDINATES: %s, %s", rec.Latitude, rec.Longitude))
	h.line(fmt.Sprintf("📡 NETWORK: %s (%s)", rec.ISP, asLabel(rec.ASN)))
	return rec, nil
}

func (h *LookupHandler) lookup(ctx context.Context, req LookupRequest) (iplookup.Record, error) {
	addr := ""
	if req.Mode == ModeOther {
		addr = strings.TrimSpace(req.Address)
		if addr == "" {
			return iplookup.Record{}, invalid("address", "Please enter target IP address")
		}
		if _, err := netip.ParseAddr(addr); err != nil {
			return iplookup.Record{}, invalid("address", fmt.Sprintf("%q is not a valid IP address", addr))
		}
	}

	if addr == "" {
		h.line("🎯 TARGET: Auto-detecting public IP")
	} else {
		h.line("🎯 TARGET: " + addr)
	}
	return h.locator.Lookup(ctx, addr)
}

func (h *LookupHandler) line(text string) { h.term.OnLogLine(iplookup.Channel, text) }

// asLabel prefixes a bare AS number with "AS"; the upstream usually includes it.
func asLabel(asn string) string {
	if asn == iplookup.Placeholder || strings.HasPrefix(strings.ToUpper(asn), "AS") {
		return asn
	}
	return "AS" + asn
}
