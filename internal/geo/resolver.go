// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

// Package geo resolves client network addresses to 2-letter country codes.
//
// Geolocation is enrichment, not a gate: Resolve never returns an error.
// Every failure path (empty header, malformed address, private range, no
// database match) falls back to the configured default code.
package geo

import (
	"context"
	"net/netip"
	"strings"

	"github.com/tomtom215/telemetria/internal/logging"
)

// CountryStore is the lookup contract against the local geo database.
// Implementations return an empty string when no network matches.
type CountryStore interface {
	CountryForIP(ctx context.Context, ip string) (string, error)
}

// Resolver maps forwarded-address header values to country codes.
type Resolver struct {
	store          CountryStore
	defaultCountry string
}

// NewResolver creates a resolver backed by the given store.
// defaultCountry is returned for every unresolvable address.
func NewResolver(store CountryStore, defaultCountry string) *Resolver {
	return &Resolver{
		store:          store,
		defaultCountry: strings.ToUpper(defaultCountry),
	}
}

// Resolve maps a raw forwarded-address header value to a country code.
// The header may be a comma-separated chain; the first entry is the client.
// Private and loopback addresses short-circuit to the default without a
// database lookup.
func (r *Resolver) Resolve(ctx context.Context, forwardedFor string) string {
	ip := ClientIP(forwardedFor)
	if ip == "" {
		return r.defaultCountry
	}

	addr, err := netip.ParseAddr(ip)
	if err != nil {
		logging.Debug().Str("ip", ip).Msg("unparseable client address, using default country")
		return r.defaultCountry
	}

	if IsPrivate(addr) {
		return r.defaultCountry
	}

	country, err := r.store.CountryForIP(ctx, addr.String())
	if err != nil {
		logging.Warn().Str("ip", addr.String()).Err(err).Msg("geo lookup failed, using default country")
		return r.defaultCountry
	}

	country = strings.ToUpper(strings.TrimSpace(country))
	if len(country) != 2 {
		return r.defaultCountry
	}
	return country
}

// DefaultCountry returns the configured fallback code.
func (r *Resolver) DefaultCountry() string {
	return r.defaultCountry
}

// ClientIP extracts the client address from a forwarded-for chain:
// the first non-empty entry, with any port and brackets stripped.
func ClientIP(forwardedFor string) string {
	for _, part := range strings.Split(forwardedFor, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		return stripPort(part)
	}
	return ""
}

// stripPort removes a trailing :port from host:port or [v6]:port forms.
// A bare IPv6 address (multiple colons, no brackets) is returned as-is.
func stripPort(host string) string {
	if strings.HasPrefix(host, "[") {
		if end := strings.Index(host, "]"); end > 0 {
			return host[1:end]
		}
		return host
	}
	if strings.Count(host, ":") == 1 {
		if idx := strings.LastIndex(host, ":"); idx > 0 {
			return host[:idx]
		}
	}
	return host
}

// IsPrivate reports whether the address belongs to a range that can never
// resolve to a country: private, loopback, link-local, or unspecified.
func IsPrivate(addr netip.Addr) bool {
	return addr.IsPrivate() ||
		addr.IsLoopback() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsUnspecified()
}
