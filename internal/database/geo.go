// Telemetria - Behavioral Telemetry Analytics and Session Replay
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telemetria

package database

import (
	"context"
	"database/sql"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/netip"
	"os"
	"strings"
	"time"

	"github.com/tomtom215/telemetria/internal/logging"
	"github.com/tomtom215/telemetria/internal/metrics"
)

// The geo_networks table holds CIDR blocks flattened to fixed-width hex
// range bounds so lookup is a plain BETWEEN scan. IPv4 addresses are
// expanded to their 16-byte mapped form, giving one keyspace for both
// families. Longest prefix wins when blocks nest.

// CountryForIP returns the ISO country code for an address, or the empty
// string when no seeded network covers it. Satisfies geo.CountryStore.
func (db *DB) CountryForIP(ctx context.Context, ip string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("invalid address %q: %w", ip, err)
	}

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	key := addrHex(addr)
	start := time.Now()
	var country string
	err = db.conn.QueryRowContext(ctx, `
		SELECT country_code FROM geo_networks
		WHERE ? >= ip_start AND ? <= ip_end
		ORDER BY prefix_len DESC LIMIT 1`, key, key).Scan(&country)
	metrics.RecordDBQuery("select", "geo_networks", time.Since(start), err)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("geo lookup for %s failed: %w", ip, err)
	}
	return country, nil
}

// SeedGeoNetworks loads a network,country_code CSV into the geo_networks
// table. Re-seeding the same file is idempotent; a changed country code
// for a known network overwrites the old one. Malformed rows are skipped
// with a log line rather than aborting the seed.
func (db *DB) SeedGeoNetworks(ctx context.Context, path string) error {
	f, err := os.Open(path) // #nosec G304 -- operator-supplied seed path
	if err != nil {
		return fmt.Errorf("failed to open geo seed %s: %w", path, err)
	}
	defer closeQuietly(f)

	ctx, cancel := db.ensureContext(ctx)
	defer cancel()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var loaded, skipped int
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read geo seed %s: %w", path, err)
		}
		if len(record) < 2 {
			skipped++
			continue
		}

		network := strings.TrimSpace(record[0])
		country := strings.ToUpper(strings.TrimSpace(record[1]))
		if network == "" || network == "network" {
			// blank line or header row
			continue
		}

		prefix, err := netip.ParsePrefix(network)
		if err != nil || len(country) != 2 {
			logging.Debug().Str("network", network).Str("country", country).Msg("Skipping malformed geo seed row")
			skipped++
			continue
		}

		startHex, endHex := prefixRangeHex(prefix)
		if _, err := db.conn.ExecContext(ctx, `
			INSERT INTO geo_networks (network, country_code, ip_start, ip_end, prefix_len)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (network) DO UPDATE SET
				country_code = EXCLUDED.country_code,
				ip_start = EXCLUDED.ip_start,
				ip_end = EXCLUDED.ip_end,
				prefix_len = EXCLUDED.prefix_len`,
			prefix.String(), country, startHex, endHex, effectivePrefixLen(prefix)); err != nil {
			return fmt.Errorf("failed to seed network %s: %w", network, err)
		}
		loaded++
	}

	logging.Info().Int("loaded", loaded).Int("skipped", skipped).Str("path", path).
		Msg("Geo network seed complete")
	return nil
}

// addrHex returns the fixed-width hex key of an address's 16-byte form.
func addrHex(addr netip.Addr) string {
	b := addr.As16()
	return hex.EncodeToString(b[:])
}

// prefixRangeHex returns the hex keys of the first and last address
// covered by a CIDR block.
func prefixRangeHex(p netip.Prefix) (string, string) {
	p = p.Masked()
	first := p.Addr().As16()

	last := first
	// Set all host bits below the prefix boundary. bits is relative to the
	// 16-byte form, so IPv4 prefixes are shifted into the mapped range.
	bits := effectivePrefixLen(p)
	for i := bits; i < 128; i++ {
		last[i/8] |= 1 << (7 - i%8)
	}

	return hex.EncodeToString(first[:]), hex.EncodeToString(last[:])
}

// effectivePrefixLen normalizes a prefix length to the 16-byte keyspace:
// an IPv4 /24 behaves like a mapped /120.
func effectivePrefixLen(p netip.Prefix) int {
	if p.Addr().Is4() {
		return p.Bits() + 96
	}
	return p.Bits()
}
