// Package marketplace holds the domain model shared by webhook ingestion,
// the status sync queue and the admin surface: providers, canonical order
// events, order status ranks, integration records and sync jobs.
package marketplace

import (
	"fmt"
	"strings"
)

// Provider identifies a third-party delivery marketplace.
type Provider string

const (
	ProviderDoorDash Provider = "doordash"
	ProviderUberEats Provider = "ubereats"
	ProviderGrubhub  Provider = "grubhub"
)

var knownProviders = []Provider{ProviderDoorDash, ProviderUberEats, ProviderGrubhub}

// Providers returns every supported marketplace in a stable order.
func Providers() []Provider {
	out := make([]Provider, len(knownProviders))
	copy(out, knownProviders)
	return out
}

// ParseProvider normalizes s and rejects marketplaces we do not integrate with.
func ParseProvider(s string) (Provider, error) {
	p := Provider(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownProvider, s)
	}
	return p, nil
}

// Valid reports whether p is a supported marketplace.
func (p Provider) Valid() bool {
	for _, known := range knownProviders {
		if p == known {
			return true
		}
	}
	return false
}

func (p Provider) String() string {
	return string(p)
}

// Origin records who initiated an order status transition. Marketplace-originated
// transitions are not echoed back to the same marketplace.
type Origin string

// OriginPOS marks transitions made inside the restaurant (staff, KDS, expo).
const OriginPOS Origin = "pos"

// OriginFor returns the origin value for a marketplace-driven transition.
func OriginFor(p Provider) Origin {
	return Origin(p)
}

// Provider returns the marketplace that originated the transition, if any.
func (o Origin) Provider() (Provider, bool) {
	p := Provider(o)
	return p, p.Valid()
}
