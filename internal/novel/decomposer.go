package novel

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"

	"novel-translate-service/internal/entity"
)

// Decomposer expands addresses into chapter references one address at a
// time. Fetches are never issued concurrently, so the first failing address
// is the one reported.
type Decomposer struct {
	fetcher *Fetcher
	log     *slog.Logger
}

func NewDecomposer(fetcher *Fetcher, log *slog.Logger) *Decomposer {
	if fetcher == nil {
		fetcher = NewFetcher(nil)
	}
	if log == nil {
		log = slog.Default()
	}
	return &Decomposer{fetcher: fetcher, log: log}
}

// Decompose resolves a single validated address.
func (d *Decomposer) Decompose(ctx context.Context, address string) ([]entity.ChapterReference, error) {
	u, err := url.Parse(address)
	if err != nil {
		return nil, entity.InvalidAddressError(address)
	}

	family := ClassifyURL(u)
	var refs []entity.ChapterReference
	switch family {
	case FamilyKakuyomu:
		refs, err = d.decomposeKakuyomu(ctx, u, address)
	case FamilySyosetu:
		refs, err = d.decomposeSyosetu(ctx, u, address)
	case FamilyPixiv:
		refs, err = d.decomposePixiv(ctx, u, address)
	default:
		return []entity.ChapterReference{entity.Chapter(address)}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("decompose %s: %w", family, err)
	}

	if len(refs) == 0 {
		d.log.Warn("address resolved to no chapters", "family", family.String(), "url", address)
	}
	return refs, nil
}

// DecomposeAll parses a whitespace separated address string and flattens the
// chapters of every address in input order.
func (d *Decomposer) DecomposeAll(ctx context.Context, input string) ([]entity.ChapterReference, error) {
	addresses, err := ParseAddresses(input)
	if err != nil {
		return nil, err
	}

	out := make([]entity.ChapterReference, 0, len(addresses))
	for _, addr := range addresses {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		refs, err := d.Decompose(ctx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, refs...)
	}
	return out, nil
}
