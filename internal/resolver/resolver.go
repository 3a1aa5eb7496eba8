// Package resolver walks the DNS delegation chain against a shared record
// cache: answer from the cache when possible, otherwise find the closest
// cached delegation point and, for recursive queries, chase it upstream one
// level at a time, caching everything learned along the way.
package resolver

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/cache"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

// ErrResolutionFailed means every upstream candidate was exhausted without
// an answer. The server loop maps it to SERVFAIL.
var ErrResolutionFailed = errors.New("upstream resolution failed")

// DefaultMaxSteps bounds delegation retries per query. Each successful
// upstream exchange restarts the lookup one level deeper, so a well-behaved
// chain converges long before this; the cap guards against cyclic NS
// delegation and cache corruption.
const DefaultMaxSteps = 16

// Exchanger performs one query/response round trip against an upstream
// nameserver at the given IPv4 address.
type Exchanger interface {
	Exchange(ctx context.Context, addr string, query *wire.Message) (*wire.Message, error)
}

// Resolver answers queries from the cache, delegating upstream when allowed.
type Resolver struct {
	cache    *cache.Cache
	upstream Exchanger
	log      logr.Logger

	// MaxSteps caps delegation retries per query. Exceeding it reports
	// ErrResolutionFailed.
	MaxSteps int
}

// New creates a resolver over the given cache and upstream transport.
func New(c *cache.Cache, upstream Exchanger, log logr.Logger) *Resolver {
	return &Resolver{
		cache:    c,
		upstream: upstream,
		log:      log,
		MaxSteps: DefaultMaxSteps,
	}
}

// Resolve produces the answer and additional record sets for one question.
// Empty results with a nil error mean the name authoritatively does not
// exist. A CNAME answer is returned as-is; re-querying the target is the
// caller's job. Iterative queries never touch the network.
func (r *Resolver) Resolve(ctx context.Context, rrtype wire.RRType, name string, recursive bool) (answers, additional []*wire.Record, err error) {
	mode := "iterative"
	if recursive {
		mode = "recursive"
	}
	r.log.V(1).Info("resolving", "type", rrtype.String(), "name", name, "mode", mode)
	return r.resolve(ctx, rrtype, name, recursive, 0)
}

func (r *Resolver) resolve(ctx context.Context, rrtype wire.RRType, name string, recursive bool, depth int) ([]*wire.Record, []*wire.Record, error) {
	if depth >= r.maxSteps() {
		return nil, nil, fmt.Errorf("%w: gave up after %d delegation steps for %s", ErrResolutionFailed, depth, name)
	}

	path := cache.SplitName(name)
	matched, zone := r.cache.Lookup(path)

	if len(matched) == len(path) {
		if records := r.cache.Records(zone, rrtype); len(records) > 0 {
			return records, nil, nil
		}
		// A CNAME at the exact zone answers any other type.
		if records := r.cache.Records(zone, wire.TypeCNAME); len(records) > 0 {
			return records, nil, nil
		}
	}

	nsRecords, err := r.delegationPoint(matched, zone)
	if err != nil {
		return nil, nil, err
	}

	if !recursive {
		return nsRecords, r.cachedGlue(nsRecords), nil
	}
	return r.resolveUpstream(ctx, rrtype, name, nsRecords, depth)
}

// delegationPoint walks upward from the closest matched zone until it finds
// NS records. The seeded root hints make this terminate at the root in any
// properly bootstrapped cache.
func (r *Resolver) delegationPoint(matched []string, zone *cache.Zone) ([]*wire.Record, error) {
	for {
		if records := r.cache.Records(zone, wire.TypeNS); len(records) > 0 {
			return records, nil
		}
		if len(matched) == 0 {
			return nil, fmt.Errorf("%w: no NS records up to the root; cache is not seeded", ErrResolutionFailed)
		}
		matched, zone = r.cache.Lookup(matched[1:])
	}
}

// cachedGlue collects already-cached A records for each NS target. Iterative
// answers only report what the cache knows; they never trigger upstream I/O.
func (r *Resolver) cachedGlue(nsRecords []*wire.Record) []*wire.Record {
	var glue []*wire.Record
	for _, ns := range nsRecords {
		glue = append(glue, r.addressesOf(ns.Value)...)
	}
	return glue
}

// addressesOf returns cached A records attached exactly at the given name.
func (r *Resolver) addressesOf(name string) []*wire.Record {
	path := cache.SplitName(name)
	matched, zone := r.cache.Lookup(path)
	if len(matched) < len(path) {
		return nil
	}
	return r.cache.Records(zone, wire.TypeA)
}

// resolveUpstream queries the delegation's nameservers for the original
// question. Per-address and per-NS failures move on to the next candidate;
// NXDOMAIN is final. A successful response is ingested into the cache and
// the whole lookup restarts one delegation level closer to the target.
func (r *Resolver) resolveUpstream(ctx context.Context, rrtype wire.RRType, name string, nsRecords []*wire.Record, depth int) ([]*wire.Record, []*wire.Record, error) {
	for _, ns := range nsRecords {
		// Upstream servers hand out nameserver addresses as additional
		// records, so by the time an NS is tried its glue is normally
		// cached already. Without glue the server is unreachable; skip it.
		addresses := r.addressesOf(ns.Value)
		if len(addresses) == 0 {
			r.log.V(1).Info("skipping nameserver without cached address", "ns", ns.Value)
			continue
		}

		for _, addr := range addresses {
			query := wire.NewQuery(rrtype, name, false)
			r.log.V(1).Info("querying upstream", "server", ns.Value, "addr", addr.Value, "type", rrtype.String(), "name", name)

			response, err := r.upstream.Exchange(ctx, addr.Value, query)
			if err != nil {
				r.log.Error(err, "upstream exchange failed", "addr", addr.Value)
				continue
			}

			switch response.RCode {
			case wire.RCodeNameError:
				// Authoritative "does not exist"; do not second-guess it
				// with further candidates.
				return nil, nil, nil
			case wire.RCodeNoError:
			default:
				r.log.V(1).Info("upstream returned error", "addr", addr.Value, "rcode", response.RCode.String())
				continue
			}

			r.ingest(response.Answers)
			r.ingest(response.Authority)
			r.ingest(response.Additional)

			return r.resolve(ctx, rrtype, name, true, depth+1)
		}
	}
	return nil, nil, fmt.Errorf("%w: no upstream nameserver answered for %s", ErrResolutionFailed, name)
}

// ingest caches the resolution-relevant records from an upstream response.
func (r *Resolver) ingest(records []*wire.Record) {
	var keep []*wire.Record
	for _, record := range records {
		switch record.Type {
		case wire.TypeA, wire.TypeAAAA, wire.TypeCNAME, wire.TypeNS:
			keep = append(keep, record)
		}
	}
	if len(keep) > 0 {
		r.cache.Insert(keep)
	}
}

func (r *Resolver) maxSteps() int {
	if r.MaxSteps > 0 {
		return r.MaxSteps
	}
	return DefaultMaxSteps
}
