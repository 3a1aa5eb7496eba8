package resolver

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/go-logr/logr"

	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/cache"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/config"
	"github.com/yuriy-kovalchuk/yk-dns-resolver/internal/wire"
)

// fakeExchanger replays scripted responses per upstream address and records
// every exchange it is asked to perform.
type fakeExchanger struct {
	responses map[string][]*wire.Message
	calls     []string
}

func (f *fakeExchanger) Exchange(_ context.Context, addr string, query *wire.Message) (*wire.Message, error) {
	f.calls = append(f.calls, addr)
	queue := f.responses[addr]
	if len(queue) == 0 {
		return nil, fmt.Errorf("no scripted response for %s", addr)
	}
	response := queue[0]
	f.responses[addr] = queue[1:]
	response.ID = query.ID
	return response, nil
}

func respond(rcode wire.RCode, answers, authority, additional []*wire.Record) *wire.Message {
	return &wire.Message{
		Response:   true,
		RCode:      rcode,
		Answers:    answers,
		Authority:  authority,
		Additional: additional,
	}
}

func seededResolver(t *testing.T, upstream *fakeExchanger) (*Resolver, *cache.Cache) {
	t.Helper()
	c := cache.New()
	c.Insert(config.DefaultRootHints())
	return New(c, upstream, logr.Discard()), c
}

func TestResolveFromCacheWithoutNetwork(t *testing.T) {
	upstream := &fakeExchanger{}
	res, _ := seededResolver(t, upstream)

	answers, additional, err := res.Resolve(context.Background(), wire.TypeA, "a.root-servers.net", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 1 || answers[0].Value != "198.41.0.4" {
		t.Fatalf("expected the seeded A record, got %v", answers)
	}
	if len(additional) != 0 {
		t.Errorf("unexpected additional records: %v", additional)
	}
	if len(upstream.calls) != 0 {
		t.Errorf("cache hit must not reach upstream, got calls %v", upstream.calls)
	}
}

func TestResolveCNAMEPrecedence(t *testing.T) {
	upstream := &fakeExchanger{}
	res, c := seededResolver(t, upstream)
	c.Insert([]*wire.Record{
		wire.NewRecord(wire.TypeCNAME, "alias.example.com", "canonical.example.com", 300),
	})

	answers, _, err := res.Resolve(context.Background(), wire.TypeA, "alias.example.com", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 1 || answers[0].Type != wire.TypeCNAME {
		t.Fatalf("expected the CNAME record, got %v", answers)
	}
	// chasing the CNAME target is the caller's job
	if answers[0].Value != "canonical.example.com" {
		t.Errorf("unexpected CNAME target %q", answers[0].Value)
	}
}

func TestIterativeReturnsClosestDelegation(t *testing.T) {
	upstream := &fakeExchanger{}
	res, _ := seededResolver(t, upstream)

	answers, additional, err := res.Resolve(context.Background(), wire.TypeA, "www.example.com", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 13 {
		t.Fatalf("expected the 13 root NS hints, got %d records", len(answers))
	}
	for _, r := range answers {
		if r.Type != wire.TypeNS {
			t.Errorf("expected only NS answers, got %v", r)
		}
	}
	if len(additional) != 13 {
		t.Errorf("expected glue A records for all 13 servers, got %d", len(additional))
	}
	if len(upstream.calls) != 0 {
		t.Errorf("iterative mode must not reach upstream, got calls %v", upstream.calls)
	}
}

func TestRecursiveWalksDelegation(t *testing.T) {
	upstream := &fakeExchanger{
		responses: map[string][]*wire.Message{
			// a.root-servers.net delegates example.com with glue
			"198.41.0.4": {respond(wire.RCodeNoError, nil,
				[]*wire.Record{wire.NewRecord(wire.TypeNS, "example.com", "ns1.example.com", 86400)},
				[]*wire.Record{wire.NewRecord(wire.TypeA, "ns1.example.com", "192.0.2.1", 86400)},
			)},
			// ns1.example.com answers
			"192.0.2.1": {respond(wire.RCodeNoError,
				[]*wire.Record{wire.NewRecord(wire.TypeA, "www.example.com", "192.0.2.80", 300)},
				nil, nil,
			)},
		},
	}
	res, c := seededResolver(t, upstream)

	answers, _, err := res.Resolve(context.Background(), wire.TypeA, "www.example.com", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 1 || answers[0].Value != "192.0.2.80" {
		t.Fatalf("expected the authoritative answer, got %v", answers)
	}
	if len(upstream.calls) != 2 {
		t.Fatalf("expected 2 upstream exchanges, got %v", upstream.calls)
	}
	if upstream.calls[0] != "198.41.0.4" || upstream.calls[1] != "192.0.2.1" {
		t.Errorf("unexpected exchange order %v", upstream.calls)
	}

	// everything learned along the way is now cached
	matched, zone := c.Lookup(cache.SplitName("www.example.com"))
	if len(matched) != 3 {
		t.Fatal("answer was not cached")
	}
	if got := c.Records(zone, wire.TypeA); len(got) != 1 {
		t.Errorf("expected cached answer, got %v", got)
	}
}

func TestRecursiveNXDOMAINShortCircuits(t *testing.T) {
	upstream := &fakeExchanger{
		responses: map[string][]*wire.Message{
			"198.41.0.4": {respond(wire.RCodeNameError, nil, nil, nil)},
		},
	}
	res, _ := seededResolver(t, upstream)

	answers, additional, err := res.Resolve(context.Background(), wire.TypeA, "nope.example.com", true)
	if err != nil {
		t.Fatalf("authoritative not-found is not an error, got %v", err)
	}
	if len(answers) != 0 || len(additional) != 0 {
		t.Errorf("expected empty result, got %v / %v", answers, additional)
	}
	if len(upstream.calls) != 1 {
		t.Errorf("NXDOMAIN must stop immediately, got calls %v", upstream.calls)
	}
}

func TestRecursiveRetriesNextCandidateOnServerError(t *testing.T) {
	upstream := &fakeExchanger{
		responses: map[string][]*wire.Message{
			// a: server error, b: refuses, c: answers
			"198.41.0.4":    {respond(wire.RCodeServerFailure, nil, nil, nil)},
			"170.247.170.2": {respond(wire.RCodeRefused, nil, nil, nil)},
			"192.33.4.12": {respond(wire.RCodeNoError,
				[]*wire.Record{wire.NewRecord(wire.TypeA, "www.example.com", "192.0.2.80", 300)},
				nil, nil,
			)},
		},
	}
	res, _ := seededResolver(t, upstream)

	answers, _, err := res.Resolve(context.Background(), wire.TypeA, "www.example.com", true)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(answers) != 1 || answers[0].Value != "192.0.2.80" {
		t.Fatalf("expected the answer from the third candidate, got %v", answers)
	}
	if len(upstream.calls) != 3 {
		t.Errorf("expected 3 exchanges, got %v", upstream.calls)
	}
}

func TestRecursiveAllCandidatesExhausted(t *testing.T) {
	upstream := &fakeExchanger{} // every exchange fails with a transport error
	res, _ := seededResolver(t, upstream)

	_, _, err := res.Resolve(context.Background(), wire.TypeA, "www.example.com", true)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
	if len(upstream.calls) != 13 {
		t.Errorf("expected one exchange per root server, got %d", len(upstream.calls))
	}
}

func TestRecursiveStepLimit(t *testing.T) {
	// upstream always "succeeds" without teaching the cache anything, so the
	// lookup can never make progress
	upstream := &fakeExchanger{responses: map[string][]*wire.Message{}}
	for _, addr := range []string{"198.41.0.4"} {
		for n := 0; n < 10; n++ {
			upstream.responses[addr] = append(upstream.responses[addr],
				respond(wire.RCodeNoError, nil, nil, nil))
		}
	}
	res, _ := seededResolver(t, upstream)
	res.MaxSteps = 3

	_, _, err := res.Resolve(context.Background(), wire.TypeA, "www.example.com", true)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
	if len(upstream.calls) != 3 {
		t.Errorf("expected the step limit to cap exchanges at 3, got %d", len(upstream.calls))
	}
}

func TestRecursiveSkipsNameserverWithoutGlue(t *testing.T) {
	c := cache.New()
	c.Insert([]*wire.Record{
		wire.NewRecord(wire.TypeNS, "", "glueless.ns.test", -1),
	})
	upstream := &fakeExchanger{}
	res := New(c, upstream, logr.Discard())

	_, _, err := res.Resolve(context.Background(), wire.TypeA, "www.example.com", true)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
	if len(upstream.calls) != 0 {
		t.Errorf("a glueless nameserver must be skipped, got calls %v", upstream.calls)
	}
}

func TestUnseededCacheFailsCleanly(t *testing.T) {
	res := New(cache.New(), &fakeExchanger{}, logr.Discard())
	_, _, err := res.Resolve(context.Background(), wire.TypeA, "www.example.com", false)
	if !errors.Is(err, ErrResolutionFailed) {
		t.Fatalf("expected ErrResolutionFailed, got %v", err)
	}
}
