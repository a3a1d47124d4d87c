package farm

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/olgasafonova/wikikit/metrics"
	"github.com/olgasafonova/wikikit/tracing"
	"github.com/olgasafonova/wikikit/wiki"
)

// DefaultParallelism bounds concurrent per-wiki tasks in a fan-out.
const DefaultParallelism = 4

// Result is the outcome of one per-wiki task. Failures are reported
// per wiki; one slow or broken wiki never hides the others' results.
type Result[T any] struct {
	Domain string
	Value  T
	Err    error
}

// ForAllWikis runs task against every listed domain with at most
// parallelism tasks in flight (DefaultParallelism when zero or
// negative). Results keep the input order. Context cancellation stops
// unstarted tasks; their results carry the context error.
func ForAllWikis[T any](ctx context.Context, reg *Registry, domains []string, parallelism int, task func(ctx context.Context, client *wiki.Client) (T, error)) []Result[T] {
	if parallelism <= 0 {
		parallelism = DefaultParallelism
	}

	ctx, span := tracing.StartSpan(ctx, "farm.for_all_wikis")
	defer span.End()
	tracing.AddFarmAttributes(span, "", len(domains))

	results := make([]Result[T], len(domains))
	var g errgroup.Group
	g.SetLimit(parallelism)
	for i, domain := range domains {
		g.Go(func() error {
			results[i] = runOne(ctx, reg, domain, task)
			return nil
		})
	}
	_ = g.Wait() // tasks never return errors; failures live in the results

	for _, res := range results {
		status := "ok"
		if res.Err != nil {
			status = "error"
		}
		metrics.FarmTasksTotal.WithLabelValues(status).Inc()
	}
	return results
}

func runOne[T any](ctx context.Context, reg *Registry, domain string, task func(ctx context.Context, client *wiki.Client) (T, error)) Result[T] {
	result := Result[T]{Domain: domain}
	if err := ctx.Err(); err != nil {
		result.Err = err
		return result
	}
	client, err := reg.Session(domain)
	if err != nil {
		result.Err = err
		return result
	}
	result.Value, result.Err = task(ctx, client)
	return result
}

// GlobalUserInfo fetches a CentralAuth global account through the
// session for homeDomain, covering the user's attachments on every
// wiki of the farm.
func GlobalUserInfo(ctx context.Context, reg *Registry, homeDomain, user string) (wiki.GlobalUser, error) {
	client, err := reg.Session(homeDomain)
	if err != nil {
		return wiki.GlobalUser{}, err
	}
	return client.GetGlobalUserInfo(ctx, user)
}

// GlobalEditCounts fans out over the listed domains and reports each
// wiki's local edit count for the user, one result per domain.
func GlobalEditCounts(ctx context.Context, reg *Registry, domains []string, user string) []Result[int] {
	return ForAllWikis(ctx, reg, domains, DefaultParallelism, func(ctx context.Context, client *wiki.Client) (int, error) {
		users, err := client.GetUsers(ctx, []string{user})
		if err != nil {
			return 0, err
		}
		if len(users) == 0 || users[0].Missing {
			return 0, &wiki.PageNotFoundError{Title: "User:" + user}
		}
		return users[0].EditCount, nil
	})
}
