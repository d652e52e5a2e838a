package vector

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/tanya/internal/models"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/hyperjump/tanya/internal/vector")

// FederatedOptions bounds a federated query.
type FederatedOptions struct {
	// Timeout limits each namespace query. Namespaces that exceed it are skipped. Zero or negative disables it.
	Timeout time.Duration
	// Concurrency caps parallel namespace queries. Zero or negative means unbounded.
	Concurrency int
	Logger      *zap.Logger
}

// FederatedResult is the merged output of a federated query.
type FederatedResult struct {
	Matches    []models.Match
	Namespaces []string
	TimedOut   []string
}

// QueryFederated queries every namespace the store currently lists, except the reserved
// global partition, and concatenates the matches in namespace order. Results are merged
// only after every namespace query has returned or timed out. Any failure other than a
// per-namespace timeout fails the whole query.
func QueryFederated(ctx context.Context, store Store, vector []float32, topK int, opts FederatedOptions) (*FederatedResult, error) {
	ctx, span := tracer.Start(ctx, "vector.QueryFederated")
	defer span.End()

	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	all, err := store.ListNamespaces(ctx)
	if err != nil {
		return nil, fmt.Errorf("list namespaces: %w", err)
	}
	namespaces := make([]string, 0, len(all))
	for _, ns := range all {
		if ns != models.GlobalNamespace {
			namespaces = append(namespaces, ns)
		}
	}
	span.SetAttributes(attribute.Int("namespaces", len(namespaces)))

	perNamespace := make([][]models.Match, len(namespaces))
	timedOut := make([]bool, len(namespaces))
	g, gctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		g.SetLimit(opts.Concurrency)
	}
	for i, ns := range namespaces {
		g.Go(func() error {
			qctx := gctx
			if opts.Timeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(gctx, opts.Timeout)
				defer cancel()
			}
			matches, err := store.Query(qctx, ns, vector, topK)
			if err != nil {
				if opts.Timeout > 0 && errors.Is(qctx.Err(), context.DeadlineExceeded) && gctx.Err() == nil {
					logger.Warn("namespace query timed out; skipping",
						zap.String("namespace", ns),
						zap.Duration("timeout", opts.Timeout),
					)
					timedOut[i] = true
					return nil
				}
				return fmt.Errorf("query namespace %s: %w", ns, err)
			}
			perNamespace[i] = matches
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &FederatedResult{Matches: []models.Match{}, Namespaces: namespaces}
	for i, matches := range perNamespace {
		if timedOut[i] {
			result.TimedOut = append(result.TimedOut, namespaces[i])
			continue
		}
		result.Matches = append(result.Matches, matches...)
	}
	span.SetAttributes(
		attribute.Int("matches", len(result.Matches)),
		attribute.Int("timed_out", len(result.TimedOut)),
	)
	return result, nil
}
