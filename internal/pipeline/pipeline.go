// Package pipeline wires the fetch, sanitize, dedup, publish and archive
// stages into one sequential batch run.
package pipeline

import (
	"context"

	"go.uber.org/zap"

	"proxyherald/internal/archive"
	"proxyherald/internal/budget"
	"proxyherald/internal/dedup"
	"proxyherald/internal/proxy"
	"proxyherald/internal/publish"
	"proxyherald/internal/source"
)

// Stats summarizes one pipeline run.
type Stats struct {
	Fetched int
	Cleaned int
	Fresh   int
	Posted  int
}

// Pipeline executes the sanitize-deduplicate-publish sequence. Everything
// below the process boundary is handled here: a failing stage logs and
// yields an empty result, it never aborts the run.
type Pipeline struct {
	fetcher           *source.Fetcher
	store             *archive.Store
	publisher         *publish.Publisher
	subscriptionsPath string
	logger            *zap.Logger
}

// New assembles a Pipeline.
func New(
	fetcher *source.Fetcher,
	store *archive.Store,
	publisher *publish.Publisher,
	subscriptionsPath string,
	logger *zap.Logger,
) *Pipeline {
	return &Pipeline{
		fetcher:           fetcher,
		store:             store,
		publisher:         publisher,
		subscriptionsPath: subscriptionsPath,
		logger:            logger,
	}
}

// Run drives one batch run under the given budget and reports what each
// stage produced. The archive is read once and written at most once.
func (p *Pipeline) Run(ctx context.Context, b *budget.Budget) Stats {
	var stats Stats

	p.logger.Info("--- Stage: Data Loading ---")
	fetched := p.fetcher.FetchAll(ctx, p.subscriptionsPath, b)
	stats.Fetched = len(fetched)
	if len(fetched) == 0 {
		p.logger.Info("No proxies were fetched")
		return stats
	}

	p.logger.Info("--- Stage: Processing and Filtering ---")
	cleaned := proxy.SanitizeAll(fetched, p.logger)
	stats.Cleaned = len(cleaned)

	archived := p.store.Load()
	fresh := dedup.Filter(cleaned, archive.Links(archived), p.logger)
	stats.Fresh = len(fresh)
	p.logger.Info("New unique proxies after cleaning and filtering",
		zap.Int("count", len(fresh)),
	)
	if len(fresh) == 0 {
		p.logger.Info("No new proxies found after filtering")
		return stats
	}

	p.logger.Info("--- Stage: Posting ---")
	posted := p.publisher.PostAll(ctx, fresh, b)
	stats.Posted = len(posted)

	p.logger.Info("--- Stage: Updating Archive ---")
	if err := p.store.Merge(archived, posted); err != nil {
		p.logger.Error("Archive update failed, merge result is lost for the next run",
			zap.Error(err),
		)
	}
	return stats
}
