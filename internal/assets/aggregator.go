package assets

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const DefaultFetchTimeout = 10 * time.Second

type AggregatorOptions struct {
	// Parallel fetches all sources concurrently. The merge still follows source order.
	Parallel bool
	// FetchTimeout bounds each individual fetch. Zero means DefaultFetchTimeout.
	FetchTimeout time.Duration
	Logger       *zap.Logger
}

// Aggregator merges the manifests of a fixed, ordered list of portals. A single
// failing portal fails the whole aggregation.
type Aggregator struct {
	fetcher  ManifestFetcher
	sources  []Source
	parallel bool
	timeout  time.Duration
	logger   *zap.Logger
}

func NewAggregator(fetcher ManifestFetcher, sources []Source, opts AggregatorOptions) *Aggregator {
	timeout := opts.FetchTimeout
	if timeout <= 0 {
		timeout = DefaultFetchTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		fetcher:  fetcher,
		sources:  append([]Source(nil), sources...),
		parallel: opts.Parallel,
		timeout:  timeout,
		logger:   logger,
	}
}

func (a *Aggregator) Sources() []Source {
	return append([]Source(nil), a.sources...)
}

func (a *Aggregator) Aggregate(ctx context.Context) (Aggregated, error) {
	var (
		manifests []Manifest
		err       error
	)
	if a.parallel {
		manifests, err = a.fetchParallel(ctx)
	} else {
		manifests, err = a.fetchSequential(ctx)
	}
	if err != nil {
		return Aggregated{}, err
	}
	return merge(a.sources, manifests), nil
}

func (a *Aggregator) fetchSequential(ctx context.Context) ([]Manifest, error) {
	manifests := make([]Manifest, len(a.sources))
	for i, source := range a.sources {
		manifest, err := a.fetchOne(ctx, source)
		if err != nil {
			return nil, err
		}
		manifests[i] = manifest
	}
	return manifests, nil
}

func (a *Aggregator) fetchParallel(ctx context.Context) ([]Manifest, error) {
	manifests := make([]Manifest, len(a.sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, source := range a.sources {
		g.Go(func() error {
			manifest, err := a.fetchOne(gctx, source)
			if err != nil {
				return err
			}
			manifests[i] = manifest
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return manifests, nil
}

func (a *Aggregator) fetchOne(ctx context.Context, source Source) (Manifest, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	started := time.Now()
	manifest, err := a.fetcher.Fetch(fetchCtx, source)
	if err != nil {
		a.logger.Warn("manifest fetch failed",
			zap.String("portal", source.Name),
			zap.Duration("duration", time.Since(started)),
			zap.Error(err))
		return Manifest{}, err
	}
	a.logger.Debug("manifest fetched",
		zap.String("portal", source.Name),
		zap.Int("files", len(manifest.Files)),
		zap.Duration("duration", time.Since(started)))
	return manifest, nil
}

func merge(sources []Source, manifests []Manifest) Aggregated {
	out := Aggregated{
		Portals:  make(map[string]string, len(sources)),
		CSSFiles: make([]string, 0, len(sources)),
	}
	for i, source := range sources {
		files := manifests[i].Files
		if js, ok := files[MainJS]; ok {
			out.Portals[PortalPrefix+source.Name] = js
		}
		if css, ok := files[MainCSS]; ok {
			out.CSSFiles = append(out.CSSFiles, css)
		}
	}
	return out
}
