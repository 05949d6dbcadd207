// Package source resolves subscription sources into raw proxy records.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"proxyherald/internal/budget"
	"proxyherald/internal/proxy"
)

// subscriptionsFile is the shape of the local sources document.
type subscriptionsFile struct {
	Subscriptions []string `json:"subscriptions"`
}

// Fetcher resolves every configured subscription source, URL or local
// file, into a flat list of raw proxy records. Sources are processed
// strictly in order; a failing source contributes zero records and the
// run continues.
type Fetcher struct {
	client *resty.Client
	logger *zap.Logger
}

// New builds a Fetcher around the given HTTP client.
func New(client *resty.Client, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		client: client,
		logger: logger,
	}
}

// FetchAll reads the subscriptions file at path and resolves each source,
// stopping early once the budget trips. Remaining sources are abandoned,
// not failed.
func (f *Fetcher) FetchAll(ctx context.Context, path string, b *budget.Budget) []proxy.Record {
	sources, err := f.readSources(path)
	if err != nil {
		f.logger.Error("Could not read subscription sources",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}
	if len(sources) == 0 {
		f.logger.Warn("No subscription sources configured", zap.String("path", path))
		return nil
	}
	f.logger.Info("Processing subscription sources", zap.Int("count", len(sources)))

	var all []proxy.Record
	for _, src := range sources {
		if b.Exceeded() {
			f.logger.Warn("Stopping data loading due to execution time limit")
			break
		}
		lower := strings.ToLower(src)
		if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
			all = append(all, f.fetchURL(ctx, src)...)
		} else {
			all = append(all, f.readFile(src)...)
		}
	}

	f.logger.Info("Total raw proxies fetched", zap.Int("count", len(all)))
	return all
}

func (f *Fetcher) readSources(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sources file: %w", err)
	}
	var doc subscriptionsFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse sources file: %w", err)
	}
	return doc.Subscriptions, nil
}

func (f *Fetcher) fetchURL(ctx context.Context, url string) []proxy.Record {
	f.logger.Info("Fetching proxies from URL", zap.String("url", url))

	resp, err := f.client.R().SetContext(ctx).Get(url)
	if err != nil {
		f.logger.Error("Error fetching from source",
			zap.String("url", url),
			zap.Error(err),
		)
		return nil
	}
	if resp.IsError() {
		f.logger.Error("Source returned an error status",
			zap.String("url", url),
			zap.Int("status", resp.StatusCode()),
		)
		return nil
	}

	var records []proxy.Record
	if err := json.Unmarshal(resp.Body(), &records); err != nil {
		f.logger.Error("Failed to decode JSON list from source",
			zap.String("url", url),
			zap.Error(err),
		)
		return nil
	}
	f.logger.Info("Fetched proxies", zap.String("url", url), zap.Int("count", len(records)))
	return records
}

func (f *Fetcher) readFile(path string) []proxy.Record {
	f.logger.Info("Reading proxy list from local file", zap.String("path", path))

	data, err := os.ReadFile(path)
	if err != nil {
		f.logger.Warn("Local source file not readable, skipping",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}

	var records []proxy.Record
	if err := json.Unmarshal(data, &records); err != nil {
		f.logger.Error("Could not parse proxy list file",
			zap.String("path", path),
			zap.Error(err),
		)
		return nil
	}
	f.logger.Info("Read proxies", zap.String("path", path), zap.Int("count", len(records)))
	return records
}
