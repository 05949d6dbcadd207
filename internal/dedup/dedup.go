// Package dedup filters fetched records against the published archive.
package dedup

import (
	"go.uber.org/zap"

	"proxyherald/internal/proxy"
)

// Filter returns the records whose canonical link is neither in the
// archived set nor seen earlier in the same batch. The first occurrence in
// fetch order wins; later duplicates are dropped silently.
func Filter(records []proxy.Record, archived map[string]struct{}, logger *zap.Logger) []proxy.Record {
	fresh := make([]proxy.Record, 0, len(records))
	seen := make(map[string]struct{}, len(records))

	for _, rec := range records {
		if rec.TGLink == "" {
			continue
		}
		if _, ok := archived[rec.TGLink]; ok {
			logger.Debug("Skipping already archived proxy", zap.String("tg_link", rec.TGLink))
			continue
		}
		if _, ok := seen[rec.TGLink]; ok {
			logger.Debug("Skipping duplicate within this run", zap.String("tg_link", rec.TGLink))
			continue
		}
		seen[rec.TGLink] = struct{}{}
		fresh = append(fresh, rec)
	}
	return fresh
}
