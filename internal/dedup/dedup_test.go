// Package dedup_test tests archive and in-run filtering.
package dedup_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"proxyherald/internal/dedup"
	"proxyherald/internal/proxy"
)

func record(ip string, port int, secret string) proxy.Record {
	rec := proxy.Record{IP: ip, Port: port, Secret: secret}
	rec.Sanitize()
	return rec
}

func TestFilter(t *testing.T) {
	a := record("1.2.3.4", 443, "abc")
	b := record("5.6.7.8", 443, "def")

	t.Run("DropsArchivedLinks", func(t *testing.T) {
		archived := map[string]struct{}{a.TGLink: {}}
		fresh := dedup.Filter([]proxy.Record{a, b}, archived, zap.NewNop())

		require.Len(t, fresh, 1)
		assert.Equal(t, b.TGLink, fresh[0].TGLink)
	})

	t.Run("FirstOccurrenceWinsWithinRun", func(t *testing.T) {
		duplicate := record("1.2.3.4", 443, "abc")
		duplicate.CountryName = "Latecomer"

		fresh := dedup.Filter([]proxy.Record{a, duplicate, b}, nil, zap.NewNop())
		require.Len(t, fresh, 2)
		assert.Equal(t, a.TGLink, fresh[0].TGLink)
		assert.Empty(t, fresh[0].CountryName)
		assert.Equal(t, b.TGLink, fresh[1].TGLink)
	})

	t.Run("Idempotent", func(t *testing.T) {
		archived := map[string]struct{}{}
		once := dedup.Filter([]proxy.Record{a, a, b}, archived, zap.NewNop())
		twice := dedup.Filter(once, archived, zap.NewNop())

		assert.Equal(t, once, twice)
	})

	t.Run("SkipsRecordsWithoutLink", func(t *testing.T) {
		fresh := dedup.Filter([]proxy.Record{{IP: "1.2.3.4"}}, nil, zap.NewNop())
		assert.Empty(t, fresh)
	})
}
