package publish

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"proxyherald/internal/budget"
	"proxyherald/internal/proxy"
)

// fakeClock returns a settable instant.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	return f.now
}

// fakeMessenger records calls and fails on demand.
type fakeMessenger struct {
	albums    [][][]byte
	replies   []string
	keyboards [][][]Button
	failAlbum map[int]bool // album call index (1-based) -> fail
	failReply bool
}

func (m *fakeMessenger) SendAlbum(_ context.Context, images [][]byte) (int, error) {
	m.albums = append(m.albums, images)
	if m.failAlbum[len(m.albums)] {
		return 0, errors.New("album send failed")
	}
	return len(m.albums) * 100, nil
}

func (m *fakeMessenger) SendReply(_ context.Context, _ int, text string, kb [][]Button) error {
	if m.failReply {
		return errors.New("reply send failed")
	}
	m.replies = append(m.replies, text)
	m.keyboards = append(m.keyboards, kb)
	return nil
}

// fakeEncoder returns the text itself as image bytes, failing on marked links.
type fakeEncoder struct {
	fail map[string]bool
}

func (e *fakeEncoder) Encode(text string) ([]byte, error) {
	if e.fail[text] {
		return nil, errors.New("qr failed")
	}
	return []byte(text), nil
}

func record(ip string, port int, secret string) proxy.Record {
	rec := proxy.Record{IP: ip, Port: port, Secret: secret}
	rec.Sanitize()
	return rec
}

func records(n int) []proxy.Record {
	out := make([]proxy.Record, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, record("10.0.0.1", 1000+i, "abc"))
	}
	return out
}

func newPublisher(m Messenger, e Encoder, cfg Config) (*Publisher, *int) {
	p := New(m, e, cfg, zap.NewNop())
	sleeps := 0
	p.sleep = func(time.Duration) { sleeps++ }
	return p, &sleeps
}

func newBudget(max time.Duration) *budget.Budget {
	base := time.Date(2025, 7, 26, 12, 0, 0, 0, time.UTC)
	clk := &fakeClock{now: base}
	b := budget.New(max, clk, zap.NewNop())
	// A hair of elapsed time, so a zero ceiling trips on the first check.
	clk.now = base.Add(time.Millisecond)
	return b
}

func TestPostAll(t *testing.T) {
	t.Run("ChunkCountIsCeilOfNOverK", func(t *testing.T) {
		messenger := &fakeMessenger{}
		p, sleeps := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 3})

		posted := p.PostAll(context.Background(), records(7), newBudget(time.Hour))

		assert.Len(t, messenger.albums, 3)
		assert.Len(t, posted, 7)
		// A delay after every posted chunk except the last.
		assert.Equal(t, 2, *sleeps)
	})

	t.Run("FailedChunkSkippedWithoutDelay", func(t *testing.T) {
		messenger := &fakeMessenger{failAlbum: map[int]bool{1: true}}
		p, sleeps := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 2})

		posted := p.PostAll(context.Background(), records(4), newBudget(time.Hour))

		assert.Len(t, messenger.albums, 2)
		assert.Len(t, posted, 2)
		// First chunk failed, second was the last: no delay at all.
		assert.Zero(t, *sleeps)
	})

	t.Run("ReplyFailureStillCountsAsPosted", func(t *testing.T) {
		messenger := &fakeMessenger{failReply: true}
		p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 10})

		posted := p.PostAll(context.Background(), records(2), newBudget(time.Hour))

		assert.Len(t, messenger.albums, 1)
		assert.Len(t, posted, 2)
	})

	t.Run("BudgetTripAbandonsRemainingChunks", func(t *testing.T) {
		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 2})

		posted := p.PostAll(context.Background(), records(6), newBudget(0))

		assert.Empty(t, messenger.albums)
		assert.Empty(t, posted)
	})

	t.Run("QRFailureDropsFromAlbumOnly", func(t *testing.T) {
		recs := records(3)
		encoder := &fakeEncoder{fail: map[string]bool{recs[1].TGLink: true}}
		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, encoder, Config{ChunkSize: 10})

		posted := p.PostAll(context.Background(), recs, newBudget(time.Hour))

		require.Len(t, messenger.albums, 1)
		assert.Len(t, messenger.albums[0], 2)
		// The reply still describes the whole chunk.
		assert.Len(t, posted, 3)
		require.Len(t, messenger.keyboards, 1)
		require.Len(t, messenger.keyboards[0], 1)
		assert.Len(t, messenger.keyboards[0][0], 3)
	})

	t.Run("AllQRFailedSkipsChunkWithoutAPICall", func(t *testing.T) {
		recs := records(2)
		encoder := &fakeEncoder{fail: map[string]bool{recs[0].TGLink: true, recs[1].TGLink: true}}
		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, encoder, Config{ChunkSize: 10})

		posted := p.PostAll(context.Background(), recs, newBudget(time.Hour))

		assert.Empty(t, messenger.albums)
		assert.Empty(t, posted)
	})

	t.Run("NothingToPost", func(t *testing.T) {
		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 10})

		assert.Empty(t, p.PostAll(context.Background(), nil, newBudget(time.Hour)))
		assert.Empty(t, messenger.albums)
	})

	t.Run("OversizedChunkSizeFallsBackToAlbumCap", func(t *testing.T) {
		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 50})

		p.PostAll(context.Background(), records(12), newBudget(time.Hour))
		require.Len(t, messenger.albums, 2)
		assert.Len(t, messenger.albums[0], 10)
	})
}

func TestReplyText(t *testing.T) {
	rec := record("1.2.3.4", 443, "abc")
	rec.CountryName = "Germany"
	rec.CountryFlag = "🇩🇪"

	t.Run("FormatsAddressAndCountry", func(t *testing.T) {
		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 10})
		p.PostAll(context.Background(), []proxy.Record{rec}, newBudget(time.Hour))

		require.Len(t, messenger.replies, 1)
		text := messenger.replies[0]
		assert.Contains(t, text, `🔒 *Address:* [1\.2\.3\.4:443]`)
		assert.Contains(t, text, `🌎 *Country:* 🇩🇪 Germany`)
	})

	t.Run("AppendsChannelHandleFooter", func(t *testing.T) {
		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 10, ChannelHandle: "@proxyherald"})
		p.PostAll(context.Background(), []proxy.Record{rec}, newBudget(time.Hour))

		require.Len(t, messenger.replies, 1)
		assert.True(t, strings.HasSuffix(messenger.replies[0], "\n@proxyherald"))
	})

	t.Run("FallsBackToCountryCodeThenNA", func(t *testing.T) {
		coded := record("1.2.3.4", 443, "abc")
		coded.CountryCode = "DE"
		bare := record("5.6.7.8", 80, "def")

		messenger := &fakeMessenger{}
		p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 10})
		p.PostAll(context.Background(), []proxy.Record{coded, bare}, newBudget(time.Hour))

		require.Len(t, messenger.replies, 1)
		assert.Contains(t, messenger.replies[0], "🏴‍☠️ DE")
		assert.Contains(t, messenger.replies[0], "🏴‍☠️ NA")
	})
}

func TestKeyboard(t *testing.T) {
	messenger := &fakeMessenger{}
	p, _ := newPublisher(messenger, &fakeEncoder{}, Config{ChunkSize: 10})

	p.PostAll(context.Background(), records(7), newBudget(time.Hour))

	require.Len(t, messenger.keyboards, 1)
	rows := messenger.keyboards[0]
	require.Len(t, rows, 3)
	assert.Len(t, rows[0], 3)
	assert.Len(t, rows[1], 3)
	assert.Len(t, rows[2], 1)
	for _, row := range rows {
		for _, btn := range row {
			assert.Equal(t, "Connect", btn.Text)
			assert.True(t, strings.HasPrefix(btn.URL, "tg://proxy?"))
		}
	}
}

func TestEscapeMarkdownV2(t *testing.T) {
	assert.Equal(t, `1\.2\.3\.4:443`, EscapeMarkdownV2("1.2.3.4:443"))
	assert.Equal(t, `a\_b\*c\[d\]`, EscapeMarkdownV2("a_b*c[d]"))
	assert.Equal(t, "plain text", EscapeMarkdownV2("plain text"))
}
