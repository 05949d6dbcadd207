// Package publish posts proxy records to a channel in chunked albums.
package publish

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"proxyherald/internal/budget"
	"proxyherald/internal/proxy"
)

// telegramAlbumCap is the Bot API limit on items per media group.
const telegramAlbumCap = 10

// Button is one inline keyboard button of a reply message.
type Button struct {
	Text string
	URL  string
}

// Messenger delivers an image album and a formatted reply to it.
type Messenger interface {
	// SendAlbum sends a grouped-media message and returns the id of its
	// first message, the anchor replies attach to.
	SendAlbum(ctx context.Context, images [][]byte) (int, error)
	// SendReply sends MarkdownV2 text as a reply with an inline keyboard.
	SendReply(ctx context.Context, replyTo int, text string, keyboard [][]Button) error
}

// Encoder renders a deep link as a PNG image.
type Encoder interface {
	Encode(text string) ([]byte, error)
}

// Config controls chunking and pacing.
type Config struct {
	// ChunkSize is the number of proxies per album post.
	ChunkSize int
	// Delay is the pause between two successfully posted chunks, kept
	// long to stay under the platform's per-channel posting limits.
	Delay time.Duration
	// ChannelHandle, when set, is appended as a footer to every reply.
	ChannelHandle string
}

// Publisher posts records chunk by chunk under the run's time budget.
type Publisher struct {
	messenger Messenger
	encoder   Encoder
	cfg       Config
	logger    *zap.Logger
	sleep     func(time.Duration)
}

// New constructs a Publisher. Chunk sizes outside (0, 10] fall back to the
// album cap.
func New(messenger Messenger, encoder Encoder, cfg Config, logger *zap.Logger) *Publisher {
	if cfg.ChunkSize <= 0 || cfg.ChunkSize > telegramAlbumCap {
		cfg.ChunkSize = telegramAlbumCap
	}
	return &Publisher{
		messenger: messenger,
		encoder:   encoder,
		cfg:       cfg,
		logger:    logger,
		sleep:     time.Sleep,
	}
}

// PostAll publishes records in fetch order and returns those belonging to
// chunks whose album send succeeded. Chunks remaining when the budget
// trips are abandoned, not failed; a failed chunk is skipped without the
// inter-chunk delay.
func (p *Publisher) PostAll(ctx context.Context, records []proxy.Record, b *budget.Budget) []proxy.Record {
	if len(records) == 0 {
		p.logger.Info("No new proxies to post")
		return nil
	}

	var posted []proxy.Record
	for i := 0; i < len(records); i += p.cfg.ChunkSize {
		if b.Exceeded() {
			p.logger.Warn("Stopping posting due to execution time limit")
			break
		}

		end := min(i+p.cfg.ChunkSize, len(records))
		chunk := records[i:end]
		p.logger.Info("Processing chunk",
			zap.Int("chunk", i/p.cfg.ChunkSize+1),
			zap.Int("size", len(chunk)),
		)

		if !p.postChunk(ctx, chunk) {
			p.logger.Warn("Failed to post chunk, skipping to next")
			continue
		}
		posted = append(posted, chunk...)

		if end < len(records) {
			if b.Exceeded() {
				p.logger.Warn("Stopping posting due to execution time limit (before delay)")
				break
			}
			p.logger.Info("Waiting before next post", zap.Duration("delay", p.cfg.Delay))
			p.sleep(p.cfg.Delay)
		}
	}

	p.logger.Info("Finished posting", zap.Int("posted", len(posted)))
	return posted
}

// postChunk sends one album and its reply. The album send alone decides
// whether the chunk counts as posted; a lost reply does not unpost it.
func (p *Publisher) postChunk(ctx context.Context, chunk []proxy.Record) bool {
	images := make([][]byte, 0, len(chunk))
	for _, rec := range chunk {
		png, err := p.encoder.Encode(rec.TGLink)
		if err != nil {
			p.logger.Warn("Skipping proxy, QR code generation failed",
				zap.String("tg_link", rec.TGLink),
				zap.Error(err),
			)
			continue
		}
		images = append(images, png)
	}
	if len(images) == 0 {
		p.logger.Warn("No valid QR codes were generated for this chunk")
		return false
	}

	messageID, err := p.messenger.SendAlbum(ctx, images)
	if err != nil {
		p.logger.Error("Error sending media group", zap.Error(err))
		return false
	}
	p.logger.Info("Posted media group",
		zap.Int("proxies", len(chunk)),
		zap.Int("message_id", messageID),
	)

	if err := p.messenger.SendReply(ctx, messageID, p.replyText(chunk), keyboard(chunk)); err != nil {
		p.logger.Error("Error sending details reply", zap.Error(err))
		return true
	}
	p.logger.Info("Sent details and inline keyboard as a reply")
	return true
}

func (p *Publisher) replyText(chunk []proxy.Record) string {
	lines := make([]string, 0, len(chunk)*3+2)
	for i, rec := range chunk {
		lines = append(lines,
			"🔒 *Address:* ["+EscapeMarkdownV2(rec.Address())+"]("+EscapeMarkdownV2(rec.TGLink)+")",
			"🌎 *Country:* "+countryFlag(rec)+" "+EscapeMarkdownV2(countryName(rec)),
		)
		if i < len(chunk)-1 {
			lines = append(lines, "")
		}
	}
	if p.cfg.ChannelHandle != "" {
		lines = append(lines, "", EscapeMarkdownV2(p.cfg.ChannelHandle))
	}
	return strings.Join(lines, "\n")
}

func countryName(rec proxy.Record) string {
	switch {
	case rec.CountryName != "":
		return rec.CountryName
	case rec.CountryCode != "":
		return rec.CountryCode
	default:
		return "NA"
	}
}

func countryFlag(rec proxy.Record) string {
	if rec.CountryFlag != "" {
		return rec.CountryFlag
	}
	return "🏴‍☠️"
}

// keyboard lays out one Connect button per proxy, at most three per row.
func keyboard(chunk []proxy.Record) [][]Button {
	buttons := make([]Button, 0, len(chunk))
	for _, rec := range chunk {
		if rec.TGLink == "" {
			continue
		}
		buttons = append(buttons, Button{Text: "Connect", URL: rec.TGLink})
	}

	rows := make([][]Button, 0, (len(buttons)+2)/3)
	for i := 0; i < len(buttons); i += 3 {
		rows = append(rows, buttons[i:min(i+3, len(buttons))])
	}
	return rows
}

// markdownEscaper backslash-escapes Telegram's MarkdownV2 special set.
var markdownEscaper = strings.NewReplacer(
	"_", `\_`, "*", `\*`, "[", `\[`, "]", `\]`, "(", `\(`, ")", `\)`,
	"~", `\~`, "`", "\\`", ">", `\>`, "#", `\#`, "+", `\+`, "-", `\-`,
	"=", `\=`, "|", `\|`, "{", `\{`, "}", `\}`, ".", `\.`, "!", `\!`,
)

// EscapeMarkdownV2 escapes user-supplied text for the MarkdownV2 dialect
// so the platform does not reject the message as malformed.
func EscapeMarkdownV2(text string) string {
	return markdownEscaper.Replace(text)
}
