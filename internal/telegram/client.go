// Package telegram implements the publish.Messenger over the Bot API.
package telegram

import (
	"context"
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"proxyherald/internal/publish"
)

// Client posts albums and replies to a single channel.
type Client struct {
	bot      *tgbotapi.BotAPI
	chatID   int64
	username string
}

// New authenticates against the Bot API. channel is either a numeric chat
// id or an @handle.
func New(token, channel string) (*Client, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("authorize bot: %w", err)
	}

	c := &Client{bot: bot}
	if id, err := strconv.ParseInt(channel, 10, 64); err == nil {
		c.chatID = id
	} else {
		c.username = channel
	}
	return c, nil
}

// SendAlbum uploads the images as one media group and returns the message
// id of the first album item.
func (c *Client) SendAlbum(_ context.Context, images [][]byte) (int, error) {
	media := make([]interface{}, 0, len(images))
	for i, png := range images {
		media = append(media, tgbotapi.NewInputMediaPhoto(tgbotapi.FileBytes{
			Name:  fmt.Sprintf("qr_code_%d.png", i),
			Bytes: png,
		}))
	}

	group := tgbotapi.MediaGroupConfig{
		ChatID:          c.chatID,
		ChannelUsername: c.username,
		Media:           media,
	}
	messages, err := c.bot.SendMediaGroup(group)
	if err != nil {
		return 0, fmt.Errorf("send media group: %w", err)
	}
	if len(messages) == 0 {
		return 0, fmt.Errorf("send media group: empty result")
	}
	return messages[0].MessageID, nil
}

// SendReply sends MarkdownV2 text as a reply to the album anchor, with an
// inline keyboard of connect buttons.
func (c *Client) SendReply(_ context.Context, replyTo int, text string, keyboard [][]publish.Button) error {
	msg := tgbotapi.MessageConfig{
		BaseChat: tgbotapi.BaseChat{
			ChatID:           c.chatID,
			ChannelUsername:  c.username,
			ReplyToMessageID: replyTo,
		},
		Text:                  text,
		ParseMode:             tgbotapi.ModeMarkdownV2,
		DisableWebPagePreview: true,
	}

	if len(keyboard) > 0 {
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(keyboard))
		for _, row := range keyboard {
			buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
			for _, btn := range row {
				buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonURL(btn.Text, btn.URL))
			}
			rows = append(rows, buttons)
		}
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(rows...)
	}

	if _, err := c.bot.Send(msg); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	return nil
}
