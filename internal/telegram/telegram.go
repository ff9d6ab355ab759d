// Package telegram adapts the Bot API to the messenger contracts the
// controller and orchestrator consume. It is deliberately thin: all
// decisions live behind those contracts.
package telegram

import (
	"context"

	"github.com/go-resty/resty/v2"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	pkgerrors "github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/goatanime/instagram-bot/internal/bot"
	"github.com/goatanime/instagram-bot/internal/orchestrator"
)

// Bot wraps the Telegram Bot API client.
type Bot struct {
	api     *tgbotapi.BotAPI
	client  *resty.Client
	adminID int64
	log     *logrus.Entry
}

// New connects to the Bot API. adminID may be zero; admin notifications
// then become no-ops.
func New(token string, adminID int64, log *logrus.Entry) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "connect bot api")
	}
	return &Bot{
		api:     api,
		client:  resty.New(),
		adminID: adminID,
		log:     log,
	}, nil
}

// Self returns the bot's own username.
func (b *Bot) Self() string {
	return b.api.Self.UserName
}

// SendText sends a markdown text message and returns its message ID.
func (b *Bot) SendText(chatID int64, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "send message")
	}
	return sent.MessageID, nil
}

// SendTextWithButton sends a message with a single URL button.
func (b *Bot) SendTextWithButton(chatID int64, text, buttonLabel, buttonURL string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(buttonLabel, buttonURL),
		),
	)
	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, pkgerrors.Wrap(err, "send message with button")
	}
	return sent.MessageID, nil
}

// EditText replaces the text of an already sent message.
func (b *Bot) EditText(chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(edit); err != nil {
		return pkgerrors.Wrap(err, "edit message")
	}
	return nil
}

// SendPhoto uploads a single photo from disk.
func (b *Bot) SendPhoto(chatID int64, path, caption string) error {
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FilePath(path))
	photo.Caption = caption
	if _, err := b.api.Send(photo); err != nil {
		return pkgerrors.Wrap(err, "send photo")
	}
	return nil
}

// SendVideo uploads a single video from disk.
func (b *Bot) SendVideo(chatID int64, path, caption string) error {
	video := tgbotapi.NewVideo(chatID, tgbotapi.FilePath(path))
	video.Caption = caption
	video.SupportsStreaming = true
	if _, err := b.api.Send(video); err != nil {
		return pkgerrors.Wrap(err, "send video")
	}
	return nil
}

// SendAlbum uploads one grouped media batch. The caller keeps batches
// within the transport's ten-item limit.
func (b *Bot) SendAlbum(chatID int64, items []orchestrator.AlbumItem) error {
	media := make([]interface{}, 0, len(items))
	for _, item := range items {
		if item.Video {
			v := tgbotapi.NewInputMediaVideo(tgbotapi.FilePath(item.Path))
			v.Caption = item.Caption
			media = append(media, v)
			continue
		}
		p := tgbotapi.NewInputMediaPhoto(tgbotapi.FilePath(item.Path))
		p.Caption = item.Caption
		media = append(media, p)
	}
	if _, err := b.api.SendMediaGroup(tgbotapi.NewMediaGroup(chatID, media)); err != nil {
		return pkgerrors.Wrap(err, "send media group")
	}
	return nil
}

// NotifyAdmin sends a direct message to the configured admin.
func (b *Bot) NotifyAdmin(text string) error {
	if b.adminID == 0 {
		return nil
	}
	msg := tgbotapi.NewMessage(b.adminID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		return pkgerrors.Wrap(err, "notify admin")
	}
	return nil
}

// Run consumes updates and dispatches them to the controller until ctx
// is cancelled. No error from a single interaction can stop the loop.
func (b *Bot) Run(ctx context.Context, ctrl *bot.Controller) {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 30
	updates := b.api.GetUpdatesChan(cfg)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	b.log.WithField("username", b.Self()).Info("update loop started")
	for update := range updates {
		b.dispatch(ctx, ctrl, update)
	}
}

// dispatch routes one update. A recover guard keeps a single broken
// interaction from terminating the loop.
func (b *Bot) dispatch(ctx context.Context, ctrl *bot.Controller, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Errorf("interaction handler panicked: %v", r)
		}
	}()

	msg := update.Message
	if msg == nil || msg.From == nil {
		return
	}
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch {
	case msg.IsCommand() && msg.Command() == "start":
		ctrl.HandleStart(ctx, userID, chatID, msg.CommandArguments())
	case msg.Document != nil:
		content, err := b.downloadDocument(ctx, msg.Document)
		if err != nil {
			b.log.WithField("user_id", userID).WithError(err).Error("document download failed")
			return
		}
		ctrl.HandleDocument(ctx, userID, chatID, msg.Document.FileName, content)
	case msg.Text != "" && !msg.IsCommand():
		ctrl.HandleText(ctx, userID, chatID, msg.Text)
	}
}

// downloadDocument fetches an uploaded document's bytes.
func (b *Bot) downloadDocument(ctx context.Context, doc *tgbotapi.Document) ([]byte, error) {
	url, err := b.api.GetFileDirectURL(doc.FileID)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "resolve file url")
	}
	resp, err := b.client.R().SetContext(ctx).Get(url)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "fetch file")
	}
	if !resp.IsSuccess() {
		return nil, pkgerrors.Errorf("fetch file: status %d", resp.StatusCode())
	}
	return resp.Body(), nil
}
