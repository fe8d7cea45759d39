// Package telegram implements the outbound transport Adapter on top of
// telebot. The daemon only sends; it never long-polls for updates.
package telegram

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	kit "shelfwatch/internal/transport"
	logx "shelfwatch/pkg/logx"
)

type Config struct {
	Token string
	// Offline skips the startup getMe call; used by tests.
	Offline bool
}

type Adapter struct {
	bot *tele.Bot
	log logx.Logger
}

func New(cfg Config, log logx.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:   cfg.Token,
		Offline: cfg.Offline,
		Client:  nil, // telebot's default http client
	})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{bot: b, log: log}, nil
}

func (a *Adapter) SendText(ctx context.Context, to kit.ChatTarget, text string, opt *kit.SendOptions) (kit.MessageRef, error) {
	if to.IsZero() {
		return kit.MessageRef{}, errors.New("telegram: empty chat target")
	}
	if strings.TrimSpace(text) == "" {
		return kit.MessageRef{}, errors.New("telegram: empty message")
	}

	sendOpts := &tele.SendOptions{ThreadID: to.ThreadID}
	if opt != nil {
		sendOpts.DisableWebPagePreview = opt.DisablePreview
		if opt.ParseMode != "" {
			sendOpts.ParseMode = tele.ParseMode(opt.ParseMode)
		}
	}

	// telebot sends synchronously; honor the caller's deadline by
	// checking before the call, since the bot API client has its own
	// internal timeout.
	select {
	case <-ctx.Done():
		return kit.MessageRef{}, ctx.Err()
	default:
	}

	start := time.Now()
	msg, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOpts)
	if err != nil {
		return kit.MessageRef{}, err
	}
	a.log.Trace("telegram message sent",
		logx.Int64("chat", to.ChatID), logx.Duration("took", time.Since(start)))
	return kit.MessageRef{ChatID: to.ChatID, ThreadID: to.ThreadID, MessageID: msg.ID}, nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	// Nothing long-running to stop for an outbound-only adapter.
	return nil
}
