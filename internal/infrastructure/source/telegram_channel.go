// Package source polls inbound transports for order notification texts.
package source

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"orderbot/internal/errs"
	"orderbot/internal/infrastructure/telegram"
	"orderbot/internal/ports"
)

const (
	NameTelegram = "telegram"
	NameGmail    = "gmail"

	offsetKeyPrefix = "telegram_offset:"
)

type updatesGetter interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
}

// ChannelSource reads posts of one Telegram channel the bot is admin of.
// The getUpdates offset lives in the cache so a restart resumes where the
// last acknowledged batch ended.
type ChannelSource struct {
	bot    updatesGetter
	target telegram.Target
	cache  ports.Cache

	mu      sync.Mutex
	pending int
}

var _ ports.MessageSource = (*ChannelSource)(nil)

func NewChannelSource(bot *tgbotapi.BotAPI, channel string, cache ports.Cache) (*ChannelSource, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is required")
	}
	return newChannelSource(bot, channel, cache)
}

func newChannelSource(bot updatesGetter, channel string, cache ports.Cache) (*ChannelSource, error) {
	if bot == nil {
		return nil, errors.New("telegram bot is required")
	}
	if cache == nil {
		return nil, errors.New("cache is required")
	}
	target, err := telegram.ParseTarget(channel)
	if err != nil {
		return nil, err
	}
	return &ChannelSource{bot: bot, target: target, cache: cache}, nil
}

func (s *ChannelSource) Name() string {
	return NameTelegram
}

func (s *ChannelSource) offsetKey() string {
	return offsetKeyPrefix + s.target.String()
}

func (s *ChannelSource) Fetch(ctx context.Context) ([]ports.InboundMessage, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, errs.Wrap(err, "check context")
	}

	offset, err := s.loadOffset(ctx)
	if err != nil {
		return nil, err
	}

	cfg := tgbotapi.NewUpdate(offset)
	cfg.AllowedUpdates = []string{"channel_post"}
	updates, err := s.bot.GetUpdates(cfg)
	if err != nil {
		return nil, errs.Wrap(err, "get telegram updates")
	}

	next := offset
	out := make([]ports.InboundMessage, 0, len(updates))
	for _, upd := range updates {
		if upd.UpdateID >= next {
			next = upd.UpdateID + 1
		}
		post := upd.ChannelPost
		if post == nil || !s.target.Matches(post.Chat) {
			continue
		}
		text := post.Text
		if strings.TrimSpace(text) == "" {
			text = post.Caption
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		out = append(out, ports.InboundMessage{
			Source:     NameTelegram,
			Identity:   fmt.Sprintf("tg:%d:%d", post.Chat.ID, post.MessageID),
			Text:       text,
			ReceivedAt: post.Time(),
		})
	}

	s.mu.Lock()
	s.pending = next
	s.mu.Unlock()
	return out, nil
}

// MarkSeen advances the stored offset past every update of the last Fetch,
// including updates from other chats.
func (s *ChannelSource) MarkSeen(ctx context.Context, _ []ports.InboundMessage) error {
	s.mu.Lock()
	next := s.pending
	s.mu.Unlock()
	if next == 0 {
		return nil
	}
	return errs.Wrap(s.cache.Set(ctx, s.offsetKey(), strconv.Itoa(next), 0), "store telegram offset")
}

func (s *ChannelSource) loadOffset(ctx context.Context) (int, error) {
	raw, found, err := s.cache.Get(ctx, s.offsetKey())
	if err != nil {
		return 0, errs.Wrap(err, "load telegram offset")
	}
	if !found {
		return 0, nil
	}
	offset, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, errs.Wrapf(err, "parse telegram offset %q", raw)
	}
	return offset, nil
}
