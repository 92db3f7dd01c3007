package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/core"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/internal/ownerqueue"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/locale"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/reply"
	"github.com/IAmFuckingGenius/Gemini-Telegram-UserBot/session"
)

type Config struct {
	Token   string
	BaseURL string
	// AllowedUsers restricts who the bot talks to. Empty means everyone,
	// which only makes sense for throwaway testing.
	AllowedUsers []int64
	PollTimeout  time.Duration
	QueueBuffer  int
	DownloadDir  string
	MaxFileBytes int64
}

type Runtime struct {
	api     *API
	core    *core.Core
	bundle  *locale.Bundle
	cfg     Config
	allowed map[int64]bool
	log     *slog.Logger

	botUsername string
}

func NewRuntime(api *API, c *core.Core, bundle *locale.Bundle, cfg Config, logger *slog.Logger) *Runtime {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 30 * time.Second
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 20 * 1024 * 1024
	}
	allowed := make(map[int64]bool, len(cfg.AllowedUsers))
	for _, id := range cfg.AllowedUsers {
		allowed[id] = true
	}
	return &Runtime{api: api, core: c, bundle: bundle, cfg: cfg, allowed: allowed, log: logger}
}

// Run polls for updates until ctx is cancelled. Messages are dispatched
// through a per-owner queue so one slow conversation never blocks another.
func (r *Runtime) Run(ctx context.Context) error {
	me, err := r.api.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram: getMe: %w", err)
	}
	r.botUsername = me.Username
	r.log.Info("telegram_runtime_started", "bot", me.Username)

	g, ctx := errgroup.WithContext(ctx)
	queue := ownerqueue.New(ctx, r.cfg.QueueBuffer, r.process)

	g.Go(func() error {
		defer queue.Wait()
		var offset int64
		for {
			if err := ctx.Err(); err != nil {
				return err
			}
			updates, next, err := r.api.GetUpdates(ctx, offset, r.cfg.PollTimeout)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				if !IsPollTimeout(err) {
					r.log.Warn("telegram_poll_failed", "error", err)
					select {
					case <-ctx.Done():
						return ctx.Err()
					case <-time.After(3 * time.Second):
					}
				}
				continue
			}
			offset = next
			for _, u := range updates {
				r.routeUpdate(queue, u)
			}
		}
	})

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (r *Runtime) routeUpdate(queue *ownerqueue.Queue[*Message], u Update) {
	msg := u.Message
	if msg == nil || msg.From == nil || msg.From.IsBot || msg.Chat == nil {
		return
	}
	owner := msg.From.ID
	if len(r.allowed) > 0 && !r.allowed[owner] {
		r.log.Info("message_rejected", "owner", owner, "chat", msg.Chat.ID)
		return
	}
	if err := queue.Enqueue(owner, msg); err != nil {
		r.log.Warn("enqueue_failed", "owner", owner, "error", err)
	}
}

func (r *Runtime) process(ctx context.Context, owner int64, msg *Message) {
	chatID := msg.Chat.ID
	text := msg.Text
	if text == "" {
		text = msg.Caption
	}

	if cmd, ok := parseCommand(text, r.botUsername); ok {
		r.deliver(ctx, chatID, r.dispatch(ctx, owner, cmd))
		return
	}

	attachments, err := r.collectAttachments(ctx, msg)
	if err != nil {
		r.log.Warn("attachment_download_failed", "owner", owner, "error", err)
		r.deliver(ctx, chatID, reply.New(reply.CodeErrInternal, map[string]any{"error": err.Error()}))
		return
	}
	if text == "" && len(attachments) == 0 {
		return
	}

	_ = r.api.SendChatAction(ctx, chatID, "typing")
	r.deliver(ctx, chatID, r.core.Handle(ctx, owner, text, attachments))
}

// collectAttachments downloads the message's media into the cache dir and
// returns them with bytes inlined for the backend.
func (r *Runtime) collectAttachments(ctx context.Context, msg *Message) ([]session.Attachment, error) {
	type incoming struct {
		fileID string
		name   string
		mime   string
	}
	var files []incoming
	if len(msg.Photo) > 0 {
		largest := msg.Photo[len(msg.Photo)-1]
		files = append(files, incoming{fileID: largest.FileID, name: "photo.jpg", mime: "image/jpeg"})
	}
	if msg.Document != nil {
		name := msg.Document.FileName
		if name == "" {
			name = "document"
		}
		files = append(files, incoming{fileID: msg.Document.FileID, name: name, mime: msg.Document.MimeType})
	}
	if msg.Voice != nil {
		files = append(files, incoming{fileID: msg.Voice.FileID, name: "voice.ogg", mime: "audio/ogg"})
	}
	if len(files) == 0 {
		return nil, nil
	}

	if err := os.MkdirAll(r.cfg.DownloadDir, 0o700); err != nil {
		return nil, err
	}
	var out []session.Attachment
	for _, in := range files {
		f, err := r.api.GetFile(ctx, in.fileID)
		if err != nil {
			return nil, err
		}
		dst := filepath.Join(r.cfg.DownloadDir, uuid.NewString()+filepath.Ext(f.FilePath))
		if _, err := r.api.DownloadFile(ctx, f.FilePath, dst, r.cfg.MaxFileBytes); err != nil {
			return nil, err
		}
		data, err := os.ReadFile(dst)
		if err != nil {
			return nil, err
		}
		out = append(out, session.Attachment{Name: in.name, MIME: in.mime, Data: data, Path: dst})
	}
	return out, nil
}

func (r *Runtime) deliver(ctx context.Context, chatID int64, rep reply.Reply) {
	text := render(r.bundle, rep)
	if rep.MediaPath != "" {
		if err := r.api.SendFile(ctx, chatID, rep.MediaPath, rep.MediaMIME, text); err != nil {
			r.log.Warn("send_file_failed", "chat", chatID, "error", err)
			r.deliver(ctx, chatID, reply.New(reply.CodeErrInternal, map[string]any{"error": err.Error()}))
		}
		return
	}
	if err := r.api.SendMessage(ctx, chatID, text); err != nil {
		r.log.Warn("send_message_failed", "chat", chatID, "error", err)
	}
}
