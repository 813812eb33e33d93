package tg

import (
	"context"
	"fmt"
	"log"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"mediadrop/portal/internal/service"
)

// MessageStore remembers which Telegram message belongs to which upload so a
// progress update edits the existing message instead of posting a new one.
type MessageStore interface {
	SaveMessageID(ctx context.Context, uploadID string, messageID int) error
	GetMessageID(ctx context.Context, uploadID string) (int, error)
	DeleteMessageID(ctx context.Context, uploadID string) error
}

// TelegramNotifier posts upload progress to a single operator chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	store  MessageStore
}

func NewTelegramNotifier(botToken string, chatID int64, store MessageStore) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}

	log.Printf("telegram: authorized as %s", bot.Self.UserName)

	return &TelegramNotifier{bot: bot, chatID: chatID, store: store}, nil
}

// Notify renders the notification and delivers it. Started and progress
// updates edit the tracked message in place; completion and failure send the
// final text and drop the message binding.
func (t *TelegramNotifier) Notify(ctx context.Context, n service.Notification) error {
	text := render(n)

	switch n.Kind {
	case service.NotifyCompleted, service.NotifyFailed:
		err := t.upsertMessage(ctx, n.UploadID, text)
		if derr := t.store.DeleteMessageID(ctx, n.UploadID); derr != nil {
			log.Printf("telegram: failed to drop message binding for %s: %v", n.UploadID, derr)
		}
		return err
	default:
		return t.upsertMessage(ctx, n.UploadID, text)
	}
}

func (t *TelegramNotifier) upsertMessage(ctx context.Context, uploadID, text string) error {
	if msgID, err := t.store.GetMessageID(ctx, uploadID); err == nil && msgID != 0 {
		edit := tgbotapi.NewEditMessageText(t.chatID, msgID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		if _, err := t.bot.Send(edit); err == nil {
			return nil
		}
		// The message may have been deleted in the chat; fall through and
		// post a fresh one.
	}

	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	sent, err := t.bot.Send(msg)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}

	if err := t.store.SaveMessageID(ctx, uploadID, sent.MessageID); err != nil {
		log.Printf("telegram: failed to remember message id for %s: %v", uploadID, err)
	}
	return nil
}

func render(n service.Notification) string {
	var b strings.Builder

	switch n.Kind {
	case service.NotifyStarted:
		b.WriteString("⬆️ <b>Upload started</b>\n")
	case service.NotifyProgress:
		b.WriteString("📤 <b>Uploading</b>\n")
	case service.NotifyCompleted:
		b.WriteString("✅ <b>Upload complete</b>\n")
	case service.NotifyFailed:
		b.WriteString("❌ <b>Upload failed</b>\n")
	}

	fmt.Fprintf(&b, "<b>File:</b> %s\n", tgbotapi.EscapeText(tgbotapi.ModeHTML, n.Filename))
	if n.ClientName != "" {
		fmt.Fprintf(&b, "<b>Client:</b> %s\n", tgbotapi.EscapeText(tgbotapi.ModeHTML, n.ClientName))
	}
	if n.ProjectName != "" {
		fmt.Fprintf(&b, "<b>Project:</b> %s\n", tgbotapi.EscapeText(tgbotapi.ModeHTML, n.ProjectName))
	}

	switch n.Kind {
	case service.NotifyStarted, service.NotifyProgress:
		fmt.Fprintf(&b, "<b>Progress:</b> %d%% (%s of %s)\n", n.Percent, FormatSize(n.Offset), FormatSize(n.Size))
		if n.Speed != nil {
			fmt.Fprintf(&b, "<b>Speed:</b> %s\n", FormatSpeed(*n.Speed))
		}
	case service.NotifyCompleted:
		fmt.Fprintf(&b, "<b>Size:</b> %s\n", FormatSize(n.Size))
		if n.Location != "" {
			fmt.Fprintf(&b, "<b>Location:</b> %s\n", tgbotapi.EscapeText(tgbotapi.ModeHTML, n.Location))
		}
	case service.NotifyFailed:
		if n.Reason != "" {
			fmt.Fprintf(&b, "<b>Reason:</b> %s\n", tgbotapi.EscapeText(tgbotapi.ModeHTML, n.Reason))
		}
	}

	return strings.TrimRight(b.String(), "\n")
}

// FormatSize renders a byte count with a binary unit suffix.
func FormatSize(bytes int64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.2f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

// FormatSpeed renders a bytes-per-second rate.
func FormatSpeed(bytesPerSec float64) string {
	if bytesPerSec < 0 {
		bytesPerSec = 0
	}
	return FormatSize(int64(bytesPerSec)) + "/s"
}
