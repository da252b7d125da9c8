package notify

import (
	"context"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/gmsas95/medremind/internal/alarm"
	apperrors "github.com/gmsas95/medremind/internal/errors"
	"github.com/gmsas95/medremind/internal/security"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// settingTelegramChat matches the store key for the learned chat id
const settingTelegramChat = "telegram.chat_id"

// BoundTelegramChat returns the chat learned from /start, 0 if none
func BoundTelegramChat(settings Settings) (int64, error) {
	v, err := settings.GetSetting(settingTelegramChat)
	if err != nil || v == "" {
		return 0, err
	}
	return strconv.ParseInt(v, 10, 64)
}

// UnbindTelegramChat forgets the learned chat so the next /start binds again
func UnbindTelegramChat(settings Settings) error {
	return settings.SetSetting(settingTelegramChat, "")
}

// Sender is the subset of *tgbotapi.BotAPI the presenter uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Settings persists the chat the bot learned from /start
type Settings interface {
	GetSetting(key string) (string, error)
	SetSetting(key, value string) error
}

// TelegramConfig holds Telegram presenter configuration
type TelegramConfig struct {
	Token         string
	ChatID        int64   // fixed chat; 0 means the first /start binds it
	RatePerSecond float64 // 0 means unlimited
	SnoozeMinutes int
}

// Telegram sends alarms with Taken / Missed / Snooze buttons and applies the
// button presses. Sends are throttled and go through a circuit breaker so a
// dead API fails fast instead of stalling the alarm queue.
type Telegram struct {
	api      Sender
	settings Settings
	logger   *zap.Logger
	limiter  *rate.Limiter
	breaker  *gobreaker.CircuitBreaker[tgbotapi.Message]
	fixed    bool
	snooze   int

	chatID  atomic.Int64
	pending *pendingAlarms
}

// NewTelegram connects to the Bot API with cfg.Token
func NewTelegram(cfg TelegramConfig, settings Settings, logger *zap.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", security.RedactError(err))
	}
	api.Debug = false
	if logger != nil {
		logger.Info("Telegram bot authorized", zap.String("username", api.Self.UserName))
	}
	return NewTelegramWithSender(cfg, api, settings, logger), nil
}

// NewTelegramWithSender builds the presenter on an existing sender
func NewTelegramWithSender(cfg TelegramConfig, api Sender, settings Settings, logger *zap.Logger) *Telegram {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.SnoozeMinutes <= 0 {
		cfg.SnoozeMinutes = 5
	}

	limit := rate.Inf
	if cfg.RatePerSecond > 0 {
		limit = rate.Limit(cfg.RatePerSecond)
	}

	t := &Telegram{
		api:      api,
		settings: settings,
		logger:   logger,
		limiter:  rate.NewLimiter(limit, 1),
		fixed:    cfg.ChatID != 0,
		snooze:   cfg.SnoozeMinutes,
		pending:  newPendingAlarms(),
	}
	t.breaker = gobreaker.NewCircuitBreaker[tgbotapi.Message](gobreaker.Settings{
		Name:        "telegram",
		MaxRequests: 1,
		Timeout:     time.Minute,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Telegram circuit breaker state changed",
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	})

	chatID := cfg.ChatID
	if chatID == 0 && settings != nil {
		if v, err := settings.GetSetting(settingTelegramChat); err == nil && v != "" {
			chatID, _ = strconv.ParseInt(v, 10, 64)
		}
	}
	t.chatID.Store(chatID)
	return t
}

// ChatID returns the chat alarms are sent to, 0 if none yet
func (t *Telegram) ChatID() int64 {
	return t.chatID.Load()
}

// PresentAlarm sends the alarm message with answer buttons
func (t *Telegram) PresentAlarm(ctx context.Context, a alarm.Alarm) error {
	chatID := t.chatID.Load()
	if chatID == 0 {
		return apperrors.Wrap(fmt.Errorf("no chat yet, send /start to the bot"), apperrors.ErrPresenterUnavailable.Code, "telegram")
	}
	if err := t.limiter.Wait(ctx); err != nil {
		return err
	}

	id := strconv.FormatInt(a.Reminder.ID, 10)
	msg := tgbotapi.NewMessage(chatID, "💊 "+alarmText(a))
	msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Taken", "taken:"+id),
			tgbotapi.NewInlineKeyboardButtonData("❌ Missed", "missed:"+id),
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("⏰ %dm", t.snooze), fmt.Sprintf("snooze:%s:%d", id, t.snooze)),
		),
	)

	sent, err := t.breaker.Execute(func() (tgbotapi.Message, error) {
		return t.api.Send(msg)
	})
	if err != nil {
		return apperrors.Wrap(security.RedactError(err), apperrors.ErrPresenterUnavailable.Code, "telegram send failed")
	}

	t.pending.put(a, sent.MessageID)
	return nil
}

// Run long-polls updates until ctx is done
func (t *Telegram) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := t.api.GetUpdatesChan(u)
	defer t.api.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if err := t.handleUpdate(update); err != nil {
				t.logger.Error("Failed to handle update", zap.Error(err))
			}
		}
	}
}

func (t *Telegram) handleUpdate(update tgbotapi.Update) error {
	if update.CallbackQuery != nil {
		return t.handleCallback(update.CallbackQuery)
	}
	if update.Message != nil && update.Message.IsCommand() {
		return t.handleCommand(update.Message)
	}
	return nil
}

func (t *Telegram) allowed(chatID int64) bool {
	current := t.chatID.Load()
	return current == 0 || current == chatID
}

func (t *Telegram) handleCommand(msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		// first chat wins; rebinding needs `medremind telegram unbind`
		if !t.chatID.CompareAndSwap(0, chatID) && t.chatID.Load() != chatID {
			t.logger.Warn("Rejected /start from another chat", zap.Int64("chat_id", chatID))
			_, err := t.send(chatID, "⛔ This bot is bound to another chat.")
			return err
		}
		if t.settings != nil && !t.fixed {
			if err := t.settings.SetSetting(settingTelegramChat, strconv.FormatInt(chatID, 10)); err != nil {
				t.logger.Warn("Failed to persist telegram chat", zap.Error(err))
			}
		}
		_, err := t.send(chatID, "💊 Medication reminders will be sent to this chat.\nUse the buttons on each alarm to answer.")
		return err

	case "status":
		if !t.allowed(chatID) {
			return nil
		}
		_, err := t.send(chatID, fmt.Sprintf("✅ Running, %d alarm(s) awaiting an answer.", t.pending.len()))
		return err

	case "help":
		_, err := t.send(chatID, "/start - receive alarms in this chat\n/status - show unanswered alarms")
		return err

	default:
		_, err := t.send(chatID, "❓ Unknown command. Use /help for available commands.")
		return err
	}
}

func (t *Telegram) handleCallback(q *tgbotapi.CallbackQuery) error {
	if q.Message == nil || q.Message.Chat == nil || !t.allowed(q.Message.Chat.ID) {
		return t.answer(q.ID, "Not allowed")
	}

	cmd, err := parseCommand(q.Data)
	if err != nil {
		return t.answer(q.ID, "Unknown action")
	}

	pa, ok := t.pending.take(cmd.id)
	if !ok || !pa.alarm.Respond(cmd.response) {
		return t.answer(q.ID, "This reminder was already handled")
	}

	outcome := fmt.Sprintf("%s %s", pa.alarm.Reminder.MedicineName, describe(cmd.response))
	edit := tgbotapi.NewEditMessageText(q.Message.Chat.ID, q.Message.MessageID, "💊 "+alarmText(pa.alarm)+"\n\n"+outcome)
	if _, err := t.api.Send(edit); err != nil {
		t.logger.Warn("Failed to update alarm message", zap.Error(err))
	}
	return t.answer(q.ID, outcome)
}

func (t *Telegram) answer(callbackID, text string) error {
	_, err := t.api.Request(tgbotapi.NewCallback(callbackID, text))
	return security.RedactError(err)
}

func (t *Telegram) send(chatID int64, text string) (tgbotapi.Message, error) {
	msg, err := t.api.Send(tgbotapi.NewMessage(chatID, text))
	return msg, security.RedactError(err)
}
