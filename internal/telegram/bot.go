// Package telegram is the chat transport for the survey core: it turns bot
// commands and button presses into typed engine events and renders the
// engine's directives as messages and inline keyboards.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/civiq-care/backend/internal/catalog"
	"github.com/civiq-care/backend/internal/survey"
)

// Bot runs the Telegram long-polling loop against the survey engine.
type Bot struct {
	api         *tgbotapi.BotAPI
	engine      *survey.Engine
	catalog     *catalog.Catalog
	logger      *zap.Logger
	pollTimeout int
	// Last question message per chat, so resuming edits in place instead of
	// stacking duplicate question messages.
	msgIDs *gocache.Cache
}

// New creates the bot and authorizes against the Telegram API.
func New(token string, pollTimeout int, engine *survey.Engine, cat *catalog.Catalog, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot API: %w", err)
	}
	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))
	return &Bot{
		api:         api,
		engine:      engine,
		catalog:     cat,
		logger:      logger,
		pollTimeout: pollTimeout,
		msgIDs:      gocache.New(24*time.Hour, time.Hour),
	}, nil
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.pollTimeout
	updates := b.api.GetUpdatesChan(u)

	go func() {
		<-ctx.Done()
		b.api.StopReceivingUpdates()
	}()

	for update := range updates {
		switch {
		case update.Message != nil:
			b.handleMessage(ctx, update.Message)
		case update.CallbackQuery != nil:
			b.handleCallback(ctx, update.CallbackQuery)
		}
	}
	return ctx.Err()
}

// chatUserID keys engine sessions for this transport.
func chatUserID(chatID int64) string {
	return "tg:" + strconv.FormatInt(chatID, 10)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	chatID := msg.Chat.ID
	userID := chatUserID(chatID)

	switch msg.Command() {
	case "start":
		b.send(chatID, welcomeText)

	case "survey", "start_questionnaire":
		d, err := b.engine.Start(ctx, userID)
		if err != nil {
			b.logger.Error("survey start", zap.String("user_id", userID), zap.Error(err))
			b.send(chatID, "Sorry, something went wrong. Please try again.")
			return
		}
		b.renderDirective(chatID, d)

	case "results":
		d, err := b.engine.Results(ctx, userID)
		if errors.Is(err, survey.ErrNotCompleted) {
			b.send(chatID, "You have not completed the questionnaire yet. Use /survey to begin.")
			return
		}
		if err != nil {
			b.logger.Error("survey results", zap.String("user_id", userID), zap.Error(err))
			b.send(chatID, "Sorry, something went wrong. Please try again.")
			return
		}
		b.renderDirective(chatID, d)

	case "reset":
		d, err := b.engine.Reset(ctx, userID)
		if err != nil {
			b.send(chatID, "Sorry, something went wrong. Please try again.")
			return
		}
		b.msgIDs.Delete(userID)
		b.renderDirective(chatID, d)

	case "cancel":
		d, err := b.engine.Cancel(ctx, userID)
		if errors.Is(err, survey.ErrSessionNotFound) {
			b.send(chatID, "There is no questionnaire in progress. Use /survey to begin.")
			return
		}
		if errors.Is(err, survey.ErrInvalidTransition) {
			b.send(chatID, "You already completed the questionnaire. Use /reset to start over.")
			return
		}
		if err != nil {
			b.send(chatID, "Sorry, something went wrong. Please try again.")
			return
		}
		b.msgIDs.Delete(userID)
		b.renderDirective(chatID, d)

	default:
		b.send(chatID, "Use /survey to start the questionnaire, /results to view your results, /reset to start over.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	// Acknowledge the button press so the client stops its spinner.
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		b.logger.Warn("callback ack failed", zap.Error(err))
	}
	if cb.Message == nil {
		return
	}
	chatID := cb.Message.Chat.ID
	userID := chatUserID(chatID)

	ev, err := ParseAnswerCallback(cb.Data)
	if err != nil {
		b.logger.Warn("unparseable callback", zap.String("data", cb.Data), zap.Error(err))
		return
	}

	d, err := b.engine.Submit(ctx, userID, ev.Ordinal, ev.Value)
	if errors.Is(err, survey.ErrSessionNotFound) {
		b.send(chatID, "This questionnaire is no longer active. Use /survey to begin.")
		return
	}
	if errors.Is(err, survey.ErrInvalidTransition) {
		// Stale button (double tap or an old message): drop it silently, the
		// session already moved on.
		b.logger.Debug("stale answer ignored", zap.String("user_id", userID), zap.Int("ordinal", ev.Ordinal))
		return
	}
	if err != nil {
		b.logger.Error("survey submit", zap.String("user_id", userID), zap.Error(err))
		b.send(chatID, "Sorry, something went wrong. Please try again.")
		return
	}

	switch v := d.(type) {
	case survey.Question:
		b.editOrSend(chatID, cb.Message.MessageID, questionText(v), answerKeyboard(v))
	case survey.CompletionSummary:
		edit := tgbotapi.NewEditMessageText(chatID, cb.Message.MessageID, summaryText(v))
		if _, err := b.api.Send(edit); err != nil {
			b.send(chatID, summaryText(v))
		}
		b.msgIDs.Delete(userID)
	default:
		b.renderDirective(chatID, d)
	}
}

// renderDirective sends the message for a directive produced outside the
// answer flow.
func (b *Bot) renderDirective(chatID int64, d survey.Directive) {
	userID := chatUserID(chatID)
	switch v := d.(type) {
	case survey.Question:
		if id, ok := b.msgIDs.Get(userID); ok {
			b.editOrSend(chatID, id.(int), questionText(v), answerKeyboard(v))
			return
		}
		msg := tgbotapi.NewMessage(chatID, questionText(v))
		msg.ReplyMarkup = answerKeyboard(v)
		sent, err := b.api.Send(msg)
		if err != nil {
			b.logger.Error("send question", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
		b.msgIDs.Set(userID, sent.MessageID, gocache.DefaultExpiration)
	case survey.AlreadyCompleted:
		b.send(chatID, "You already completed the questionnaire. Use /reset to start over or /results to view your results.")
	case survey.CompletionSummary:
		b.send(chatID, summaryText(v))
	case survey.Results:
		b.send(chatID, resultsText(v, b.questionTextFor))
	case survey.ResetConfirmation:
		b.send(chatID, "Your answers have been reset. Use /survey to start a new questionnaire.")
	case survey.Cancelled:
		b.send(chatID, "Questionnaire cancelled. Use /survey to start again.")
	}
}

// editOrSend edits the question message in place, falling back to a fresh
// message when the edit fails (e.g. the message was deleted).
func (b *Bot) editOrSend(chatID int64, messageID int, text string, keyboard tgbotapi.InlineKeyboardMarkup) {
	userID := chatUserID(chatID)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, keyboard)
	if _, err := b.api.Send(edit); err == nil {
		b.msgIDs.Set(userID, messageID, gocache.DefaultExpiration)
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	sent, err := b.api.Send(msg)
	if err != nil {
		b.logger.Error("send question", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	b.msgIDs.Set(userID, sent.MessageID, gocache.DefaultExpiration)
}

func (b *Bot) send(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		b.logger.Error("send message", zap.Int64("chat_id", chatID), zap.Error(err))
	}
}

func (b *Bot) questionTextFor(ordinal int) string {
	item, err := b.catalog.Get(ordinal)
	if err != nil {
		return ""
	}
	return item.Text
}
