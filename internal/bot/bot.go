// Package bot диспетчеризует события Telegram в движок заказов.
package bot

import (
	"context"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderbot/internal/model"
	"github.com/mmeshcher/orderbot/internal/parse"
	"github.com/mmeshcher/orderbot/internal/telegram"
)

// Engine описывает контракт движка жизненного цикла, используемый диспетчером.
type Engine interface {
	SubmitOrder(ctx context.Context, customerChatID int64, req model.ParsedOrderRequest) (string, error)
	Complete(ctx context.Context, chatID, messageID, actorID int64) (string, error)
	Reject(ctx context.Context, chatID, messageID, actorID int64) (string, error)
	RecordPriceQuote(ctx context.Context, chatID, messageID, amount int64) (string, error)
	RequestCancellation(ctx context.Context, chatID, messageID, actorID int64) (string, error)
	DecideCancellation(ctx context.Context, orderID int64, decision model.CancelDecision, deciderID int64) (string, error)
}

// RouteRegistrar регистрирует маршруты по командам конфигурации.
type RouteRegistrar interface {
	Register(ctx context.Context, orderType string, pack *int64, chatID int64) error
}

// API описывает используемую диспетчером часть клиента Bot API.
type API interface {
	GetUpdates(ctx context.Context, offset int64, timeoutSec int) ([]telegram.Update, error)
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64, markup *telegram.InlineKeyboardMarkup) (int64, error)
	AnswerCallbackQuery(ctx context.Context, callbackID, text string) error
}

// Bot принимает события Telegram и передаёт их движку заказов.
type Bot struct {
	api         API
	engine      Engine
	routes      RouteRegistrar
	logger      *zap.Logger
	pollTimeout int
}

// New создаёт диспетчер событий.
func New(api API, engine Engine, routes RouteRegistrar, logger *zap.Logger, pollTimeout int) *Bot {
	return &Bot{
		api:         api,
		engine:      engine,
		routes:      routes,
		logger:      logger,
		pollTimeout: pollTimeout,
	}
}

const (
	textUsage = "Отправьте заявку одним сообщением: тип (fast/slow/unsafe/fund), объём и количество («10800 x2»), email и «код: ...». / Send your order as one message: type (fast/slow/unsafe/fund), pack and quantity (\"10800 x2\"), email and \"code: ...\"."

	textRouteUsage = "Использование: /route <тип> [пакет] — в чате назначения. / Usage: /route <type> [pack] inside the destination chat."
	textRouteSet   = "Маршрут зарегистрирован. / Route registered."

	textInternalError = "Внутренняя ошибка, попробуйте позже. / Internal error, please try again later."
)

// Run выполняет длинный опрос Bot API до отмены контекста. Каждое событие
// обрабатывается в своей горутине: корректность конкурентных переходов
// обеспечивают условные обновления хранилища.
func (b *Bot) Run(ctx context.Context) error {
	var offset int64

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		updates, err := b.api.GetUpdates(ctx, offset, b.pollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			b.logger.Error("get updates failed", zap.Error(err))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(3 * time.Second):
			}
			continue
		}

		for _, u := range updates {
			if u.UpdateID >= offset {
				offset = u.UpdateID + 1
			}
			go b.HandleUpdate(ctx, u)
		}
	}
}

// HandleUpdate обрабатывает одно событие Bot API.
func (b *Bot) HandleUpdate(ctx context.Context, u telegram.Update) {
	defer func() {
		if p := recover(); p != nil {
			b.logger.Error("panic while handling update",
				zap.Int64("update", u.UpdateID),
				zap.Any("panic", p),
			)
		}
	}()

	switch {
	case u.CallbackQuery != nil:
		b.handleCallback(ctx, u.CallbackQuery)
	case u.Message != nil:
		b.handleMessage(ctx, u.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, m *telegram.Message) {
	if m.From == nil || m.Text == "" {
		return
	}

	if strings.HasPrefix(m.Text, "/") {
		b.handleCommand(ctx, m)
		return
	}

	if m.ReplyToMessage != nil {
		b.handleReply(ctx, m)
		return
	}

	// Свободный текст вне ответов принимается как заявка только в личном чате.
	if m.Chat.Type != "private" {
		return
	}

	req := parse.OrderRequest(m.Text)
	notice, err := b.engine.SubmitOrder(ctx, m.Chat.ID, req)
	if err != nil {
		b.logger.Error("submit order failed", zap.Int64("chat", m.Chat.ID), zap.Error(err))
		notice = textInternalError
	}
	b.reply(ctx, m, notice)
}

func (b *Bot) handleReply(ctx context.Context, m *telegram.Message) {
	chatID := m.Chat.ID
	targetID := m.ReplyToMessage.MessageID
	actorID := m.From.ID

	intent := parse.ClassifyReply(m.Text)

	var (
		notice string
		err    error
	)

	switch intent.Kind {
	case parse.IntentDone:
		notice, err = b.engine.Complete(ctx, chatID, targetID, actorID)
	case parse.IntentWrong:
		notice, err = b.engine.Reject(ctx, chatID, targetID, actorID)
	case parse.IntentCancelRequest:
		notice, err = b.engine.RequestCancellation(ctx, chatID, targetID, actorID)
	case parse.IntentPriceQuote:
		notice, err = b.engine.RecordPriceQuote(ctx, chatID, targetID, intent.Amount)
	default:
		return
	}

	if err != nil {
		b.logger.Error("handle reply failed",
			zap.String("intent", string(intent.Kind)),
			zap.Int64("chat", chatID),
			zap.Int64("message", targetID),
			zap.Error(err),
		)
		notice = textInternalError
	}

	b.reply(ctx, m, notice)
}

func (b *Bot) handleCommand(ctx context.Context, m *telegram.Message) {
	fields := strings.Fields(m.Text)
	cmd := fields[0]
	// Команда в группе может приходить с упоминанием бота.
	if i := strings.Index(cmd, "@"); i > 0 {
		cmd = cmd[:i]
	}

	switch cmd {
	case "/start", "/help":
		b.reply(ctx, m, textUsage)
	case "/route":
		b.handleRouteCommand(ctx, m, fields[1:])
	}
}

// handleRouteCommand регистрирует маршрут (тип, пакет) на текущий чат.
// «/route main» регистрирует маршрут последней надежды.
func (b *Bot) handleRouteCommand(ctx context.Context, m *telegram.Message, args []string) {
	if len(args) < 1 || len(args) > 2 {
		b.reply(ctx, m, textRouteUsage)
		return
	}

	orderType := strings.ToLower(args[0])

	var pack *int64
	if len(args) == 2 {
		v, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil || v <= 0 {
			b.reply(ctx, m, textRouteUsage)
			return
		}
		pack = &v
	}

	if err := b.routes.Register(ctx, orderType, pack, m.Chat.ID); err != nil {
		b.logger.Error("register route failed",
			zap.String("type", orderType),
			zap.Int64("chat", m.Chat.ID),
			zap.Error(err),
		)
		b.reply(ctx, m, textInternalError)
		return
	}

	b.reply(ctx, m, textRouteSet)
}

func (b *Bot) handleCallback(ctx context.Context, q *telegram.CallbackQuery) {
	decision, orderID, ok := parse.ParseCancelCallback(q.Data)
	if !ok {
		if err := b.api.AnswerCallbackQuery(ctx, q.ID, ""); err != nil {
			b.logger.Warn("answer callback failed", zap.String("callback", q.ID), zap.Error(err))
		}
		return
	}

	notice, err := b.engine.DecideCancellation(ctx, orderID, decision, q.From.ID)
	if err != nil {
		b.logger.Error("decide cancellation failed",
			zap.Int64("order", orderID),
			zap.Error(err),
		)
		notice = textInternalError
	}

	if err := b.api.AnswerCallbackQuery(ctx, q.ID, notice); err != nil {
		b.logger.Warn("answer callback failed", zap.String("callback", q.ID), zap.Error(err))
	}
}

// reply отвечает на сообщение, если есть что сказать.
func (b *Bot) reply(ctx context.Context, m *telegram.Message, text string) {
	if text == "" {
		return
	}
	if _, err := b.api.SendMessage(ctx, m.Chat.ID, text, m.MessageID, nil); err != nil {
		b.logger.Warn("send reply failed", zap.Int64("chat", m.Chat.ID), zap.Error(err))
	}
}
