// Package service реализует движок жизненного цикла заказов: оформление,
// переходы статусов, протокол отмены и синхронизацию зеркальных сообщений.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderbot/internal/model"
	"github.com/mmeshcher/orderbot/internal/router"
)

// Repository описывает контракт доступа к данным, используемый движком.
type Repository interface {
	CreateOrder(ctx context.Context, o model.Order) (int64, error)
	GetOrder(ctx context.Context, id int64) (*model.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID int64, from, to model.OrderStatus, actor *int64, at time.Time) (bool, error)
	UpdateOrderTotal(ctx context.Context, orderID int64, total int64) (bool, error)
	AddOrderMessage(ctx context.Context, m model.OrderMessage) error
	GetOrderMessages(ctx context.Context, orderID int64) ([]model.OrderMessage, error)
	GetOrderMessage(ctx context.Context, orderID int64, role model.MirrorRole) (*model.OrderMessage, error)
	FindMirror(ctx context.Context, chatID, messageID int64) (*model.OrderMessage, error)
	CreateCancelRequest(ctx context.Context, cr model.CancelRequest) error
	GetCancelRequest(ctx context.Context, orderID int64) (*model.CancelRequest, error)
	DecideCancelRequest(ctx context.Context, orderID int64, decision model.CancelDecision, decidedBy int64, at time.Time) (bool, error)
}

// Button — кнопка двухкнопочного запроса подтверждения.
type Button struct {
	Label string
	Data  string
}

// Messenger описывает контракт транспорта сообщений, используемый движком.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error)
	EditMessageText(ctx context.Context, chatID, messageID int64, text string) error
	SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string) error
	SendApprovalPrompt(ctx context.Context, chatID, replyTo int64, text string, approve, reject Button) (int64, error)
}

// Resolver выбирает чат назначения для нового заказа.
type Resolver interface {
	Resolve(ctx context.Context, orderType string, pack int64) (int64, error)
}

// Service содержит движок жизненного цикла заказов.
type Service struct {
	repo     Repository
	msg      Messenger
	resolver Resolver
	logger   *zap.Logger
}

// NewService создаёт движок с указанными хранилищем, транспортом и маршрутизатором.
func NewService(repo Repository, msg Messenger, resolver Resolver, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		msg:      msg,
		resolver: resolver,
		logger:   logger,
	}
}

// SubmitOrder оформляет новый заказ из разобранной заявки. Возвращаемая
// строка — локализованное сообщение заявителю (неполная заявка, отсутствие
// маршрута); пустая строка означает, что заказ создан и зеркала отправлены.
// До прохождения всех проверок хранилище не изменяется.
func (s *Service) SubmitOrder(ctx context.Context, customerChatID int64, req model.ParsedOrderRequest) (string, error) {
	if req.Type == "" || !model.IsKnownOrderType(req.Type) {
		return textNeedType, nil
	}
	if req.Pack == nil {
		return textNeedPack, nil
	}
	if req.Credential == "" {
		return textNeedCredential, nil
	}

	qty := int64(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}
	if qty < 1 {
		return textNeedPack, nil
	}

	total := *req.Pack * qty
	if req.Total != nil {
		if *req.Total != total {
			return fmt.Sprintf(textTotalMismatch, *req.Pack, qty, total, *req.Pack, qty), nil
		}
		total = *req.Total
	}

	destChatID, err := s.resolver.Resolve(ctx, req.Type, *req.Pack)
	if err != nil {
		if errors.Is(err, router.ErrNoRoute) {
			return textNoRoute, nil
		}
		return "", fmt.Errorf("resolve route: %w", err)
	}

	order := model.Order{
		Status:     model.OrderStatusPending,
		Type:       req.Type,
		Pack:       *req.Pack,
		Quantity:   qty,
		Total:      total,
		Email:      req.Email,
		Credential: req.Credential,
		IGN:        req.IGN,
	}

	orderID, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return "", fmt.Errorf("create order: %w", err)
	}
	order.ID = orderID

	s.logger.Info("order created",
		zap.Int64("order", orderID),
		zap.String("type", order.Type),
		zap.Int64("pack", order.Pack),
		zap.Int64("destination", destChatID),
	)

	text := renderOrder(&order)

	s.sendMirror(ctx, orderID, model.MirrorRoleCustomer, customerChatID, text)
	s.sendMirror(ctx, orderID, model.MirrorRoleSource, destChatID, text)

	return "", nil
}

// sendMirror отправляет зеркальное сообщение и записывает его координаты.
// Сбой одного зеркала не прерывает обработку: он логируется, заказ остаётся.
func (s *Service) sendMirror(ctx context.Context, orderID int64, role model.MirrorRole, chatID int64, text string) {
	messageID, err := s.msg.SendMessage(ctx, chatID, text, 0)
	if err != nil {
		s.logger.Error("send mirror failed",
			zap.Int64("order", orderID),
			zap.String("role", string(role)),
			zap.Int64("chat", chatID),
			zap.Error(err),
		)
		return
	}

	err = s.repo.AddOrderMessage(ctx, model.OrderMessage{
		OrderID:   orderID,
		Role:      role,
		ChatID:    chatID,
		MessageID: messageID,
	})
	if err != nil {
		s.logger.Error("record mirror failed",
			zap.Int64("order", orderID),
			zap.String("role", string(role)),
			zap.Error(err),
		)
	}
}
