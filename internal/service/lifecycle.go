package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderbot/internal/model"
	"github.com/mmeshcher/orderbot/internal/repository"
)

// Complete помечает заказ выполненным по ответу исполнителя на зеркало
// source. Возвращаемая строка — сообщение для исполнителя; пустая строка
// означает, что событие не относится к движку и игнорируется.
func (s *Service) Complete(ctx context.Context, chatID, messageID, actorID int64) (string, error) {
	return s.review(ctx, chatID, messageID, actorID, model.OrderStatusCompleted)
}

// Reject помечает заказ отклонённым по ответу исполнителя на зеркало source.
func (s *Service) Reject(ctx context.Context, chatID, messageID, actorID int64) (string, error) {
	return s.review(ctx, chatID, messageID, actorID, model.OrderStatusRejected)
}

// review выполняет переход pending → to с контролем конкурентности: статус
// меняется одним условным обновлением, и при проигрыше гонки актор получает
// «уже рассмотрено» без каких-либо изменений.
func (s *Service) review(ctx context.Context, chatID, messageID, actorID int64, to model.OrderStatus) (string, error) {
	order, relevant, err := s.orderByMirror(ctx, chatID, messageID, model.MirrorRoleSource)
	if err != nil {
		return "", err
	}
	if !relevant {
		return "", nil
	}

	if order.Status.IsTerminal() {
		return terminalNotice(order.Status), nil
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, order.ID, model.OrderStatusPending, to, &actorID, time.Now())
	if err != nil {
		return "", fmt.Errorf("transition order %d: %w", order.ID, err)
	}
	if !ok {
		return textAlreadyReviewed, nil
	}

	s.logger.Info("order reviewed",
		zap.Int64("order", order.ID),
		zap.String("status", string(to)),
		zap.Int64("actor", actorID),
	)

	s.Resync(ctx, order.ID)
	return "", nil
}

// RecordPriceQuote записывает озвученную исполнителем сумму заказа и
// синхронизирует зеркала. Котировка по терминальному заказу отклоняется.
func (s *Service) RecordPriceQuote(ctx context.Context, chatID, messageID, amount int64) (string, error) {
	order, relevant, err := s.orderByMirror(ctx, chatID, messageID, model.MirrorRoleSource)
	if err != nil {
		return "", err
	}
	if !relevant {
		return "", nil
	}

	if order.Status.IsTerminal() {
		return terminalNotice(order.Status), nil
	}

	ok, err := s.repo.UpdateOrderTotal(ctx, order.ID, amount)
	if err != nil {
		return "", fmt.Errorf("update total of order %d: %w", order.ID, err)
	}
	if !ok {
		return textAlreadyReviewed, nil
	}

	s.logger.Info("price quote recorded",
		zap.Int64("order", order.ID),
		zap.Int64("amount", amount),
	)

	s.Resync(ctx, order.ID)
	return fmt.Sprintf(textQuoteRecorded, order.ID, amount), nil
}

// orderByMirror привязывает входящее событие к заказу по координатам
// зеркала. Событие считается нерелевантным, если зеркало неизвестно или его
// роль не совпадает с ожидаемой.
func (s *Service) orderByMirror(ctx context.Context, chatID, messageID int64, role model.MirrorRole) (*model.Order, bool, error) {
	mirror, err := s.repo.FindMirror(ctx, chatID, messageID)
	if err != nil {
		if errors.Is(err, repository.ErrMirrorNotFound) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("find mirror: %w", err)
	}

	if mirror.Role != role {
		return nil, false, nil
	}

	order, err := s.repo.GetOrder(ctx, mirror.OrderID)
	if err != nil {
		return nil, false, fmt.Errorf("load order %d: %w", mirror.OrderID, err)
	}

	return order, true, nil
}
