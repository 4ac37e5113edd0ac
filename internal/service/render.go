package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderbot/internal/model"
)

const (
	reactionPositive = "👍"
	reactionNegative = "👎"
)

// Resync перечитывает заказ и доводит каждое его зеркальное сообщение до
// канонического текста. Сбой по одному зеркалу логируется и не прерывает
// синхронизацию остальных.
func (s *Service) Resync(ctx context.Context, orderID int64) {
	order, err := s.repo.GetOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("resync: load order failed", zap.Int64("order", orderID), zap.Error(err))
		return
	}

	mirrors, err := s.repo.GetOrderMessages(ctx, orderID)
	if err != nil {
		s.logger.Error("resync: load mirrors failed", zap.Int64("order", orderID), zap.Error(err))
		return
	}

	text := renderOrder(order)

	reaction := ""
	switch order.Status {
	case model.OrderStatusCompleted:
		reaction = reactionPositive
	case model.OrderStatusCancelled, model.OrderStatusRejected:
		reaction = reactionNegative
	}

	for _, m := range mirrors {
		if err := s.msg.EditMessageText(ctx, m.ChatID, m.MessageID, text); err != nil {
			s.logger.Warn("resync: edit mirror failed",
				zap.Int64("order", orderID),
				zap.String("role", string(m.Role)),
				zap.Int64("chat", m.ChatID),
				zap.Int64("message", m.MessageID),
				zap.Error(err),
			)
		}

		if reaction == "" {
			continue
		}
		if err := s.msg.SetMessageReaction(ctx, m.ChatID, m.MessageID, reaction); err != nil {
			s.logger.Warn("resync: set reaction failed",
				zap.Int64("order", orderID),
				zap.String("role", string(m.Role)),
				zap.Int64("chat", m.ChatID),
				zap.Int64("message", m.MessageID),
				zap.Error(err),
			)
		}
	}
}
