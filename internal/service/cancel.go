package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderbot/internal/model"
	"github.com/mmeshcher/orderbot/internal/parse"
	"github.com/mmeshcher/orderbot/internal/repository"
)

// RequestCancellation запускает протокол отмены по ответу заявителя на
// зеркало customer. Возвращаемая строка — сообщение заявителю; пустая строка
// означает нерелевантное событие.
func (s *Service) RequestCancellation(ctx context.Context, chatID, messageID, actorID int64) (string, error) {
	order, relevant, err := s.orderByMirror(ctx, chatID, messageID, model.MirrorRoleCustomer)
	if err != nil {
		return "", err
	}
	if !relevant {
		return "", nil
	}

	if order.Status.IsTerminal() {
		return terminalNotice(order.Status), nil
	}

	if cr, err := s.repo.GetCancelRequest(ctx, order.ID); err == nil {
		if cr.Status == model.CancelDecisionPending {
			return textCancelAlreadyRequested, nil
		}
	} else if !errors.Is(err, repository.ErrCancelRequestNotFound) {
		return "", fmt.Errorf("load cancel request: %w", err)
	}

	ok, err := s.repo.UpdateOrderStatus(ctx, order.ID,
		model.OrderStatusPending, model.OrderStatusPendingCancel, nil, time.Now())
	if err != nil {
		return "", fmt.Errorf("transition order %d: %w", order.ID, err)
	}
	if !ok {
		current, err := s.repo.GetOrder(ctx, order.ID)
		if err != nil {
			return "", fmt.Errorf("reload order %d: %w", order.ID, err)
		}
		if current.Status == model.OrderStatusPendingCancel {
			return textCancelAlreadyRequested, nil
		}
		return terminalNotice(current.Status), nil
	}

	source, err := s.repo.GetOrderMessage(ctx, order.ID, model.MirrorRoleSource)
	if err != nil {
		if errors.Is(err, repository.ErrMirrorNotFound) {
			// Заказ без зеркала source отменить через этот протокол нельзя.
			// Статус не откатываем: параллельное событие уже могло двигать
			// заказ дальше, откат вслепую сломал бы условные обновления.
			s.logger.Warn("cancel requested for order without source mirror",
				zap.Int64("order", order.ID),
			)
			s.Resync(ctx, order.ID)
			return textCancelNoSource, nil
		}
		return "", fmt.Errorf("load source mirror: %w", err)
	}

	promptID, err := s.msg.SendApprovalPrompt(ctx, source.ChatID, source.MessageID,
		fmt.Sprintf(textCancelPrompt, order.ID, order.ID),
		Button{Label: textApproveButton, Data: parse.CancelCallback(model.CancelDecisionApproved, order.ID)},
		Button{Label: textRejectButton, Data: parse.CancelCallback(model.CancelDecisionRejected, order.ID)},
	)
	if err != nil {
		s.logger.Error("send cancel prompt failed",
			zap.Int64("order", order.ID),
			zap.Int64("chat", source.ChatID),
			zap.Error(err),
		)
		s.Resync(ctx, order.ID)
		return textCancelNoSource, nil
	}

	err = s.repo.CreateCancelRequest(ctx, model.CancelRequest{
		OrderID:          order.ID,
		WorkerChatID:     source.ChatID,
		WorkerMessageID:  source.MessageID,
		RequestMessageID: promptID,
		Status:           model.CancelDecisionPending,
	})
	if err != nil {
		if errors.Is(err, repository.ErrCancelRequestPending) {
			return textCancelAlreadyRequested, nil
		}
		return "", fmt.Errorf("record cancel request: %w", err)
	}

	s.logger.Info("cancellation requested",
		zap.Int64("order", order.ID),
		zap.Int64("actor", actorID),
	)

	s.Resync(ctx, order.ID)
	return fmt.Sprintf(textCancelRequested, order.ID, order.ID), nil
}

// DecideCancellation фиксирует решение исполнителя по запросу на отмену.
// Возвращаемая строка — текст для всплывающего ответа на нажатие кнопки.
// Повторная доставка того же решения безвредна: и запрос, и статус заказа
// обновляются условно.
func (s *Service) DecideCancellation(ctx context.Context, orderID int64, decision model.CancelDecision, deciderID int64) (string, error) {
	cr, err := s.repo.GetCancelRequest(ctx, orderID)
	if err != nil {
		if errors.Is(err, repository.ErrCancelRequestNotFound) {
			return textCancelNotFound, nil
		}
		return "", fmt.Errorf("load cancel request: %w", err)
	}
	if cr.Status != model.CancelDecisionPending {
		return textCancelAlreadyDecided, nil
	}

	now := time.Now()

	ok, err := s.repo.DecideCancelRequest(ctx, orderID, decision, deciderID, now)
	if err != nil {
		return "", fmt.Errorf("decide cancel request: %w", err)
	}
	if !ok {
		return textCancelAlreadyDecided, nil
	}

	to := model.OrderStatusPending
	notice := fmt.Sprintf(textCancelRejectedNotice, orderID, orderID)
	if decision == model.CancelDecisionApproved {
		to = model.OrderStatusCancelled
		notice = fmt.Sprintf(textCancelApprovedNotice, orderID, orderID)
	}

	ok, err = s.repo.UpdateOrderStatus(ctx, orderID,
		model.OrderStatusPendingCancel, to, &deciderID, now)
	if err != nil {
		return "", fmt.Errorf("transition order %d: %w", orderID, err)
	}
	if !ok {
		s.logger.Warn("order left pending_cancel before decision applied",
			zap.Int64("order", orderID),
			zap.String("decision", string(decision)),
		)
	}

	s.logger.Info("cancellation decided",
		zap.Int64("order", orderID),
		zap.String("decision", string(decision)),
		zap.Int64("decider", deciderID),
	)

	if err := s.msg.EditMessageText(ctx, cr.WorkerChatID, cr.RequestMessageID, notice); err != nil {
		s.logger.Warn("edit cancel prompt failed",
			zap.Int64("order", orderID),
			zap.Int64("chat", cr.WorkerChatID),
			zap.Int64("message", cr.RequestMessageID),
			zap.Error(err),
		)
	}

	s.Resync(ctx, orderID)
	return notice, nil
}
