package service

import (
	"fmt"
	"strings"

	"github.com/mmeshcher/orderbot/internal/model"
)

// Сообщения двуязычные: основная аудитория бота смешанная.
const (
	textNeedType       = "Укажите тип заказа (fast/slow/unsafe/fund). / Please specify the order type (fast/slow/unsafe/fund)."
	textNeedPack       = "Укажите объём и количество, например «10800 x2». / Please specify pack and quantity, e.g. \"10800 x2\"."
	textNeedCredential = "Укажите код доступа: «код: ...». / Please specify the credential: \"code: ...\"."
	textTotalMismatch  = "Сумма не сходится: %d x%d = %d. / Stated total does not match %d x%d."
	textNoRoute        = "Для этого заказа нет доступной группы, обратитесь к администратору. / No worker group is configured for this order, please contact the administrator."

	textAlreadyReviewed = "Заказ уже рассмотрен. / This order has already been reviewed."

	textCancelAlreadyRequested = "Отмена уже запрошена и ожидает решения. / Cancellation has already been requested and is awaiting a decision."
	textCancelNoSource         = "Заказ не был передан исполнителям, отмена через бота невозможна — обратитесь к администратору. / The order was never routed to a worker group, please contact the administrator."
	textCancelRequested        = "Запрос на отмену заказа #%d отправлен исполнителям. / Cancellation request for order #%d has been sent for approval."
	textCancelPrompt           = "Заказчик просит отменить заказ #%d. Подтвердить? / The customer asks to cancel order #%d. Approve?"
	textCancelNotFound         = "Запрос на отмену не найден. / No cancellation request found."
	textCancelAlreadyDecided   = "Решение уже принято. / This request has already been decided."
	textCancelApprovedNotice   = "🚫 Отмена заказа #%d подтверждена. / Cancellation of order #%d approved."
	textCancelRejectedNotice   = "Отмена заказа #%d отклонена, заказ снова в работе. / Cancellation of order #%d rejected, the order is back in progress."

	textQuoteRecorded = "Сумма заказа #%d обновлена: %d. / Order total updated."

	textApproveButton = "✅ Подтвердить / Approve"
	textRejectButton  = "❌ Отклонить / Reject"
)

var statusLabels = map[model.OrderStatus]string{
	model.OrderStatusPending:       "⏳ в обработке / pending",
	model.OrderStatusPendingCancel: "⏸ запрошена отмена / cancellation requested",
	model.OrderStatusCompleted:     "✅ выполнен / completed",
	model.OrderStatusRejected:      "❌ отклонён / rejected",
	model.OrderStatusCancelled:     "🚫 отменён / cancelled",
}

// statusLabel возвращает двуязычную подпись статуса.
func statusLabel(s model.OrderStatus) string {
	if label, ok := statusLabels[s]; ok {
		return label
	}
	return string(s)
}

// terminalNotice описывает актору конечное состояние заказа вместо
// непрозрачного отказа.
func terminalNotice(s model.OrderStatus) string {
	return fmt.Sprintf("Заказ уже в конечном статусе: %s. / The order is already final: %s.", statusLabel(s), string(s))
}

// renderOrder строит канонический текст зеркального сообщения только из
// полей заказа.
func renderOrder(o *model.Order) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📦 Заказ / Order #%d\n", o.ID)
	fmt.Fprintf(&b, "Тип / Type: %s\n", o.Type)
	fmt.Fprintf(&b, "Объём / Amount: %d x%d (Total: %d)\n", o.Pack, o.Quantity, o.Total)
	if o.Email != "" {
		fmt.Fprintf(&b, "Email: %s\n", o.Email)
	}
	fmt.Fprintf(&b, "Код / Credential: %s\n", o.Credential)
	if o.IGN != "" {
		fmt.Fprintf(&b, "Ник / IGN: %s\n", o.IGN)
	}
	fmt.Fprintf(&b, "Статус / Status: %s", statusLabel(o.Status))

	return b.String()
}
