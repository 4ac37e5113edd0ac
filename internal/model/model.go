// Package model содержит доменные сущности бота приёма заказов.
package model

import "time"

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending       OrderStatus = "pending"
	OrderStatusPendingCancel OrderStatus = "pending_cancel"
	OrderStatusCompleted     OrderStatus = "completed"
	OrderStatusRejected      OrderStatus = "rejected"
	OrderStatusCancelled     OrderStatus = "cancelled"
)

// IsTerminal сообщает, является ли статус конечным: из конечного статуса
// переходы запрещены.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusCompleted, OrderStatusRejected, OrderStatusCancelled:
		return true
	}
	return false
}

// KnownOrderTypes — список типов заказов, принимаемых при оформлении.
// Таблица маршрутов допускает произвольный тип, чтобы новый тип можно было
// развернуть, сначала зарегистрировав маршрут.
var KnownOrderTypes = []string{"fast", "slow", "unsafe", "fund"}

// IsKnownOrderType проверяет тип заказа по списку известных типов.
func IsKnownOrderType(t string) bool {
	for _, known := range KnownOrderTypes {
		if t == known {
			return true
		}
	}
	return false
}

// RouteTypeMain — тип маршрута последней надежды: маршрут (main, nil)
// используется, когда точного совпадения (тип, пакет) нет.
const RouteTypeMain = "main"

// Order описывает заказ и отметки о его обработке.
type Order struct {
	ID         int64
	Status     OrderStatus
	Type       string
	Pack       int64
	Quantity   int64
	Total      int64
	Email      string
	Credential string
	IGN        string

	CreatedAt   time.Time
	CompletedAt *time.Time
	CompletedBy *int64
	CancelledBy *int64
	RejectedBy  *int64
}

// MirrorRole описывает роль зеркального сообщения заказа.
type MirrorRole string

const (
	// MirrorRoleCustomer — зеркало в чате заказчика.
	MirrorRoleCustomer MirrorRole = "customer"
	// MirrorRoleSource — зеркало в чате группы исполнителей.
	MirrorRoleSource MirrorRole = "source"
)

// OrderMessage связывает заказ с координатами одного его зеркального
// сообщения. На пару (заказ, роль) приходится не более одного зеркала,
// пара (чат, сообщение) однозначно определяет зеркало.
type OrderMessage struct {
	OrderID   int64
	Role      MirrorRole
	ChatID    int64
	MessageID int64
}

// Route задаёт чат назначения для пары (тип, пакет). Pack == nil означает
// маршрут без привязки к пакету.
type Route struct {
	Type   string
	Pack   *int64
	ChatID int64
}

// CancelDecision описывает решение по запросу на отмену.
type CancelDecision string

const (
	CancelDecisionPending  CancelDecision = "pending"
	CancelDecisionApproved CancelDecision = "approved"
	CancelDecisionRejected CancelDecision = "rejected"
)

// CancelRequest описывает запрос на отмену заказа. На заказ существует не
// более одного запроса в статусе pending.
type CancelRequest struct {
	OrderID          int64
	WorkerChatID     int64
	WorkerMessageID  int64
	RequestMessageID int64
	Status           CancelDecision
	DecidedBy        *int64
	DecidedAt        *time.Time
}

// ParsedOrderRequest — результат разбора свободного текста заявки.
// Каждое поле может отсутствовать; обязательность проверяется на этапе
// оформления заказа.
type ParsedOrderRequest struct {
	Type       string
	Pack       *int64
	Quantity   *int64
	Total      *int64
	Email      string
	Credential string
	IGN        string
}
