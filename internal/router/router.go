// Package router реализует выбор чата назначения для нового заказа.
package router

import (
	"context"
	"errors"
	"fmt"

	"github.com/mmeshcher/orderbot/internal/model"
	"github.com/mmeshcher/orderbot/internal/repository"
)

// ErrNoRoute возвращается, если ни точный маршрут, ни маршрут последней
// надежды не зарегистрированы. Отсутствие маршрута — бизнес-условие, а не
// временный сбой, поэтому повторов не предусмотрено.
var ErrNoRoute = errors.New("no route available")

// RouteStore описывает контракт хранилища таблицы маршрутов.
type RouteStore interface {
	GetRoute(ctx context.Context, orderType string, pack *int64) (*model.Route, error)
	SetRoute(ctx context.Context, route model.Route) error
}

// Router выбирает чат назначения по таблице маршрутов в хранилище.
type Router struct {
	store RouteStore
}

// New создаёт маршрутизатор поверх указанного хранилища.
func New(store RouteStore) *Router {
	return &Router{store: store}
}

// Resolve возвращает чат назначения для пары (тип, пакет): сначала точное
// совпадение, затем маршрут (main, nil). Если нет ни того, ни другого,
// возвращается ErrNoRoute.
func (r *Router) Resolve(ctx context.Context, orderType string, pack int64) (int64, error) {
	route, err := r.store.GetRoute(ctx, orderType, &pack)
	if err == nil {
		return route.ChatID, nil
	}
	if !errors.Is(err, repository.ErrRouteNotFound) {
		return 0, fmt.Errorf("resolve exact route: %w", err)
	}

	route, err = r.store.GetRoute(ctx, model.RouteTypeMain, nil)
	if err == nil {
		return route.ChatID, nil
	}
	if !errors.Is(err, repository.ErrRouteNotFound) {
		return 0, fmt.Errorf("resolve fallback route: %w", err)
	}

	return 0, ErrNoRoute
}

// Register выполняет идемпотентную регистрацию маршрута: повторная
// регистрация того же ключа перезаписывает назначение.
func (r *Router) Register(ctx context.Context, orderType string, pack *int64, chatID int64) error {
	if err := r.store.SetRoute(ctx, model.Route{Type: orderType, Pack: pack, ChatID: chatID}); err != nil {
		return fmt.Errorf("register route: %w", err)
	}
	return nil
}
