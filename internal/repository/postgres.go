// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/orderbot/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrOrderNotFound возвращается, если заказ не найден.
var (
	ErrOrderNotFound = errors.New("order not found")
	// ErrMirrorNotFound возвращается, если зеркальное сообщение не найдено.
	ErrMirrorNotFound = errors.New("order message not found")
	// ErrMirrorExists возвращается при попытке записать второе зеркало той же роли.
	ErrMirrorExists = errors.New("order message already recorded")
	// ErrRouteNotFound возвращается, если маршрут не зарегистрирован.
	ErrRouteNotFound = errors.New("route not found")
	// ErrCancelRequestNotFound возвращается, если для заказа нет запроса на отмену.
	ErrCancelRequestNotFound = errors.New("cancel request not found")
	// ErrCancelRequestPending возвращается, если по заказу уже ожидает решения запрос на отмену.
	ErrCancelRequestPending = errors.New("cancel request already pending")
)

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateOrder сохраняет новый заказ в статусе pending и возвращает его идентификатор.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o model.Order) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO orders (status, type, pack, qty, total, email, credential, ign)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id`,
		string(model.OrderStatusPending), o.Type, o.Pack, o.Quantity, o.Total, o.Email, o.Credential, o.IGN,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert order: %w", err)
	}
	return id, nil
}

// GetOrder возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, status, type, pack, qty, total, email, credential, ign,
		        created_at, completed_at, completed_by, cancelled_by, rejected_by
		 FROM orders WHERE id = $1`,
		id,
	)

	var o model.Order
	var status string
	err := row.Scan(&o.ID, &status, &o.Type, &o.Pack, &o.Quantity, &o.Total,
		&o.Email, &o.Credential, &o.IGN,
		&o.CreatedAt, &o.CompletedAt, &o.CompletedBy, &o.CancelledBy, &o.RejectedBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}

	o.Status = model.OrderStatus(status)
	return &o, nil
}

// UpdateOrderStatus выполняет условный переход статуса заказа. Обновление
// применяется одним UPDATE только если текущий статус равен from; результат
// сравнения отражается в возвращаемом признаке. Вместе со статусом атомарно
// записываются отметки ответственного в зависимости от целевого статуса.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, orderID int64, from, to model.OrderStatus, actor *int64, at time.Time) (bool, error) {
	var (
		tag pgconn.CommandTag
		err error
	)

	switch to {
	case model.OrderStatusCompleted:
		tag, err = r.pool.Exec(ctx,
			`UPDATE orders SET status = $1, completed_by = $2, completed_at = $3
			 WHERE id = $4 AND status = $5`,
			string(to), actor, at, orderID, string(from),
		)
	case model.OrderStatusRejected:
		tag, err = r.pool.Exec(ctx,
			`UPDATE orders SET status = $1, rejected_by = $2
			 WHERE id = $3 AND status = $4`,
			string(to), actor, orderID, string(from),
		)
	case model.OrderStatusCancelled:
		tag, err = r.pool.Exec(ctx,
			`UPDATE orders SET status = $1, cancelled_by = $2
			 WHERE id = $3 AND status = $4`,
			string(to), actor, orderID, string(from),
		)
	default:
		tag, err = r.pool.Exec(ctx,
			`UPDATE orders SET status = $1 WHERE id = $2 AND status = $3`,
			string(to), orderID, string(from),
		)
	}

	if err != nil {
		return false, fmt.Errorf("update order status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// UpdateOrderTotal записывает озвученную исполнителем сумму заказа.
// Обновление условное: сумма терминального заказа не меняется.
func (r *PostgresRepository) UpdateOrderTotal(ctx context.Context, orderID int64, total int64) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET total = $1
		 WHERE id = $2 AND status IN ($3, $4)`,
		total, orderID,
		string(model.OrderStatusPending), string(model.OrderStatusPendingCancel),
	)
	if err != nil {
		return false, fmt.Errorf("update order total: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// AddOrderMessage записывает координаты зеркального сообщения заказа.
func (r *PostgresRepository) AddOrderMessage(ctx context.Context, m model.OrderMessage) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO order_messages (order_id, role, chat_id, message_id)
		 VALUES ($1, $2, $3, $4)`,
		m.OrderID, string(m.Role), m.ChatID, m.MessageID,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%w: order %d role %s", ErrMirrorExists, m.OrderID, m.Role)
		}
		return fmt.Errorf("insert order message: %w", err)
	}
	return nil
}

// GetOrderMessages возвращает все зеркальные сообщения заказа.
func (r *PostgresRepository) GetOrderMessages(ctx context.Context, orderID int64) ([]model.OrderMessage, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT order_id, role, chat_id, message_id
		 FROM order_messages
		 WHERE order_id = $1
		 ORDER BY role`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order messages: %w", err)
	}
	defer rows.Close()

	var res []model.OrderMessage
	for rows.Next() {
		var m model.OrderMessage
		var role string
		if err := rows.Scan(&m.OrderID, &role, &m.ChatID, &m.MessageID); err != nil {
			return nil, fmt.Errorf("scan order message: %w", err)
		}
		m.Role = model.MirrorRole(role)
		res = append(res, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetOrderMessage возвращает зеркало заказа с указанной ролью.
func (r *PostgresRepository) GetOrderMessage(ctx context.Context, orderID int64, role model.MirrorRole) (*model.OrderMessage, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT order_id, role, chat_id, message_id
		 FROM order_messages
		 WHERE order_id = $1 AND role = $2`,
		orderID, string(role),
	)

	var m model.OrderMessage
	var roleStr string
	if err := row.Scan(&m.OrderID, &roleStr, &m.ChatID, &m.MessageID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMirrorNotFound
		}
		return nil, fmt.Errorf("get order message: %w", err)
	}

	m.Role = model.MirrorRole(roleStr)
	return &m, nil
}

// FindMirror выполняет обратный поиск зеркала по координатам (чат, сообщение).
// Используется для привязки входящего ответа к заказу.
func (r *PostgresRepository) FindMirror(ctx context.Context, chatID, messageID int64) (*model.OrderMessage, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT order_id, role, chat_id, message_id
		 FROM order_messages
		 WHERE chat_id = $1 AND message_id = $2`,
		chatID, messageID,
	)

	var m model.OrderMessage
	var role string
	if err := row.Scan(&m.OrderID, &role, &m.ChatID, &m.MessageID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrMirrorNotFound
		}
		return nil, fmt.Errorf("find mirror: %w", err)
	}

	m.Role = model.MirrorRole(role)
	return &m, nil
}

// SetRoute регистрирует маршрут (тип, пакет) → чат. Повторная регистрация
// того же ключа молча перезаписывает назначение.
func (r *PostgresRepository) SetRoute(ctx context.Context, route model.Route) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO routes (type, pack, chat_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (type, pack) DO UPDATE SET chat_id = EXCLUDED.chat_id`,
		route.Type, route.Pack, route.ChatID,
	)
	if err != nil {
		return fmt.Errorf("upsert route: %w", err)
	}
	return nil
}

// GetRoute возвращает маршрут для точной пары (тип, пакет).
func (r *PostgresRepository) GetRoute(ctx context.Context, orderType string, pack *int64) (*model.Route, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT type, pack, chat_id
		 FROM routes
		 WHERE type = $1 AND pack IS NOT DISTINCT FROM $2`,
		orderType, pack,
	)

	var route model.Route
	if err := row.Scan(&route.Type, &route.Pack, &route.ChatID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRouteNotFound
		}
		return nil, fmt.Errorf("get route: %w", err)
	}

	return &route, nil
}

// CreateCancelRequest записывает запрос на отмену в статусе pending.
// Уже решённый запрос по тому же заказу перезаписывается; висящий запрос
// в статусе pending блокирует повторную подачу.
func (r *PostgresRepository) CreateCancelRequest(ctx context.Context, cr model.CancelRequest) error {
	tag, err := r.pool.Exec(ctx,
		`INSERT INTO cancel_requests (order_id, worker_chat_id, worker_message_id, request_message_id, status, decided_by, decided_at)
		 VALUES ($1, $2, $3, $4, $5, NULL, NULL)
		 ON CONFLICT (order_id) DO UPDATE
		 SET worker_chat_id = EXCLUDED.worker_chat_id,
		     worker_message_id = EXCLUDED.worker_message_id,
		     request_message_id = EXCLUDED.request_message_id,
		     status = EXCLUDED.status,
		     decided_by = NULL,
		     decided_at = NULL
		 WHERE cancel_requests.status <> $5`,
		cr.OrderID, cr.WorkerChatID, cr.WorkerMessageID, cr.RequestMessageID,
		string(model.CancelDecisionPending),
	)
	if err != nil {
		return fmt.Errorf("insert cancel request: %w", err)
	}

	if tag.RowsAffected() == 0 {
		return ErrCancelRequestPending
	}

	return nil
}

// GetCancelRequest возвращает запрос на отмену по идентификатору заказа.
func (r *PostgresRepository) GetCancelRequest(ctx context.Context, orderID int64) (*model.CancelRequest, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT order_id, worker_chat_id, worker_message_id, request_message_id, status, decided_by, decided_at
		 FROM cancel_requests
		 WHERE order_id = $1`,
		orderID,
	)

	var cr model.CancelRequest
	var status string
	err := row.Scan(&cr.OrderID, &cr.WorkerChatID, &cr.WorkerMessageID,
		&cr.RequestMessageID, &status, &cr.DecidedBy, &cr.DecidedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCancelRequestNotFound
		}
		return nil, fmt.Errorf("get cancel request: %w", err)
	}

	cr.Status = model.CancelDecision(status)
	return &cr, nil
}

// DecideCancelRequest фиксирует решение по запросу на отмену. Обновление
// условное: применяется только к запросу в статусе pending, поэтому повторное
// решение по тому же запросу не проходит.
func (r *PostgresRepository) DecideCancelRequest(ctx context.Context, orderID int64, decision model.CancelDecision, decidedBy int64, at time.Time) (bool, error) {
	tag, err := r.pool.Exec(ctx,
		`UPDATE cancel_requests
		 SET status = $1, decided_by = $2, decided_at = $3
		 WHERE order_id = $4 AND status = $5`,
		string(decision), decidedBy, at, orderID, string(model.CancelDecisionPending),
	)
	if err != nil {
		return false, fmt.Errorf("decide cancel request: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}
