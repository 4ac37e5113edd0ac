package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderbot/internal/model"
	"github.com/mmeshcher/orderbot/internal/repository"
	"github.com/mmeshcher/orderbot/internal/router"
)

// memRepo — хранилище в памяти с теми же условными обновлениями, что и у
// PostgresRepository.
type memRepo struct {
	mu      sync.Mutex
	nextID  int64
	orders  map[int64]*model.Order
	mirrors []model.OrderMessage
	cancels map[int64]*model.CancelRequest
}

func newMemRepo() *memRepo {
	return &memRepo{
		orders:  make(map[int64]*model.Order),
		cancels: make(map[int64]*model.CancelRequest),
	}
}

func (r *memRepo) CreateOrder(ctx context.Context, o model.Order) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	o.ID = r.nextID
	o.Status = model.OrderStatusPending
	o.CreatedAt = time.Now()
	r.orders[o.ID] = &o
	return o.ID, nil
}

func (r *memRepo) GetOrder(ctx context.Context, id int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, repository.ErrOrderNotFound
	}
	cp := *o
	return &cp, nil
}

func (r *memRepo) UpdateOrderStatus(ctx context.Context, orderID int64, from, to model.OrderStatus, actor *int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.Status != from {
		return false, nil
	}

	o.Status = to
	switch to {
	case model.OrderStatusCompleted:
		o.CompletedBy = actor
		o.CompletedAt = &at
	case model.OrderStatusRejected:
		o.RejectedBy = actor
	case model.OrderStatusCancelled:
		o.CancelledBy = actor
	}
	return true, nil
}

func (r *memRepo) UpdateOrderTotal(ctx context.Context, orderID int64, total int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[orderID]
	if !ok || o.Status.IsTerminal() {
		return false, nil
	}
	o.Total = total
	return true, nil
}

func (r *memRepo) AddOrderMessage(ctx context.Context, m model.OrderMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.mirrors {
		if existing.OrderID == m.OrderID && existing.Role == m.Role {
			return repository.ErrMirrorExists
		}
	}
	r.mirrors = append(r.mirrors, m)
	return nil
}

func (r *memRepo) GetOrderMessages(ctx context.Context, orderID int64) ([]model.OrderMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res []model.OrderMessage
	for _, m := range r.mirrors {
		if m.OrderID == orderID {
			res = append(res, m)
		}
	}
	return res, nil
}

func (r *memRepo) GetOrderMessage(ctx context.Context, orderID int64, role model.MirrorRole) (*model.OrderMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mirrors {
		if m.OrderID == orderID && m.Role == role {
			cp := m
			return &cp, nil
		}
	}
	return nil, repository.ErrMirrorNotFound
}

func (r *memRepo) FindMirror(ctx context.Context, chatID, messageID int64) (*model.OrderMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.mirrors {
		if m.ChatID == chatID && m.MessageID == messageID {
			cp := m
			return &cp, nil
		}
	}
	return nil, repository.ErrMirrorNotFound
}

func (r *memRepo) CreateCancelRequest(ctx context.Context, cr model.CancelRequest) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.cancels[cr.OrderID]; ok && existing.Status == model.CancelDecisionPending {
		return repository.ErrCancelRequestPending
	}
	cr.Status = model.CancelDecisionPending
	r.cancels[cr.OrderID] = &cr
	return nil
}

func (r *memRepo) GetCancelRequest(ctx context.Context, orderID int64) (*model.CancelRequest, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cr, ok := r.cancels[orderID]
	if !ok {
		return nil, repository.ErrCancelRequestNotFound
	}
	cp := *cr
	return &cp, nil
}

func (r *memRepo) DecideCancelRequest(ctx context.Context, orderID int64, decision model.CancelDecision, decidedBy int64, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	cr, ok := r.cancels[orderID]
	if !ok || cr.Status != model.CancelDecisionPending {
		return false, nil
	}
	cr.Status = decision
	cr.DecidedBy = &decidedBy
	cr.DecidedAt = &at
	return true, nil
}

type sentMessage struct {
	ChatID  int64
	Text    string
	ReplyTo int64
}

type editCall struct {
	ChatID    int64
	MessageID int64
	Text      string
}

type reactionCall struct {
	ChatID    int64
	MessageID int64
	Emoji     string
}

type promptCall struct {
	ChatID  int64
	ReplyTo int64
	Text    string
	Approve Button
	Reject  Button
}

// stubMessenger записывает исходящие вызовы транспорта; отдельные координаты
// можно пометить сбойными.
type stubMessenger struct {
	mu            sync.Mutex
	nextMessageID int64
	sent          []sentMessage
	edits         []editCall
	reactions     []reactionCall
	prompts       []promptCall
	failEdits     map[[2]int64]bool
}

func (m *stubMessenger) SendMessage(ctx context.Context, chatID int64, text string, replyTo int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMessageID++
	m.sent = append(m.sent, sentMessage{ChatID: chatID, Text: text, ReplyTo: replyTo})
	return m.nextMessageID, nil
}

func (m *stubMessenger) EditMessageText(ctx context.Context, chatID, messageID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.failEdits[[2]int64{chatID, messageID}] {
		return fmt.Errorf("message to edit not found")
	}
	m.edits = append(m.edits, editCall{ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (m *stubMessenger) SetMessageReaction(ctx context.Context, chatID, messageID int64, emoji string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.reactions = append(m.reactions, reactionCall{ChatID: chatID, MessageID: messageID, Emoji: emoji})
	return nil
}

func (m *stubMessenger) SendApprovalPrompt(ctx context.Context, chatID, replyTo int64, text string, approve, reject Button) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextMessageID++
	m.prompts = append(m.prompts, promptCall{ChatID: chatID, ReplyTo: replyTo, Text: text, Approve: approve, Reject: reject})
	return m.nextMessageID, nil
}

type stubResolver struct {
	chatID int64
	err    error
}

func (r *stubResolver) Resolve(ctx context.Context, orderType string, pack int64) (int64, error) {
	if r.err != nil {
		return 0, r.err
	}
	return r.chatID, nil
}

func newTestService(t *testing.T, repo Repository, msg Messenger, resolver Resolver) *Service {
	t.Helper()

	logger, err := zap.NewDevelopment()
	if err != nil {
		t.Fatalf("new logger: %v", err)
	}

	return NewService(repo, msg, resolver, logger)
}

const (
	customerChat = int64(100)
	sourceChat   = int64(-500)
	workerID     = int64(77)
	customerID   = int64(42)
)

func validRequest() model.ParsedOrderRequest {
	pack := int64(10800)
	qty := int64(2)
	return model.ParsedOrderRequest{
		Type:       "fast",
		Pack:       &pack,
		Quantity:   &qty,
		Email:      "a@b.com",
		Credential: "x",
	}
}

// submitOrder оформляет заказ через движок и возвращает его идентификатор.
func submitOrder(t *testing.T, svc *Service, repo *memRepo) int64 {
	t.Helper()

	notice, err := svc.SubmitOrder(context.Background(), customerChat, validRequest())
	if err != nil {
		t.Fatalf("SubmitOrder error: %v", err)
	}
	if notice != "" {
		t.Fatalf("SubmitOrder notice = %q, want empty", notice)
	}

	repo.mu.Lock()
	defer repo.mu.Unlock()
	if len(repo.orders) != 1 {
		t.Fatalf("orders created = %d, want 1", len(repo.orders))
	}
	return repo.nextID
}

func TestSubmitOrder_MissingFields(t *testing.T) {
	tests := []struct {
		name   string
		mut    func(*model.ParsedOrderRequest)
		notice string
	}{
		{"missing type", func(r *model.ParsedOrderRequest) { r.Type = "" }, textNeedType},
		{"unknown type", func(r *model.ParsedOrderRequest) { r.Type = "warp" }, textNeedType},
		{"missing pack", func(r *model.ParsedOrderRequest) { r.Pack = nil }, textNeedPack},
		{"missing credential", func(r *model.ParsedOrderRequest) { r.Credential = "" }, textNeedCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := newMemRepo()
			msg := &stubMessenger{}
			svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

			req := validRequest()
			tt.mut(&req)

			notice, err := svc.SubmitOrder(context.Background(), customerChat, req)
			if err != nil {
				t.Fatalf("SubmitOrder error: %v", err)
			}
			if notice != tt.notice {
				t.Errorf("notice = %q, want %q", notice, tt.notice)
			}
			if len(repo.orders) != 0 {
				t.Errorf("order was created for an incomplete request")
			}
			if len(msg.sent) != 0 {
				t.Errorf("mirrors were sent for an incomplete request")
			}
		})
	}
}

func TestSubmitOrder_TotalMismatch(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, &stubMessenger{}, &stubResolver{chatID: sourceChat})

	req := validRequest()
	badTotal := int64(99999)
	req.Total = &badTotal

	notice, err := svc.SubmitOrder(context.Background(), customerChat, req)
	if err != nil {
		t.Fatalf("SubmitOrder error: %v", err)
	}
	if notice == "" {
		t.Fatalf("expected mismatch notice")
	}
	if len(repo.orders) != 0 {
		t.Fatalf("order was created with inconsistent total")
	}
}

func TestSubmitOrder_NoRoute(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, &stubMessenger{}, &stubResolver{err: router.ErrNoRoute})

	notice, err := svc.SubmitOrder(context.Background(), customerChat, validRequest())
	if err != nil {
		t.Fatalf("SubmitOrder error: %v", err)
	}
	if notice != textNoRoute {
		t.Errorf("notice = %q, want %q", notice, textNoRoute)
	}
	if len(repo.orders) != 0 {
		t.Errorf("order was created without a route")
	}
}

func TestSubmitOrder_Success(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)

	order, err := repo.GetOrder(context.Background(), orderID)
	if err != nil {
		t.Fatalf("GetOrder error: %v", err)
	}
	if order.Status != model.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if order.Total != 21600 {
		t.Errorf("total = %d, want 21600", order.Total)
	}

	if len(msg.sent) != 2 {
		t.Fatalf("mirrors sent = %d, want 2", len(msg.sent))
	}
	if msg.sent[0].ChatID != customerChat || msg.sent[1].ChatID != sourceChat {
		t.Errorf("mirror chats = %d, %d; want %d, %d", msg.sent[0].ChatID, msg.sent[1].ChatID, customerChat, sourceChat)
	}
	if !strings.Contains(msg.sent[0].Text, "10800 x2 (Total: 21600)") {
		t.Errorf("canonical text %q lacks amount line", msg.sent[0].Text)
	}

	mirrors, err := repo.GetOrderMessages(context.Background(), orderID)
	if err != nil {
		t.Fatalf("GetOrderMessages error: %v", err)
	}
	if len(mirrors) != 2 {
		t.Fatalf("mirrors recorded = %d, want 2", len(mirrors))
	}
}

// sourceMirror возвращает координаты зеркала source оформленного заказа.
func sourceMirror(t *testing.T, repo *memRepo, orderID int64) model.OrderMessage {
	t.Helper()

	m, err := repo.GetOrderMessage(context.Background(), orderID, model.MirrorRoleSource)
	if err != nil {
		t.Fatalf("source mirror: %v", err)
	}
	return *m
}

func customerMirror(t *testing.T, repo *memRepo, orderID int64) model.OrderMessage {
	t.Helper()

	m, err := repo.GetOrderMessage(context.Background(), orderID, model.MirrorRoleCustomer)
	if err != nil {
		t.Fatalf("customer mirror: %v", err)
	}
	return *m
}

func TestComplete_Success(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	src := sourceMirror(t, repo, orderID)

	notice, err := svc.Complete(context.Background(), src.ChatID, src.MessageID, workerID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if notice != "" {
		t.Fatalf("notice = %q, want empty", notice)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Status != model.OrderStatusCompleted {
		t.Errorf("status = %s, want completed", order.Status)
	}
	if order.CompletedBy == nil || *order.CompletedBy != workerID {
		t.Errorf("completed_by = %v, want %d", order.CompletedBy, workerID)
	}
	if order.CompletedAt == nil {
		t.Errorf("completed_at is not set")
	}

	if len(msg.edits) != 2 {
		t.Errorf("mirror edits = %d, want 2", len(msg.edits))
	}
	if len(msg.reactions) != 2 {
		t.Fatalf("reactions = %d, want 2", len(msg.reactions))
	}
	for _, r := range msg.reactions {
		if r.Emoji != reactionPositive {
			t.Errorf("reaction = %q, want %q", r.Emoji, reactionPositive)
		}
	}
}

func TestComplete_WrongRoleIgnored(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	cust := customerMirror(t, repo, orderID)

	notice, err := svc.Complete(context.Background(), cust.ChatID, cust.MessageID, workerID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if notice != "" {
		t.Errorf("notice = %q, want silence for wrong role", notice)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Status != model.OrderStatusPending {
		t.Errorf("status = %s, want pending untouched", order.Status)
	}
}

func TestComplete_UnknownMirrorIgnored(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, &stubMessenger{}, &stubResolver{chatID: sourceChat})

	notice, err := svc.Complete(context.Background(), 1, 2, workerID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if notice != "" {
		t.Errorf("notice = %q, want silence for unknown mirror", notice)
	}
}

func TestComplete_Terminal(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	src := sourceMirror(t, repo, orderID)

	if _, err := svc.Complete(context.Background(), src.ChatID, src.MessageID, workerID); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	notice, err := svc.Complete(context.Background(), src.ChatID, src.MessageID, workerID)
	if err != nil {
		t.Fatalf("Complete error: %v", err)
	}
	if notice != terminalNotice(model.OrderStatusCompleted) {
		t.Errorf("notice = %q, want terminal-state message", notice)
	}
}

func TestReview_ConcurrentConflict(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	src := sourceMirror(t, repo, orderID)

	var wg sync.WaitGroup
	notices := make([]string, 2)
	errs := make([]error, 2)

	wg.Add(2)
	go func() {
		defer wg.Done()
		notices[0], errs[0] = svc.Complete(context.Background(), src.ChatID, src.MessageID, workerID)
	}()
	go func() {
		defer wg.Done()
		notices[1], errs[1] = svc.Reject(context.Background(), src.ChatID, src.MessageID, workerID+1)
	}()
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("attempt %d error: %v", i, err)
		}
	}

	var conflicts int
	for _, n := range notices {
		if n != "" {
			conflicts++
			// Проигравший получает либо «уже рассмотрено», либо описание
			// конечного статуса, если успел перечитать заказ.
			if n != textAlreadyReviewed && !strings.Contains(n, "конечном статусе") {
				t.Errorf("loser notice = %q", n)
			}
		}
	}
	if conflicts != 1 {
		t.Fatalf("conflicts = %d, want exactly 1", conflicts)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if !order.Status.IsTerminal() {
		t.Fatalf("status = %s, want terminal", order.Status)
	}
	if order.Status == model.OrderStatusCompleted && order.RejectedBy != nil {
		t.Errorf("both transitions left actor marks")
	}
	if order.Status == model.OrderStatusRejected && order.CompletedBy != nil {
		t.Errorf("both transitions left actor marks")
	}
}

func TestRequestCancellation_Success(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	cust := customerMirror(t, repo, orderID)
	src := sourceMirror(t, repo, orderID)

	notice, err := svc.RequestCancellation(context.Background(), cust.ChatID, cust.MessageID, customerID)
	if err != nil {
		t.Fatalf("RequestCancellation error: %v", err)
	}
	if notice != fmt.Sprintf(textCancelRequested, orderID, orderID) {
		t.Errorf("notice = %q", notice)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Status != model.OrderStatusPendingCancel {
		t.Errorf("status = %s, want pending_cancel", order.Status)
	}

	cr, err := repo.GetCancelRequest(context.Background(), orderID)
	if err != nil {
		t.Fatalf("GetCancelRequest error: %v", err)
	}
	if cr.Status != model.CancelDecisionPending {
		t.Errorf("cancel request status = %s, want pending", cr.Status)
	}
	if cr.WorkerChatID != src.ChatID || cr.WorkerMessageID != src.MessageID {
		t.Errorf("cancel request coordinates = (%d, %d), want source mirror", cr.WorkerChatID, cr.WorkerMessageID)
	}

	if len(msg.prompts) != 1 {
		t.Fatalf("prompts sent = %d, want 1", len(msg.prompts))
	}
	prompt := msg.prompts[0]
	if prompt.ChatID != src.ChatID || prompt.ReplyTo != src.MessageID {
		t.Errorf("prompt addressed to (%d, %d), want source mirror", prompt.ChatID, prompt.ReplyTo)
	}
	if cr.RequestMessageID == 0 {
		t.Errorf("prompt message id was not recorded")
	}
}

func TestRequestCancellation_SecondWhilePending(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	cust := customerMirror(t, repo, orderID)

	if _, err := svc.RequestCancellation(context.Background(), cust.ChatID, cust.MessageID, customerID); err != nil {
		t.Fatalf("first RequestCancellation error: %v", err)
	}

	notice, err := svc.RequestCancellation(context.Background(), cust.ChatID, cust.MessageID, customerID)
	if err != nil {
		t.Fatalf("second RequestCancellation error: %v", err)
	}
	if notice != textCancelAlreadyRequested {
		t.Errorf("notice = %q, want %q", notice, textCancelAlreadyRequested)
	}
	if len(msg.prompts) != 1 {
		t.Errorf("prompts sent = %d, want 1", len(msg.prompts))
	}
}

func TestRequestCancellation_NoSourceMirror(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID, err := repo.CreateOrder(context.Background(), model.Order{
		Type: "fast", Pack: 10800, Quantity: 1, Total: 10800, Credential: "x",
	})
	if err != nil {
		t.Fatalf("CreateOrder error: %v", err)
	}
	if err := repo.AddOrderMessage(context.Background(), model.OrderMessage{
		OrderID: orderID, Role: model.MirrorRoleCustomer, ChatID: customerChat, MessageID: 1,
	}); err != nil {
		t.Fatalf("AddOrderMessage error: %v", err)
	}

	notice, err := svc.RequestCancellation(context.Background(), customerChat, 1, customerID)
	if err != nil {
		t.Fatalf("RequestCancellation error: %v", err)
	}
	if notice != textCancelNoSource {
		t.Errorf("notice = %q, want %q", notice, textCancelNoSource)
	}

	// Заказ сознательно остаётся в pending_cancel: автоотката нет.
	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Status != model.OrderStatusPendingCancel {
		t.Errorf("status = %s, want pending_cancel left for manual intervention", order.Status)
	}
	if len(msg.prompts) != 0 {
		t.Errorf("prompt was sent without a source mirror")
	}
}

// requestCancellation доводит оформленный заказ до pending_cancel.
func requestCancellation(t *testing.T, svc *Service, repo *memRepo, orderID int64) {
	t.Helper()

	cust := customerMirror(t, repo, orderID)
	if _, err := svc.RequestCancellation(context.Background(), cust.ChatID, cust.MessageID, customerID); err != nil {
		t.Fatalf("RequestCancellation error: %v", err)
	}
}

func TestDecideCancellation_Approve(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	requestCancellation(t, svc, repo, orderID)

	notice, err := svc.DecideCancellation(context.Background(), orderID, model.CancelDecisionApproved, workerID)
	if err != nil {
		t.Fatalf("DecideCancellation error: %v", err)
	}
	if notice != fmt.Sprintf(textCancelApprovedNotice, orderID, orderID) {
		t.Errorf("notice = %q", notice)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", order.Status)
	}
	if order.CancelledBy == nil || *order.CancelledBy != workerID {
		t.Errorf("cancelled_by = %v, want %d", order.CancelledBy, workerID)
	}

	cr, _ := repo.GetCancelRequest(context.Background(), orderID)
	if cr.Status != model.CancelDecisionApproved {
		t.Errorf("cancel request status = %s, want approved", cr.Status)
	}
	if cr.DecidedBy == nil || *cr.DecidedBy != workerID {
		t.Errorf("decided_by = %v, want %d", cr.DecidedBy, workerID)
	}
	if cr.DecidedAt == nil {
		t.Errorf("decided_at is not set")
	}

	var negative int
	for _, r := range msg.reactions {
		if r.Emoji == reactionNegative {
			negative++
		}
	}
	if negative != 2 {
		t.Errorf("negative reactions = %d, want 2", negative)
	}
}

func TestDecideCancellation_Reject(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	requestCancellation(t, svc, repo, orderID)

	notice, err := svc.DecideCancellation(context.Background(), orderID, model.CancelDecisionRejected, workerID)
	if err != nil {
		t.Fatalf("DecideCancellation error: %v", err)
	}
	if notice != fmt.Sprintf(textCancelRejectedNotice, orderID, orderID) {
		t.Errorf("notice = %q", notice)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Status != model.OrderStatusPending {
		t.Errorf("status = %s, want pending restored", order.Status)
	}

	cr, _ := repo.GetCancelRequest(context.Background(), orderID)
	if cr.Status != model.CancelDecisionRejected {
		t.Errorf("cancel request status = %s, want rejected", cr.Status)
	}
}

func TestDecideCancellation_Idempotent(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	requestCancellation(t, svc, repo, orderID)

	if _, err := svc.DecideCancellation(context.Background(), orderID, model.CancelDecisionApproved, workerID); err != nil {
		t.Fatalf("first DecideCancellation error: %v", err)
	}

	before, _ := repo.GetCancelRequest(context.Background(), orderID)

	notice, err := svc.DecideCancellation(context.Background(), orderID, model.CancelDecisionRejected, workerID+1)
	if err != nil {
		t.Fatalf("second DecideCancellation error: %v", err)
	}
	if notice != textCancelAlreadyDecided {
		t.Errorf("notice = %q, want %q", notice, textCancelAlreadyDecided)
	}

	after, _ := repo.GetCancelRequest(context.Background(), orderID)
	if after.Status != before.Status || *after.DecidedBy != *before.DecidedBy {
		t.Errorf("duplicate decision mutated the request: %+v -> %+v", before, after)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Status != model.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled preserved", order.Status)
	}
}

func TestDecideCancellation_NoRequest(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(t, repo, &stubMessenger{}, &stubResolver{chatID: sourceChat})

	notice, err := svc.DecideCancellation(context.Background(), 555, model.CancelDecisionApproved, workerID)
	if err != nil {
		t.Fatalf("DecideCancellation error: %v", err)
	}
	if notice != textCancelNotFound {
		t.Errorf("notice = %q, want %q", notice, textCancelNotFound)
	}
}

func TestResync_PartialFailure(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	cust := customerMirror(t, repo, orderID)
	src := sourceMirror(t, repo, orderID)

	msg.failEdits = map[[2]int64]bool{{cust.ChatID, cust.MessageID}: true}

	svc.Resync(context.Background(), orderID)

	if len(msg.edits) != 1 {
		t.Fatalf("edits = %d, want 1 despite one mirror failing", len(msg.edits))
	}
	if msg.edits[0].ChatID != src.ChatID || msg.edits[0].MessageID != src.MessageID {
		t.Errorf("surviving edit hit (%d, %d), want source mirror", msg.edits[0].ChatID, msg.edits[0].MessageID)
	}
}

func TestRecordPriceQuote(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	src := sourceMirror(t, repo, orderID)

	notice, err := svc.RecordPriceQuote(context.Background(), src.ChatID, src.MessageID, 25000)
	if err != nil {
		t.Fatalf("RecordPriceQuote error: %v", err)
	}
	if notice == "" {
		t.Errorf("expected confirmation notice")
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Total != 25000 {
		t.Errorf("total = %d, want 25000", order.Total)
	}
}

func TestRecordPriceQuote_Terminal(t *testing.T) {
	repo := newMemRepo()
	msg := &stubMessenger{}
	svc := newTestService(t, repo, msg, &stubResolver{chatID: sourceChat})

	orderID := submitOrder(t, svc, repo)
	src := sourceMirror(t, repo, orderID)

	if _, err := svc.Complete(context.Background(), src.ChatID, src.MessageID, workerID); err != nil {
		t.Fatalf("Complete error: %v", err)
	}

	notice, err := svc.RecordPriceQuote(context.Background(), src.ChatID, src.MessageID, 25000)
	if err != nil {
		t.Fatalf("RecordPriceQuote error: %v", err)
	}
	if notice != terminalNotice(model.OrderStatusCompleted) {
		t.Errorf("notice = %q, want terminal-state message", notice)
	}

	order, _ := repo.GetOrder(context.Background(), orderID)
	if order.Total != 21600 {
		t.Errorf("total = %d, want unchanged 21600", order.Total)
	}
}
