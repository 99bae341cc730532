package usecase

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/shopspring/decimal"
)

type memDrafts struct {
	mu sync.Mutex
	m  map[string]domain.OrderDraft
}

func newMemDrafts() *memDrafts { return &memDrafts{m: map[string]domain.OrderDraft{}} }

func (s *memDrafts) Save(_ context.Context, d domain.OrderDraft) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[d.Reference] = d
	return nil
}

func (s *memDrafts) Get(_ context.Context, ref string) (domain.OrderDraft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.m[ref]
	return d, ok, nil
}

func (s *memDrafts) Take(_ context.Context, ref string) (domain.OrderDraft, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.m[ref]
	delete(s.m, ref)
	return d, ok, nil
}

func (s *memDrafts) Delete(_ context.Context, ref string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.m, ref)
	return nil
}

type memSessions struct {
	mu sync.Mutex
	m  map[string]domain.CheckoutSession
}

func newMemSessions() *memSessions { return &memSessions{m: map[string]domain.CheckoutSession{}} }

func (s *memSessions) Get(_ context.Context, ref string) (domain.CheckoutSession, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.m[ref]
	return v, ok, nil
}

func (s *memSessions) Put(_ context.Context, v domain.CheckoutSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[v.Reference] = v
	return nil
}

type memIdem struct {
	mu     sync.Mutex
	locks  map[string]bool
	values map[string]string
}

func newMemIdem() *memIdem { return &memIdem{locks: map[string]bool{}, values: map[string]string{}} }

func (s *memIdem) TryLock(_ context.Context, scope, key string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.locks[scope+":"+key] {
		return false, nil
	}
	s.locks[scope+":"+key] = true
	return true, nil
}

func (s *memIdem) Unlock(_ context.Context, scope, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.locks, scope+":"+key)
	return nil
}

func (s *memIdem) Remember(_ context.Context, scope, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[scope+":"+key] = value
	return nil
}

func (s *memIdem) Recall(_ context.Context, scope, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[scope+":"+key]
	return v, ok, nil
}

type fakeGateway struct {
	calls  []domain.PaymentRequest
	err    error
	before func(domain.PaymentRequest)
}

func (g *fakeGateway) RequestPayment(_ context.Context, req domain.PaymentRequest) (domain.PaymentResult, error) {
	g.calls = append(g.calls, req)
	if g.before != nil {
		g.before(req)
	}
	if g.err != nil {
		return domain.PaymentResult{}, g.err
	}
	return domain.PaymentResult{
		Success:       true,
		CheckoutURL:   "https://checkout.example/l/link_" + req.Reference,
		PaymentLinkID: "link_" + req.Reference,
	}, nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	calls    []domain.OrderDraft
	attached []*AttachmentContent
	fail     bool
	before   func()
}

func (n *fakeNotifier) Notify(ctx context.Context, d domain.OrderDraft, att *AttachmentContent) NotifyResult {
	if n.before != nil {
		n.before()
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, d)
	n.attached = append(n.attached, att)
	if err := ctx.Err(); err != nil {
		return NotifyResult{Error: err.Error()}
	}
	if n.fail {
		return NotifyResult{Error: "smtp down"}
	}
	return NotifyResult{Success: true, MessageID: "msg-1"}
}

type memBlobs struct {
	mu sync.Mutex
	m  map[string][]byte
}

func newMemBlobs() *memBlobs { return &memBlobs{m: map[string][]byte{}} }

func (b *memBlobs) Put(_ context.Context, key, _ string, r io.Reader) (string, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.m[key] = buf.Bytes()
	return key, nil
}

func (b *memBlobs) Get(_ context.Context, path string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.m[path]
	if !ok {
		return nil, errors.New("no such blob")
	}
	return v, nil
}

func (b *memBlobs) Delete(_ context.Context, path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.m, path)
	return nil
}

type memIndex struct {
	mu sync.Mutex
	m  map[string]domain.Attachment
}

func newMemIndex() *memIndex { return &memIndex{m: map[string]domain.Attachment{}} }

func (x *memIndex) Put(_ context.Context, a domain.Attachment) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	x.m[a.Reference] = a
	return nil
}

func (x *memIndex) Get(_ context.Context, ref string) (domain.Attachment, bool, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	a, ok := x.m[ref]
	return a, ok, nil
}

func (x *memIndex) Delete(_ context.Context, ref string) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	delete(x.m, ref)
	return nil
}

type memLedger struct {
	mu   sync.Mutex
	rows map[string]OrderRecord
}

func newMemLedger() *memLedger { return &memLedger{rows: map[string]OrderRecord{}} }

func (l *memLedger) RecordConfirmation(ctx context.Context, rec *OrderRecord) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if prev, ok := l.rows[rec.Reference]; ok {
		rec.PaymentStatus = prev.PaymentStatus
	}
	l.rows[rec.Reference] = *rec
	return nil
}

func (l *memLedger) GetByReference(_ context.Context, ref string) (*OrderRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[ref]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (l *memLedger) ListFailedNotifications(_ context.Context, limit int) ([]OrderRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []OrderRecord
	for _, r := range l.rows {
		if r.NotificationStatus == NotificationFailed && len(out) < limit {
			out = append(out, r)
		}
	}
	return out, nil
}

func (l *memLedger) UpdateNotification(_ context.Context, ref, status, messageID, errMsg string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[ref]
	if !ok {
		return ErrNotFound
	}
	r.NotificationStatus, r.MessageID, r.NotificationError = status, messageID, errMsg
	l.rows[ref] = r
	return nil
}

func (l *memLedger) UpdatePaymentStatusIf(_ context.Context, ref, from, to string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.rows[ref]
	if !ok || r.PaymentStatus != from {
		return false, nil
	}
	r.PaymentStatus = to
	l.rows[ref] = r
	return true, nil
}

func (l *memLedger) InsertPaymentStatus(_ context.Context, ref, status string, cents int64, currency string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.rows[ref]; ok {
		return nil
	}
	l.rows[ref] = OrderRecord{Reference: ref, PaymentStatus: status, NotificationStatus: NotificationPending, AmountCents: cents, Currency: currency}
	return nil
}

type memBroadcaster struct {
	mu  sync.Mutex
	out []domain.Outcome
}

func (b *memBroadcaster) Publish(_ context.Context, o domain.Outcome) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.out = append(b.out, o)
	return nil
}

func (b *memBroadcaster) Subscribe(context.Context, string) (<-chan domain.Outcome, func(), error) {
	ch := make(chan domain.Outcome)
	return ch, func() { close(ch) }, nil
}

type fakeCatalog map[string]decimal.Decimal

func (c fakeCatalog) UnitPrice(_ context.Context, id, ink string) (decimal.Decimal, bool, error) {
	p, ok := c[id+"/"+ink]
	return p, ok, nil
}

type fakeCommands struct {
	sent []NotificationResendMsg
}

func (f *fakeCommands) PublishResend(_ context.Context, msg NotificationResendMsg) error {
	f.sent = append(f.sent, msg)
	return nil
}

func timeAtMillis(ms int64) time.Time { return time.UnixMilli(ms) }
