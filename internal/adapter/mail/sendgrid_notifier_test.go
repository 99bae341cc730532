package mail

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"
	"time"

	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/sendgrid/rest"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSender struct {
	sent []*sgmail.SGMailV3
	resp *rest.Response
	err  error
}

func (f *fakeSender) SendWithContext(_ context.Context, m *sgmail.SGMailV3) (*rest.Response, error) {
	f.sent = append(f.sent, m)
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func draft() domain.OrderDraft {
	return domain.NewOrderDraft("ORDER-1",
		[]domain.CartLine{
			{ProductID: "a", Name: "Caja A", UnitPrice: decimal.NewFromInt(100), Quantity: 1000, InkType: domain.InkOneColor},
			{ProductID: "b", Name: "Bolsa <B>", UnitPrice: decimal.RequireFromString("0.35"), Quantity: 300, InkType: domain.InkColor},
		},
		domain.Customer{FullName: "Ana Ruiz", Email: "ana@x.co", Phone: "+573000000000", City: "Cali"},
		time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
}

func newNotifier(s *fakeSender) *SendGridNotifier {
	n := NewSendGridNotifier(Config{From: "shop@x.co", FromName: "Shop", Recipient: "owner@x.co", Currency: "COP"}, s)
	n.now = func() time.Time { return time.Date(2026, 3, 1, 10, 5, 0, 0, time.UTC) }
	return n
}

func TestNotify_SendsOneEmailWithAttachment(t *testing.T) {
	s := &fakeSender{resp: &rest.Response{StatusCode: 202, Headers: map[string][]string{"X-Message-Id": {"msg-42"}}}}
	att := &usecase.AttachmentContent{
		Attachment: domain.Attachment{Reference: "ORDER-1", OriginalName: "logo.png", MimeType: "image/png"},
		Data:       []byte("PNGDATA"),
	}

	res := newNotifier(s).Notify(context.Background(), draft(), att)

	require.True(t, res.Success, res.Error)
	assert.Equal(t, "msg-42", res.MessageID)
	require.Len(t, s.sent, 1)

	m := s.sent[0]
	assert.Equal(t, "New confirmed order - ORDER-1", m.Subject)
	require.Len(t, m.Attachments, 1)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("PNGDATA")), m.Attachments[0].Content)
	assert.Equal(t, "logo.png", m.Attachments[0].Filename)

	var html string
	for _, c := range m.Content {
		if c.Type == "text/html" {
			html = c.Value
		}
	}
	assert.Contains(t, html, "ORDER-1")
	assert.Contains(t, html, "Ana Ruiz")
	assert.Contains(t, html, "100,105")
	assert.Contains(t, html, "Bolsa &lt;B&gt;")
	assert.Contains(t, html, "1,000")
}

func TestNotify_ReportsFailures(t *testing.T) {
	s := &fakeSender{err: errors.New("dial tcp: timeout")}
	res := newNotifier(s).Notify(context.Background(), draft(), nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "timeout")
	assert.Len(t, s.sent, 1)

	s = &fakeSender{resp: &rest.Response{StatusCode: 401, Body: `{"errors":[{"message":"bad key"}]}`}}
	res = newNotifier(s).Notify(context.Background(), draft(), nil)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "401")
}

func TestNotify_NoRecipient(t *testing.T) {
	s := &fakeSender{}
	n := NewSendGridNotifier(Config{From: "shop@x.co"}, s)
	res := n.Notify(context.Background(), draft(), nil)
	assert.False(t, res.Success)
	assert.Empty(t, s.sent)
}
