package mail

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/Wilyos/sistemas-box/internal/adapter/observ"
	domain "github.com/Wilyos/sistemas-box/internal/entity"
	"github.com/Wilyos/sistemas-box/internal/logging"
	"github.com/Wilyos/sistemas-box/internal/usecase"
	"github.com/sendgrid/rest"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Sender is the part of the SendGrid client the notifier needs.
type Sender interface {
	SendWithContext(ctx context.Context, email *sgmail.SGMailV3) (*rest.Response, error)
}

type Config struct {
	APIKey    string
	From      string
	FromName  string
	Recipient string
	Currency  string
}

// SendGridNotifier emails the store owner once per confirmed order.
type SendGridNotifier struct {
	sender Sender
	cfg    Config
	now    func() time.Time
}

func NewSendGridNotifier(cfg Config, sender Sender) *SendGridNotifier {
	if sender == nil {
		sender = sendgrid.NewSendClient(cfg.APIKey)
	}
	return &SendGridNotifier{sender: sender, cfg: cfg, now: time.Now}
}

func (n *SendGridNotifier) Notify(ctx context.Context, d domain.OrderDraft, att *usecase.AttachmentContent) usecase.NotifyResult {
	l := logging.FromCtx(ctx).With("reference", d.Reference)

	res := n.send(ctx, d, att)
	if res.Success {
		observ.Notifications.WithLabelValues("email", "sent").Inc()
		l.Info("order email sent", "message_id", res.MessageID, "attachment", att != nil)
	} else {
		observ.Notifications.WithLabelValues("email", "failed").Inc()
		l.Error("order email failed", "err", res.Error)
	}
	return res
}

func (n *SendGridNotifier) send(ctx context.Context, d domain.OrderDraft, att *usecase.AttachmentContent) usecase.NotifyResult {
	if n.cfg.Recipient == "" {
		return usecase.NotifyResult{Error: "no notification recipient configured"}
	}

	html, err := renderOrder(d, n.cfg.Currency, att != nil, n.now())
	if err != nil {
		return usecase.NotifyResult{Error: fmt.Sprintf("render email: %v", err)}
	}

	from := sgmail.NewEmail(n.cfg.FromName, n.cfg.From)
	to := sgmail.NewEmail("", n.cfg.Recipient)
	subject := "New confirmed order - " + d.Reference
	msg := sgmail.NewSingleEmail(from, subject, to, plainOrder(d, n.cfg.Currency), html)

	if att != nil && len(att.Data) > 0 {
		a := sgmail.NewAttachment()
		a.SetContent(base64.StdEncoding.EncodeToString(att.Data))
		a.SetType(att.MimeType)
		a.SetFilename(att.OriginalName)
		a.SetDisposition("attachment")
		msg.AddAttachment(a)
	}

	resp, err := n.sender.SendWithContext(ctx, msg)
	if err != nil {
		return usecase.NotifyResult{Error: err.Error()}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return usecase.NotifyResult{Error: fmt.Sprintf("sendgrid status %d: %s", resp.StatusCode, resp.Body)}
	}
	return usecase.NotifyResult{Success: true, MessageID: messageID(resp)}
}

func messageID(resp *rest.Response) string {
	for _, k := range []string{"X-Message-Id", "X-Message-ID"} {
		if v := resp.Headers[k]; len(v) > 0 {
			return v[0]
		}
	}
	return ""
}

var _ usecase.Notifier = (*SendGridNotifier)(nil)
