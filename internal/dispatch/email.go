// internal/dispatch/email.go
package dispatch

import (
	"context"

	"github.com/vendaflow/automation-service/internal/model"
	"github.com/vendaflow/automation-service/internal/provider"
)

// MailSender is the outbound seam to the mail provider.
type MailSender interface {
	Send(ctx context.Context, msg provider.MailMessage) (string, error)
}

type EmailDispatcher struct {
	Client MailSender
}

func (d *EmailDispatcher) Channel() model.Channel {
	return model.ChannelEmail
}

func (d *EmailDispatcher) Recipient(contact *model.Contact) string {
	if contact == nil {
		return ""
	}
	return contact.Email
}

func (d *EmailDispatcher) Dispatch(ctx context.Context, req Request) Result {
	if req.Recipient == "" {
		return Result{Error: "no email address"}
	}

	externalID, err := d.Client.Send(ctx, provider.MailMessage{
		To:         req.Recipient,
		Subject:    req.Subject,
		Body:       req.Content,
		TemplateID: req.ProviderTemplateID,
		Variables:  req.Variables,
	})
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, ExternalID: externalID}
}
