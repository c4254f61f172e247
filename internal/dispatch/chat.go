// internal/dispatch/chat.go
package dispatch

import (
	"context"

	"github.com/vendaflow/automation-service/internal/model"
	"github.com/vendaflow/automation-service/internal/provider"
)

// ChatSender is the outbound seam to the chat provider.
type ChatSender interface {
	Send(ctx context.Context, msg provider.ChatMessage) (string, error)
}

type ChatDispatcher struct {
	Client ChatSender
}

func (d *ChatDispatcher) Channel() model.Channel {
	return model.ChannelChat
}

func (d *ChatDispatcher) Recipient(contact *model.Contact) string {
	if contact == nil {
		return ""
	}
	return contact.Phone
}

func (d *ChatDispatcher) Dispatch(ctx context.Context, req Request) Result {
	if req.Recipient == "" {
		return Result{Error: "no phone number"}
	}

	externalID, err := d.Client.Send(ctx, provider.ChatMessage{
		Phone:      req.Recipient,
		Body:       req.Content,
		TemplateID: req.ProviderTemplateID,
		Variables:  req.Variables,
	})
	if err != nil {
		return Result{Error: err.Error()}
	}
	return Result{Success: true, ExternalID: externalID}
}
