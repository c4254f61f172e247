// internal/dispatch/dispatch.go
package dispatch

import (
	"context"

	"github.com/vendaflow/automation-service/internal/model"
)

// Request carries one rendered message to a channel dispatcher.
type Request struct {
	Recipient          string
	Content            string
	Subject            string
	ProviderTemplateID string
	Variables          map[string]string
}

// Result maps the provider response back into the processor's world.
// A failed result with Error set is treated as transient by the retry logic.
type Result struct {
	Success    bool   `json:"success"`
	ExternalID string `json:"external_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Dispatcher hands a rendered message to one channel provider.
type Dispatcher interface {
	Channel() model.Channel
	// Recipient picks the contact field this channel delivers to.
	Recipient(contact *model.Contact) string
	Dispatch(ctx context.Context, req Request) Result
}
