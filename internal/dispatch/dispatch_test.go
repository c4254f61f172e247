package dispatch_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/vendaflow/automation-service/internal/dispatch"
	"github.com/vendaflow/automation-service/internal/model"
	"github.com/vendaflow/automation-service/internal/provider"
)

type fakeChatSender struct {
	lastMsg provider.ChatMessage
	id      string
	err     error
	calls   int
}

func (f *fakeChatSender) Send(_ context.Context, msg provider.ChatMessage) (string, error) {
	f.calls++
	f.lastMsg = msg
	return f.id, f.err
}

type fakeMailSender struct {
	lastMsg provider.MailMessage
	id      string
	err     error
	calls   int
}

func (f *fakeMailSender) Send(_ context.Context, msg provider.MailMessage) (string, error) {
	f.calls++
	f.lastMsg = msg
	return f.id, f.err
}

func TestChatDispatchSuccess(t *testing.T) {
	sender := &fakeChatSender{id: "wamid.123"}
	d := &dispatch.ChatDispatcher{Client: sender}

	res := d.Dispatch(context.Background(), dispatch.Request{
		Recipient:          "5511999990000",
		Content:            "Olá Ana",
		ProviderTemplateID: "tpl-7",
	})

	assert.True(t, res.Success)
	assert.Equal(t, "wamid.123", res.ExternalID)
	assert.Empty(t, res.Error)
	assert.Equal(t, "5511999990000", sender.lastMsg.Phone)
	assert.Equal(t, "tpl-7", sender.lastMsg.TemplateID)
}

func TestChatDispatchEmptyRecipientNeverCallsProvider(t *testing.T) {
	sender := &fakeChatSender{id: "x"}
	d := &dispatch.ChatDispatcher{Client: sender}

	res := d.Dispatch(context.Background(), dispatch.Request{Content: "oi"})

	assert.False(t, res.Success)
	assert.Equal(t, "no phone number", res.Error)
	assert.Zero(t, sender.calls)
}

func TestChatDispatchProviderError(t *testing.T) {
	sender := &fakeChatSender{err: errors.New("provider timeout")}
	d := &dispatch.ChatDispatcher{Client: sender}

	res := d.Dispatch(context.Background(), dispatch.Request{Recipient: "551100", Content: "oi"})

	assert.False(t, res.Success)
	assert.Equal(t, "provider timeout", res.Error)
}

func TestEmailDispatchSuccess(t *testing.T) {
	sender := &fakeMailSender{id: "msg-9"}
	d := &dispatch.EmailDispatcher{Client: sender}

	res := d.Dispatch(context.Background(), dispatch.Request{
		Recipient: "ana@example.com",
		Subject:   "Reunião",
		Content:   "Olá Ana",
	})

	assert.True(t, res.Success)
	assert.Equal(t, "msg-9", res.ExternalID)
	assert.Equal(t, "ana@example.com", sender.lastMsg.To)
	assert.Equal(t, "Reunião", sender.lastMsg.Subject)
}

func TestEmailDispatchEmptyRecipient(t *testing.T) {
	sender := &fakeMailSender{}
	d := &dispatch.EmailDispatcher{Client: sender}

	res := d.Dispatch(context.Background(), dispatch.Request{Content: "oi"})

	assert.False(t, res.Success)
	assert.Equal(t, "no email address", res.Error)
	assert.Zero(t, sender.calls)
}

func TestDispatcherRecipients(t *testing.T) {
	contact := &model.Contact{Phone: "5511", Email: "a@b.c"}
	chat := &dispatch.ChatDispatcher{}
	email := &dispatch.EmailDispatcher{}

	assert.Equal(t, "5511", chat.Recipient(contact))
	assert.Equal(t, "a@b.c", email.Recipient(contact))
	assert.Equal(t, "", chat.Recipient(nil))
	assert.Equal(t, model.ChannelChat, chat.Channel())
	assert.Equal(t, model.ChannelEmail, email.Channel())
}
