// internal/model/flow.go
package model

import "time"

type Channel string

const (
	ChannelChat  Channel = "chat"
	ChannelEmail Channel = "email"
)

// Flow is an automation sequence. When StageID is set, its steps only fire
// while the deal is still in that pipeline stage.
type Flow struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StageID   *string   `db:"stage_id" json:"stage_id,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Step binds one channel to one template inside a flow.
type Step struct {
	ID         string  `db:"id" json:"id"`
	FlowID     string  `db:"flow_id" json:"flow_id"`
	Position   int     `db:"position" json:"position"`
	Channel    Channel `db:"channel" json:"channel"`
	TemplateID string  `db:"template_id" json:"template_id"`
}

type Template struct {
	ID      string `db:"id" json:"id"`
	Name    string `db:"name" json:"name"`
	Content string `db:"content" json:"content"`
	Subject string `db:"subject" json:"subject,omitempty"`
	// ProviderTemplateID is an opaque identifier passed through to the
	// channel provider, never interpreted here.
	ProviderTemplateID string `db:"provider_template_id" json:"provider_template_id,omitempty"`
}
