// internal/rabbit/rabbit.go
package rabbit

import (
	"encoding/json"
	"fmt"

	"github.com/streadway/amqp"
)

const (
	// RunsQueue carries on-demand run triggers from the API to the worker.
	RunsQueue = "automation_runs"
	// ResultsQueue carries batch summaries back for the dashboard.
	ResultsQueue = "automation_results"
)

// RunRequest asks the worker for one processor run. Zero values fall back
// to the worker's configured defaults.
type RunRequest struct {
	MaxBatchSize int `json:"max_batch_size,omitempty"`
	MaxRetries   int `json:"max_retries,omitempty"`
}

type Client struct {
	conn *amqp.Connection
	ch   *amqp.Channel
}

// Dial connects to RabbitMQ and declares the automation queues.
func Dial(url string) (*Client, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("connect to rabbitmq: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open channel: %w", err)
	}

	for _, name := range []string{RunsQueue, ResultsQueue} {
		if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
			ch.Close()
			conn.Close()
			return nil, fmt.Errorf("declare queue %s: %w", name, err)
		}
	}

	return &Client{conn: conn, ch: ch}, nil
}

func (c *Client) Close() {
	c.ch.Close()
	c.conn.Close()
}

// PublishRunRequest enqueues a run trigger for the worker.
func (c *Client) PublishRunRequest(req RunRequest) error {
	return c.publish(RunsQueue, req)
}

// PublishResult enqueues a batch summary for dashboard consumers.
func (c *Client) PublishResult(result any) error {
	return c.publish(ResultsQueue, result)
}

func (c *Client) publish(queue string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.ch.Publish("", queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
	})
}

// ConsumeRunRequests delivers run triggers; callers ack each delivery.
func (c *Client) ConsumeRunRequests() (<-chan amqp.Delivery, error) {
	return c.ch.Consume(RunsQueue, "", false, false, false, false, nil)
}
