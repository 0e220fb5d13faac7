package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Additional-Code/erpsync/internal/config"
	"github.com/Additional-Code/erpsync/internal/messaging"
)

type scriptedClient struct {
	messages []messaging.Message

	mu      sync.Mutex
	results []error
	once    sync.Once
}

func (c *scriptedClient) Publish(context.Context, []byte, []byte) error { return nil }

func (c *scriptedClient) PublishTo(context.Context, string, []byte, []byte) error { return nil }

func (c *scriptedClient) Topic() string { return "orders.events" }

func (c *scriptedClient) Consume(ctx context.Context, handler messaging.Handler) error {
	c.once.Do(func() {
		for _, msg := range c.messages {
			err := handler(ctx, msg)
			c.mu.Lock()
			c.results = append(c.results, err)
			c.mu.Unlock()
		}
	})
	<-ctx.Done()
	return ctx.Err()
}

func (c *scriptedClient) handled() []error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]error(nil), c.results...)
}

func enabledConfig() config.Config {
	var cfg config.Config
	cfg.Messaging.Enabled = true
	cfg.Messaging.Workers.Enabled = true
	cfg.Messaging.Workers.Concurrency = 2
	return cfg
}

func TestEngine_DispatchesByTopic(t *testing.T) {
	var (
		mu  sync.Mutex
		got []string
	)
	client := &scriptedClient{messages: []messaging.Message{
		{Topic: "orders.events", Value: []byte("a")},
		{Topic: "unknown", Value: []byte("b")},
		{Topic: "orders.events", Value: []byte("boom")},
	}}

	engine := NewEngine(Params{
		Client: client,
		Config: enabledConfig(),
		Registrations: []HandlerRegistration{
			{Topic: "orders.events", Handler: func(_ context.Context, msg messaging.Message) error {
				if string(msg.Value) == "boom" {
					panic("handler exploded")
				}
				mu.Lock()
				got = append(got, string(msg.Value))
				mu.Unlock()
				return nil
			}},
			{Topic: "", Handler: func(context.Context, messaging.Message) error { return nil }},
		},
	})
	require.Len(t, engine.registrations, 1)

	require.NoError(t, engine.start(context.Background()))
	require.Eventually(t, func() bool { return len(client.handled()) == 3 }, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, engine.stop(stopCtx))

	results := client.handled()
	assert.NoError(t, results[0])
	assert.NoError(t, results[1], "unknown topics are acknowledged")
	assert.Error(t, results[2])
	assert.Equal(t, []string{"a"}, got)
}

func TestEngine_DisabledDoesNotConsume(t *testing.T) {
	cfg := enabledConfig()
	cfg.Messaging.Workers.Enabled = false
	client := &scriptedClient{messages: []messaging.Message{{Topic: "orders.events"}}}

	engine := NewEngine(Params{
		Client: client,
		Config: cfg,
		Registrations: []HandlerRegistration{
			{Topic: "orders.events", Handler: func(context.Context, messaging.Message) error {
				return errors.New("must not run")
			}},
		},
	})
	require.NoError(t, engine.start(context.Background()))
	require.NoError(t, engine.stop(context.Background()))
	assert.Empty(t, client.handled())
}
