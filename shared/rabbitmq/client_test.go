package rabbitmq

import (
	"context"
	"log/slog"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfig_URL(t *testing.T) {
	tests := []struct {
		name      string
		config    Config
		wantVHost string
	}{
		{
			name:      "default vhost",
			config:    Config{Host: "broker", Port: 5672, User: "runner", Password: "secret"},
			wantVHost: "/",
		},
		{
			name:      "named vhost and escaped password",
			config:    Config{Host: "broker.internal", Port: 5673, User: "runner", Password: "p@ss:word", VHost: "staging"},
			wantVHost: "staging",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			uri, err := amqp.ParseURI(tt.config.URL())
			require.NoError(t, err)

			assert.Equal(t, tt.config.Host, uri.Host)
			assert.Equal(t, tt.config.Port, uri.Port)
			assert.Equal(t, tt.config.User, uri.Username)
			assert.Equal(t, tt.config.Password, uri.Password)
			assert.Equal(t, tt.wantVHost, uri.Vhost)
		})
	}
}

func TestClient_Disconnected(t *testing.T) {
	c := &Client{config: &Config{QueueName: "issue_events"}, logger: slog.Default()}
	ctx := context.Background()

	assert.False(t, c.IsConnected())
	assert.Error(t, c.HealthCheck(ctx))
	assert.Error(t, c.Publish(ctx, Message{Body: []byte(`{}`)}))
	assert.Error(t, c.PublishWithRetry(ctx, Message{Body: []byte(`{}`)}))

	_, err := c.Consume("ingest-test")
	assert.Error(t, err)
}

func TestClient_WatchClose(t *testing.T) {
	c := &Client{config: &Config{}, logger: slog.Default()}
	c.setConnected(true)

	ch := make(chan *amqp.Error, 1)
	ch <- &amqp.Error{Code: amqp.ConnectionForced, Reason: "broker shutdown"}
	c.watchClose(ch)

	assert.False(t, c.connected())
}
