// Package broker owns the NATS connection shared by the NATS-backed record
// store, the device gateway source and the snapshot notifier.
package broker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/stepd/internal/config"
	ferrors "git.home.luguber.info/inful/stepd/internal/foundation/errors"
)

// Client wraps a NATS connection and its JetStream context.
type Client struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// Connect dials the broker. Reconnects are unlimited so a broker restart
// does not take the daemon down.
func Connect(cfg config.NATSConfig) (*Client, error) {
	conn, err := nats.Connect(cfg.URL,
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("NATS disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(c *nats.Conn) {
			slog.Info("NATS reconnected", "url", c.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "connect to NATS").
			WithContext("url", cfg.URL).
			Retryable().
			Build()
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, ferrors.WrapError(err, ferrors.CategoryNetwork, "create JetStream context").Build()
	}

	slog.Info("NATS client connected", "url", cfg.URL, "name", cfg.Name)
	return &Client{conn: conn, js: js}, nil
}

// Conn exposes the core connection for plain subscriptions.
func (c *Client) Conn() *nats.Conn { return c.conn }

// KeyValue returns the named bucket, creating it with single-revision
// history when it does not exist yet.
func (c *Client) KeyValue(ctx context.Context, bucket, description string) (jetstream.KeyValue, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	kv, err := c.js.KeyValue(ctx, bucket)
	if err == nil {
		return kv, nil
	}
	if !errors.Is(err, jetstream.ErrBucketNotFound) {
		return nil, fmt.Errorf("lookup KV bucket %s: %w", bucket, err)
	}

	kv, err = c.js.CreateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: description,
		History:     1,
		Storage:     jetstream.FileStorage,
	})
	if err != nil {
		return nil, fmt.Errorf("create KV bucket %s: %w", bucket, err)
	}
	slog.Info("Created KV bucket", "bucket", bucket)
	return kv, nil
}

// PublishJSON marshals v and publishes it on subject with core NATS.
func (c *Client) PublishJSON(subject string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", subject, err)
	}
	if err := c.conn.Publish(subject, data); err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNetwork, "publish").
			WithContext("subject", subject).
			Build()
	}
	return nil
}

// Close drains subscriptions and closes the connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}
	if err := c.conn.Drain(); err != nil {
		c.conn.Close()
		return err
	}
	return nil
}
