package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	supa "github.com/supabase-community/supabase-go"
)

// Client represents a Supabase storage client for the chat history table
type Client struct {
	client   *supa.Client
	table    string
	timeout  time.Duration
	pageSize int
	logger   zerolog.Logger
}

// StoreError is returned when the underlying query reports an error
type StoreError struct {
	Op    string
	Table string
	Err   error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("storage: %s on %s: %v", e.Op, e.Table, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewClient creates a new Supabase client
func NewClient(supabaseURL, supabaseKey, table string, timeout int, logger zerolog.Logger) (*Client, error) {
	client, err := supa.NewClient(supabaseURL, supabaseKey, &supa.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create supabase client: %w", err)
	}

	return &Client{
		client:   client,
		table:    table,
		timeout:  time.Duration(timeout) * time.Second,
		pageSize: DefaultPageSize,
		logger:   logger.With().Str("component", "storage").Str("table", table).Logger(),
	}, nil
}

// Ping checks if the connection to Supabase is working
func (c *Client) Ping(ctx context.Context) error {
	err := c.execute(ctx, "ping", func() error {
		// Simple query to check connection
		_, _, err := c.client.From(c.table).
			Select("id", "exact", false).
			Limit(1, "").
			Execute()
		return err
	})
	if err != nil {
		return fmt.Errorf("supabase ping failed: %w", err)
	}

	c.logger.Debug().Msg("Supabase connection successful")
	return nil
}

// execute runs a single query bounded by the client timeout.
// Failures are returned as *StoreError for the caller to log; there is no retry.
func (c *Client) execute(ctx context.Context, operation string, fn func() error) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return &StoreError{Op: operation, Table: c.table, Err: err}
	}

	// The PostgREST client does not take a context, so the call is raced against it.
	// Its HTTP client has no timeout either: on expiry the call is abandoned and
	// its goroutine exits only when the server answers or drops the connection.
	done := make(chan error, 1)
	go func() {
		done <- fn()
	}()

	var err error
	select {
	case <-ctx.Done():
		err = ctx.Err()
	case err = <-done:
	}

	if err == nil {
		return nil
	}

	c.logger.Debug().
		Err(err).
		Str("operation", operation).
		Msg("Operation failed")

	return &StoreError{Op: operation, Table: c.table, Err: err}
}
