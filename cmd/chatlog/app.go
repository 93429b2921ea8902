package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/chatlog-dashboard/internal/auth"
	"github.com/chatlog-dashboard/internal/config"
	"github.com/chatlog-dashboard/internal/conversation"
	"github.com/chatlog-dashboard/internal/logging"
	"github.com/chatlog-dashboard/internal/models"
	"github.com/chatlog-dashboard/internal/storage"
	"github.com/rs/zerolog"
)

// app holds the services shared by the commands
type app struct {
	cfg           models.AppConfig
	logger        zerolog.Logger
	auth          *auth.Service
	conversations *conversation.Service
	guard         *auth.Guard
}

func (a *app) ready() bool {
	return a.auth != nil && a.conversations != nil && a.guard != nil
}

// setup loads the configuration and builds the services
func (a *app) setup() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// Logs go to stderr so stdout stays valid JSON
	logger := logging.NewWithWriter(os.Stderr, cfg.LogLevel, cfg.Environment)

	storageClient, err := storage.NewClient(cfg.Chat.URL, cfg.Chat.Key, cfg.ChatTable, cfg.SupabaseTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to create storage client: %w", err)
	}

	a.cfg = cfg
	a.logger = logger
	a.auth = auth.NewService(
		auth.NewGoTrueBackend(cfg.Auth.URL, cfg.Auth.Key),
		auth.NewFileSessionStore(cfg.SessionFile),
		logger,
	)
	a.conversations = conversation.NewService(storageClient, logger)
	a.guard = auth.NewGuard(cfg)
	return nil
}

// userFilter resolves the user id for data commands. An explicit user wins,
// otherwise the signed-in user is used unless all is set.
func (a *app) userFilter(ctx context.Context, user string, all bool) (string, error) {
	if user != "" || all {
		return user, nil
	}

	session, err := a.auth.GetSession(ctx)
	if err != nil {
		return "", err
	}
	if session == nil {
		return "", errors.New("not signed in: run `chatlog signin`, pass --user or --all")
	}
	return session.User.ID, nil
}

func (a *app) timeoutContext() (context.Context, context.CancelFunc) {
	timeout := time.Duration(a.cfg.SupabaseTimeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(context.Background(), 2*timeout)
}

func printJSON(out io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode output: %w", err)
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}
