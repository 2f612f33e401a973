package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"Fanvault/internal/auth"
	"Fanvault/internal/client/api"
	"Fanvault/internal/client/broadcast"
	"Fanvault/internal/client/mirror"
	"Fanvault/internal/client/viewstate"
	"Fanvault/internal/config"
)

// NewRootCmd creates the fanview command tree
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "fanview",
		Short:         "Fanvault client view",
		Long:          "fanview opens a client view of Fanvault posts that stays in step with every other view of the same profile.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.PersistentFlags().String("server", envOr("FANVAULT_SERVER", "http://localhost:8080"), "appview base URL")
	cmd.PersistentFlags().String("token", os.Getenv("FANVAULT_TOKEN"), "session bearer token")
	cmd.PersistentFlags().String("profile", os.Getenv("FANVAULT_PROFILE"), "profile directory shared by views (default: user config dir)")
	cmd.PersistentFlags().Duration("timeout", api.DefaultTimeout, "per-request timeout")
	cmd.PersistentFlags().Bool("verbose", false, "debug logging")

	cmd.AddCommand(
		NewWatchCmd(),
		NewLikeCmd(),
	)
	return cmd
}

// session is everything one fanview process opens
type session struct {
	view    *viewstate.View
	bus     *broadcast.Bus
	channel *broadcast.FileChannel
	mirror  *mirror.Mirror
	logger  *slog.Logger
	actorID string
}

func openSession(ctx context.Context, cmd *cobra.Command, onChange func(viewstate.Change)) (*session, error) {
	server, _ := cmd.Flags().GetString("server")
	token, _ := cmd.Flags().GetString("token")
	profile, _ := cmd.Flags().GetString("profile")
	timeout, _ := cmd.Flags().GetDuration("timeout")
	verbose, _ := cmd.Flags().GetBool("verbose")

	level := "warn"
	if verbose {
		level = "debug"
	}
	logger := config.NewLoggerWithWriter(config.Logging{Level: level, Format: "text"}, cmd.ErrOrStderr())

	client := api.NewClient(server, token, api.WithTimeout(timeout))

	// An anonymous view still renders; intents fail before any local change
	var actorID string
	if client.HasSession() {
		sub, err := auth.UnverifiedSubject(token)
		if err != nil {
			return nil, fmt.Errorf("invalid session token: %w", err)
		}
		actorID = sub
	}

	if profile == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("no profile directory: %w", err)
		}
		profile = filepath.Join(dir, "fanvault", "default")
	}

	channel, err := broadcast.NewFileChannel(profile, broadcast.WithFileLogger(logger))
	if err != nil {
		return nil, err
	}
	bus := broadcast.NewBus(channel, logger)
	if err := bus.Start(ctx); err != nil {
		return nil, err
	}
	logger.Debug("view bus started", "origin", bus.Origin(), "profile", profile)

	m, err := mirror.Open(filepath.Join(profile, "mirror.db"))
	if err != nil {
		return nil, err
	}

	view := viewstate.NewView(viewstate.ViewConfig{
		ActorID:  actorID,
		Client:   client,
		Bus:      bus,
		Mirror:   m,
		Logger:   logger,
		OnChange: onChange,
	})

	return &session{
		view:    view,
		bus:     bus,
		channel: channel,
		mirror:  m,
		logger:  logger,
		actorID: actorID,
	}, nil
}

func (s *session) Close() {
	s.view.Close()
	_ = s.channel.Close()
	if _, err := s.mirror.Purge(context.Background()); err != nil {
		s.logger.Debug("mirror purge failed", "error", err)
	}
	_ = s.mirror.Close()
}

// describeError turns an intent failure into the notice shown to the user
func describeError(err error) string {
	switch {
	case errors.Is(err, viewstate.ErrNotAuthenticated), errors.Is(err, api.ErrUnauthorized):
		return "Sign in to like posts."
	case errors.Is(err, api.ErrTargetNotFound):
		return "That post is no longer available."
	case viewstate.IsRetryable(err):
		return "Couldn't reach Fanvault. Try again."
	default:
		return err.Error()
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
