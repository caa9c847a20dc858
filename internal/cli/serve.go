// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jeranaias/colossus/internal/chat"
	"github.com/jeranaias/colossus/internal/model"
	"github.com/jeranaias/colossus/internal/server"
)

var serveFlags struct {
	addr string
	rpm  int
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the chat API over HTTP",
	Long: `Serve the chat API over HTTP with server-sent event streaming.

Set server.token in the config (or COLOSSUS_SERVER_TOKEN) to require a
bearer token on /v1 routes. Persona file edits apply to the next request.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveFlags.addr, "addr", "", "Listen address (default from config)")
	serveCmd.Flags().IntVar(&serveFlags.rpm, "rate-limit", 0, "Requests per minute per client (negative disables)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	app, err := setup()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, stop := signalContext()
	defer stop()

	go watchPersonas(ctx, app, func(personas []model.Persona) {
		app.Log.Info().Int("count", len(personas)).Msg("Personas reloaded")
	})

	addr := app.Config.Server.Addr
	if serveFlags.addr != "" {
		addr = serveFlags.addr
	}
	if err := app.Policy.CheckListen(addr); err != nil {
		return err
	}

	srv := server.New(server.Config{
		Addr:              addr,
		Token:             app.Config.Server.Token,
		RequestsPerMinute: serveFlags.rpm,
		Version:           Version,
		Logger:            app.Log,
	}, server.Deps{
		NewChat:  func() *chat.Context { return app.NewChat("") },
		Store:    app.Store,
		Stats:    app.Stats,
		Personas: func() []model.Persona { return app.Personas() },
		Models:   app.Listers,
	})

	fmt.Fprintf(cmd.ErrOrStderr(), "%s Listening on http://%s %s\n",
		SuccessStyle.Render("[OK]"), srv.Addr(), app.Policy.Badge())
	if app.Config.Server.Token == "" {
		fmt.Fprintln(cmd.ErrOrStderr(), WarningStyle.Render("No server.token set: the API is unauthenticated"))
	}
	return srv.ListenAndServe(ctx)
}
