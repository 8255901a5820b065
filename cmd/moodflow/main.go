// Command moodflow runs the MoodFlow web application.
package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"

	"github.com/justestif/go-moodflow/internal/config"
	"github.com/justestif/go-moodflow/internal/db"
	"github.com/justestif/go-moodflow/internal/llm"
	"github.com/justestif/go-moodflow/internal/logging"
	"github.com/justestif/go-moodflow/internal/mood"
	"github.com/justestif/go-moodflow/internal/pipeline"
	"github.com/justestif/go-moodflow/internal/qloo"
	"github.com/justestif/go-moodflow/internal/summary"
	"github.com/justestif/go-moodflow/internal/web"
	webfs "github.com/justestif/go-moodflow/web"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logging.Init(logging.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})

	completer := llm.NewClient(llm.Config{
		APIKey:  cfg.OpenAI.APIKey,
		BaseURL: cfg.OpenAI.BaseURL,
		Model:   cfg.OpenAI.Model,
		Timeout: cfg.OpenAI.Timeout,
	})
	fetcher := qloo.NewClient(qloo.Config{
		APIKey:  cfg.Qloo.APIKey,
		BaseURL: cfg.Qloo.BaseURL,
		Timeout: cfg.Qloo.Timeout,
		Limit:   cfg.Qloo.Limit,
	})

	runner := pipeline.New(
		mood.NewInterpreter(completer),
		fetcher,
		summary.NewGenerator(completer),
		pipeline.WithFetchDelay(cfg.Server.FetchDelay),
		pipeline.WithProgress(func(state pipeline.State, done, total int) {
			logging.Debug().Stringer("state", state).Int("done", done).Int("total", total).Msg("Submission progress")
		}),
	)

	// Sessions live in memory unless a database is configured
	var sessions web.SessionManager
	var health web.HealthFunc
	if cfg.Database.URL != "" {
		ctx := context.Background()
		database, err := db.New(ctx, cfg.Database.URL)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		defer database.Close()

		if err := database.EnsureSchema(ctx); err != nil {
			return err
		}
		sessions = web.NewDBSessionStore(database)
		health = database.Ping
		logging.Info().Msg("Using PostgreSQL session store")
	}

	// Create sub-filesystems for templates and static files
	templates, err := fs.Sub(webfs.TemplatesFS, "templates")
	if err != nil {
		return fmt.Errorf("creating templates filesystem: %w", err)
	}

	static, err := fs.Sub(webfs.StaticFS, "static")
	if err != nil {
		return fmt.Errorf("creating static filesystem: %w", err)
	}

	server, err := web.NewServer(web.ServerConfig{
		Addr:         cfg.Server.Addr,
		RateLimit:    cfg.Server.RateLimit,
		WriteTimeout: cfg.Server.WriteTimeout,
		TemplatesFS:  templates,
		StaticFS:     static,
		Runner:       runner,
		Sessions:     sessions,
		Health:       health,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	logging.Info().
		Str("model", completer.Model()).
		Dur("fetch_delay", cfg.Server.FetchDelay).
		Msg("MoodFlow configured")

	return server.Run()
}
