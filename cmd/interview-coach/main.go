package main

import (
	"context"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	_ "go.uber.org/automaxprocs"

	"github.com/sjawhar/interview-coach/internal/config"
	"github.com/sjawhar/interview-coach/internal/feedback"
	"github.com/sjawhar/interview-coach/internal/gdrive"
	"github.com/sjawhar/interview-coach/internal/llm"
	"github.com/sjawhar/interview-coach/internal/notify"
	"github.com/sjawhar/interview-coach/internal/questions"
	"github.com/sjawhar/interview-coach/internal/server"
	"github.com/sjawhar/interview-coach/internal/session"
	"github.com/sjawhar/interview-coach/internal/storage"
)

func main() {
	log.Println("interview-coach: starting")

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: load .env: %v", err)
	}

	configPath := flag.String("config", envOrDefault(config.EnvPrefix+"CONFIG", "config.yaml"), "path to YAML config")
	flag.Parse()

	cfg, warnings, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("config load failed: %v", err)
	}
	for _, w := range warnings {
		log.Printf("warning: %s", w)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(ctx, cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		log.Fatalf("storage init failed: %v", err)
	}
	defer func() { _ = store.Close() }()

	client, err := newLLMClient(cfg)
	if err != nil {
		log.Fatalf("llm client init failed: %v", err)
	}

	hub := server.NewHub()
	guard := feedback.NewGuard()

	var uploader feedback.Uploader
	var backup *gdrive.Backup
	if cfg.GDriveEnabled() {
		syncer, syncErr := gdrive.NewSyncer(ctx, cfg.GDrive.CredentialsFile, cfg.GDrive.FolderID)
		if syncErr != nil {
			log.Printf("warning: gdrive export disabled: %v", syncErr)
		} else {
			uploader = syncer
			backup = startBackup(cfg, store, syncer)
		}
	}

	notifiers := []feedback.Notifier{
		hub,
		feedback.NewReportNotifier(store, storage.NewWriter(cfg.ReportDir), uploader),
	}
	if cfg.SlackWebhookURL != "" {
		notifiers = append(notifiers, notify.NewSlack(cfg.SlackWebhookURL))
	}

	pipeline := feedback.NewPipeline(client, store, notifiers...)
	generator := questions.NewGenerator(client, store)

	controller := session.NewController(
		session.Options{AssistantID: cfg.Session.AssistantID, WorkflowID: cfg.Session.WorkflowID},
		transportFactory(cfg, hub),
		pipeline,
		store,
		guard,
		hub,
	)

	var static fs.FS
	if cfg.StaticDir != "" {
		static = os.DirFS(cfg.StaticDir)
	}

	handler, err := server.Handler(server.Deps{
		Hub:       hub,
		Store:     store,
		Feedback:  pipeline,
		Generator: generator,
		Sessions:  controller,
		Guard:     guard,
		Limiter:   server.NewRateLimiter(cfg.RateLimit.PerMinute),
		Warnings:  func() []string { return warnings },
		Static:    static,
	})
	if err != nil {
		log.Fatalf("build http handler failed: %v", err)
	}

	httpServer := &http.Server{Addr: cfg.ListenAddr, Handler: handler}
	go func() {
		if err := server.Serve(httpServer); err != nil {
			log.Printf("http server error: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	log.Println("interview-coach: shutting down")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("warning: http shutdown failed: %v", err)
	}
	controller.Close()
	if backup != nil {
		backup.Stop()
	}
}

func newLLMClient(cfg config.Config) (llm.Client, error) {
	provider, model, err := llm.ParseModel(cfg.LLM.Model)
	if err != nil {
		return nil, err
	}
	var opts []llm.Option
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	return llm.NewClient(provider, cfg.LLMAPIKey, model, opts...)
}

// transportFactory picks the session transport. Interview generation always
// goes through the browser relay since it needs the voice agent workflow.
func transportFactory(cfg config.Config, hub *server.Hub) session.TransportFactory {
	return func(sessionID, userID string, mode session.Mode) (session.Transport, error) {
		if cfg.Session.Transport == config.TransportDeepgram && mode == session.ModeInterview {
			if cfg.DeepgramAPIKey == "" {
				return nil, fmt.Errorf("deepgram transport requires %sDEEPGRAM_API_KEY", config.EnvPrefix)
			}
			return session.NewDeepgramTransport(session.DeepgramOptions{
				APIKey:      cfg.DeepgramAPIKey,
				Model:       cfg.Deepgram.Model,
				Language:    cfg.Deepgram.Language,
				SampleRate:  cfg.Deepgram.SampleRate,
				IdleTimeout: cfg.ParsedIdleTimeout(),
				RecordDir:   cfg.Deepgram.RecordDir,
				SessionID:   sessionID,
			}), nil
		}
		return session.NewRelayTransport(sessionID, userID, hub), nil
	}
}

type sqliteSnapshotter interface {
	gdrive.Snapshotter
	Path() string
}

// backupDir places local snapshots next to the database file the store
// actually opened.
func backupDir(store sqliteSnapshotter) string {
	return filepath.Join(filepath.Dir(store.Path()), "backups")
}

func startBackup(cfg config.Config, store storage.Store, syncer *gdrive.Syncer) *gdrive.Backup {
	if cfg.GDrive.BackupSchedule == "" {
		return nil
	}
	snapshotter, ok := store.(sqliteSnapshotter)
	if !ok {
		log.Printf("warning: database backups are only supported for the sqlite store")
		return nil
	}

	backup := gdrive.NewBackup(snapshotter, syncer, backupDir(snapshotter))
	if err := backup.Start(cfg.GDrive.BackupSchedule); err != nil {
		log.Printf("warning: gdrive backup disabled: %v", err)
		return nil
	}
	log.Printf("gdrive backup scheduled (cron: %s)", cfg.GDrive.BackupSchedule)
	return backup
}

func envOrDefault(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
