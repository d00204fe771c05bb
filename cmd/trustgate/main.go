package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/crypto/bcrypt"

	"github.com/pavelanni/trustgate/internal/content"
	"github.com/pavelanni/trustgate/internal/handler"
	appI18n "github.com/pavelanni/trustgate/internal/i18n"
	"github.com/pavelanni/trustgate/internal/llm"
	"github.com/pavelanni/trustgate/internal/model"
	"github.com/pavelanni/trustgate/internal/store"
	"github.com/pavelanni/trustgate/internal/study"
	"github.com/pavelanni/trustgate/internal/submit"
	"github.com/pavelanni/trustgate/internal/trial"
)

const (
	sessionTTL    = 24 * time.Hour
	pruneInterval = 10 * time.Minute
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "trustgate",
		Short: "Study server for AI answer trust experiments",
	}

	serve := serveCmd()
	root.AddCommand(serve, exportCmd())

	// Make "serve" the default when no subcommand is given.
	root.RunE = serve.RunE

	// Register serve flags on root so bare `trustgate --addr ...` still works.
	root.Flags().AddFlagSet(serve.Flags())

	return root
}

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP study server",
		RunE:  runServe,
	}
	f := cmd.Flags()
	f.StringP("addr", "a", ":8080", "HTTP listen address")
	f.String("db", "trustgate.db", "SQLite database path")
	f.StringP("content", "c", "", "Study content YAML file (default: embedded questions)")
	f.String("sink-url", "", "Submission sink URL (empty = local mirror only)")
	f.Duration("submit-timeout", submit.DefaultTimeout, "How long a submission waits for the sink")
	f.StringP("mode", "m", "", "Force the interface mode (baseline, paragraph, token, relation); empty = from ?mode=")
	f.String("base-path", "", "URL prefix for sub-path deployments (e.g. /study)")
	f.Bool("secure-cookies", true, "Set Secure flag on cookies")
	f.Bool("live-mode", false, "Ask the LLM for questions without a precomputed response")
	f.String("llm-url", "http://localhost:11434/v1", "OpenAI-compatible API base URL")
	f.String("llm-key", "ollama", "API key for LLM")
	f.String("llm-model", "llama3.2", "LLM model name")
	f.StringP("lang", "l", "en", "UI language")
	f.String("admin-password", "", "Password for /admin/submissions (or set TRUSTGATE_ADMIN_PASSWORD); empty disables it")
	f.String("exit-screening", model.DefaultExitURLs.ScreeningFail, "Redirect URL after failed screening")
	f.String("exit-attention", model.DefaultExitURLs.AttentionFail, "Redirect URL after failed attention checks")
	f.String("exit-comprehension", model.DefaultExitURLs.ComprehensionFail, "Redirect URL after failed comprehension check")
	f.String("exit-complete", model.DefaultExitURLs.Complete, "Redirect URL after completing the study")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export mirrored submissions as JSON",
		RunE:  runExport,
	}
	f := cmd.Flags()
	f.String("db", "trustgate.db", "SQLite database path")
	f.String("kind", "", "Only export rows of this kind (trial, post_study)")
	f.String("study-id", "", "Study identifier for output")
	f.StringP("output", "o", "-", "Output file path (- for stdout)")
	f.String("log-level", "info", "Log level (debug, info, warn, error)")
	f.String("log-format", "text", "Log format (text, json)")
	return cmd
}

func setupLogging(cmd *cobra.Command) {
	v := viperForCmd(cmd)

	var logLevel slog.Level
	switch strings.ToLower(v.GetString("log-level")) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}
	handlerOpts := &slog.HandlerOptions{Level: logLevel}
	var logHandler slog.Handler
	switch strings.ToLower(v.GetString("log-format")) {
	case "json":
		logHandler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	default:
		logHandler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	slog.SetDefault(slog.New(logHandler))
}

// viperForCmd binds a command's flags and environment to a fresh viper instance.
func viperForCmd(cmd *cobra.Command) *viper.Viper {
	v := viper.New()
	_ = v.BindPFlags(cmd.Flags())

	v.SetEnvPrefix("TRUSTGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	v.SetConfigName("trustgate")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/trustgate")
	v.AddConfigPath("/etc/trustgate")
	v.AddConfigPath("/data")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Warn("error reading config file", "error", err)
		}
	} else {
		slog.Debug("loaded config file", "path", v.ConfigFileUsed())
	}

	return v
}

func runServe(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	studyContent, err := content.Load(v.GetString("content"))
	if err != nil {
		return fmt.Errorf("load content: %w", err)
	}
	slog.Info("loaded study content", "questions", studyContent.Key.Len(), "responses", len(studyContent.Book))

	lang := v.GetString("lang")
	if err := appI18n.Init(lang); err != nil {
		return fmt.Errorf("init i18n: %w", err)
	}

	responder := trial.LiveFallback{Frozen: trial.FrozenResponder{Book: studyContent.Book}}
	liveMode := v.GetBool("live-mode")
	if liveMode {
		llmClient, err := llm.New(v.GetString("llm-url"), v.GetString("llm-key"), v.GetString("llm-model"))
		if err != nil {
			return fmt.Errorf("create LLM client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err = llmClient.Ping(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("LLM health check: %w", err)
		}
		slog.Info("LLM endpoint OK", "url", v.GetString("llm-url"), "model", v.GetString("llm-model"))
		responder.Live = llmClient
	}

	var adminHash string
	if pw := v.GetString("admin-password"); pw != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash admin password: %w", err)
		}
		adminHash = string(hash)
	}

	// Normalize base path.
	basePath := strings.TrimRight(v.GetString("base-path"), "/")
	if basePath != "" && !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}

	var mode model.Mode
	if m := v.GetString("mode"); m != "" {
		if !model.IsValidMode(m) {
			return fmt.Errorf("invalid mode %q", m)
		}
		mode = model.Mode(m)
	}

	cfg := model.StudyConfig{
		Mode:          mode,
		BasePath:      basePath,
		SecureCookies: v.GetBool("secure-cookies"),
		LiveMode:      liveMode,
		Exits: model.ExitURLs{
			ScreeningFail:     v.GetString("exit-screening"),
			AttentionFail:     v.GetString("exit-attention"),
			ComprehensionFail: v.GetString("exit-comprehension"),
			Complete:          v.GetString("exit-complete"),
		},
		AdminPasswordHash: adminHash,
	}

	gateway := submit.New(v.GetString("sink-url"), v.GetDuration("submit-timeout"), db)
	registry := study.NewRegistry()
	deps := study.Deps{
		Key:       studyContent.Key,
		Responder: responder,
		Sender:    gateway,
		Exits:     cfg.Exits,
	}

	h, err := handler.New(db, registry, deps, cfg)
	if err != nil {
		return fmt.Errorf("create handler: %w", err)
	}

	go pruneSessions(registry)

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(appI18n.Middleware(lang))

	if basePath != "" {
		r.Route(basePath, func(sub chi.Router) {
			sub.Use(h.BasePathMiddleware)
			h.Routes(sub)
		})
		r.Get(basePath, func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, basePath+"/", http.StatusMovedPermanently)
		})
	} else {
		r.Use(h.BasePathMiddleware)
		h.Routes(r)
	}

	addr := v.GetString("addr")
	slog.Info("starting server",
		"addr", addr,
		"lang", lang,
		"mode", cfg.Mode,
		"live_mode", cfg.LiveMode,
		"sink_url", v.GetString("sink-url"),
		"base_path", basePath,
		"admin", adminHash != "",
	)
	return http.ListenAndServe(addr, r)
}

// pruneSessions drops abandoned sessions from memory.
func pruneSessions(reg *study.Registry) {
	t := time.NewTicker(pruneInterval)
	defer t.Stop()
	for range t.C {
		if n := reg.Prune(time.Now().Add(-sessionTTL)); n > 0 {
			slog.Info("pruned sessions", "count", n, "live", reg.Len())
		}
	}
}

func runExport(cmd *cobra.Command, _ []string) error {
	setupLogging(cmd)
	v := viperForCmd(cmd)

	db, err := store.New(v.GetString("db"))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	kind := model.SubmissionKind(v.GetString("kind"))
	rows, err := db.ExportSubmissions(kind)
	if err != nil {
		return fmt.Errorf("export submissions: %w", err)
	}

	export := model.SubmissionExport{
		StudyID:     v.GetString("study-id"),
		ExportedAt:  time.Now().UTC(),
		Kind:        kind,
		Count:       len(rows),
		Submissions: rows,
	}

	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal JSON: %w", err)
	}

	outPath := v.GetString("output")
	var w io.Writer
	if outPath == "" || outPath == "-" {
		w = os.Stdout
	} else {
		f, err := os.Create(outPath)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	// Ensure trailing newline.
	_, _ = fmt.Fprintln(w)

	slog.Info("exported submissions", "count", len(rows), "kind", kind)
	return nil
}
