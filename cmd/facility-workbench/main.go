package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/adrg/xdg"
	tea "github.com/charmbracelet/bubbletea"
	"golang.org/x/term"

	"github.com/rflorenc/facility-workbench/internal/api"
	"github.com/rflorenc/facility-workbench/internal/config"
	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/models"
	"github.com/rflorenc/facility-workbench/internal/notify"
	"github.com/rflorenc/facility-workbench/internal/resources"
	"github.com/rflorenc/facility-workbench/internal/screen"
	"github.com/rflorenc/facility-workbench/internal/session"
	"github.com/rflorenc/facility-workbench/internal/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// pingPath is fetched at startup to check the backend is reachable.
const pingPath = "/settings"

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "--version" || arg == "-v" {
			fmt.Printf("facility-workbench %s (commit: %s, built: %s)\n", version, commit, date)
			os.Exit(0)
		}
	}

	command, args := "serve", os.Args[1:]
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	cfg, err := config.Parse(command, args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n\n", err)
		printUsage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "serve":
		setupLogging(os.Stderr, cfg.LogLevel)
		err = serve(ctx, cfg)
	case "tui":
		var closeLog func()
		closeLog, err = logToFile(cfg.LogLevel)
		if err == nil {
			defer closeLog()
			err = runTUI(ctx, cfg)
		}
	case "login":
		setupLogging(os.Stderr, cfg.LogLevel)
		err = login(ctx, cfg)
	case "help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Printf(`facility-workbench %s - sports facility admin

USAGE:
  facility-workbench [command] [flags]

COMMANDS:
  serve    Run the HTTP API and dashboard (default)
  tui      Run the terminal interface
  login    Check credentials against the backend

FLAGS:
  --config PATH      Config file (default: %s)
  --listen ADDR      HTTP listen address (default: :8080)
  --backend URL      Backend API base URL
  --page-size N      Rows per page for every resource
  --web-dir DIR      Serve a built dashboard from DIR
  --dev              Proxy the dashboard to the Vite dev server
  --log-level LEVEL  debug, info, warn or error
  --version          Show version and exit

ENVIRONMENT:
  %s  Static bearer token (also read from .env)
`, version, config.DefaultPath(), config.TokenEnv)
}

func setupLogging(w io.Writer, level string) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})))
}

// logToFile keeps log output off the terminal while the TUI owns it.
func logToFile(level string) (func(), error) {
	path, err := xdg.StateFile(filepath.Join(config.AppName, "tui.log"))
	if err != nil {
		return nil, fmt.Errorf("resolving log path: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	setupLogging(f, level)
	return func() { f.Close() }, nil
}

// app is the wiring shared by all commands.
type app struct {
	cfg      *config.Config
	backend  *models.Backend
	client   *datasource.Client
	session  *session.Store
	registry *resources.Registry
	notes    *notify.Center
	stageDir string
}

func newApp(cfg *config.Config) (*app, error) {
	registry := resources.Default()
	// Per-resource overrides win over the global page size.
	registry.SetPageSize(cfg.PageSize)
	if err := registry.Apply(cfg.Resources); err != nil {
		return nil, err
	}
	stageDir, err := os.MkdirTemp("", "facility-workbench-")
	if err != nil {
		return nil, fmt.Errorf("creating staging dir: %w", err)
	}
	backend := cfg.ModelBackend()
	sessions := session.NewStore(backend.Token)
	return &app{
		cfg:      cfg,
		backend:  backend,
		client:   datasource.NewClient(backend, sessions),
		session:  sessions,
		registry: registry,
		notes:    notify.NewCenter(cfg.NotificationTTL),
		stageDir: stageDir,
	}, nil
}

func (a *app) source(schema *models.Schema) datasource.Source {
	return datasource.NewREST(a.client, schema.APIPath)
}

func (a *app) close() {
	a.notes.Close()
	os.RemoveAll(a.stageDir)
}

// ping verifies the backend early so misconfiguration shows at startup.
func (a *app) ping(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.client.Ping(ctx, pingPath); err != nil {
		var fe *datasource.FetchError
		if errors.As(err, &fe) && (fe.Status == http.StatusUnauthorized || fe.Status == http.StatusForbidden) {
			slog.Info("backend_event", "event", "reachable", "url", a.backend.APIURL(), "auth", "required")
			return
		}
		slog.Warn("backend_event", "event", "ping_failed", "url", a.backend.APIURL(), "error", err)
		return
	}
	slog.Info("backend_event", "event", "reachable", "url", a.backend.APIURL(), "token", a.backend.MaskedToken())
}

func serve(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()
	a.ping(ctx)

	server := &api.Server{
		Screens:  screen.NewStore(),
		Registry: a.registry,
		Sources:  a.source,
		Notes:    a.notes,
		Session:  a.session,
		Auth:     a.client,
		Options:  screen.Options{StageDir: a.stageDir},
		CSRFKey:  []byte(cfg.CSRFKey),
	}
	defer server.Screens.CloseAll()
	go server.SweepIdle(ctx, time.Minute, cfg.ScreenIdle)

	var webFS fs.FS
	if cfg.WebDir != "" {
		webFS = os.DirFS(cfg.WebDir)
	}

	var handler http.Handler
	if cfg.Dev {
		// In dev mode, create router with a proxy to Vite
		handler = devRouter(server)
	} else {
		handler = api.NewRouter(server, webFS)
	}

	srv := &http.Server{Addr: cfg.Listen, Handler: handler, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	slog.Info("server_event", "event", "starting", "version", version, "listen", cfg.Listen, "backend", a.backend.APIURL(), "dev", cfg.Dev)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	slog.Info("server_event", "event", "stopped")
	return nil
}

func runTUI(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	if a.session.Token() == "" {
		creds, err := promptCredentials(os.Stdin, os.Stdout)
		if err != nil {
			return err
		}
		if _, err := a.session.Login(ctx, a.client, creds); err != nil {
			return err
		}
		defer a.session.Logout(context.Background(), a.client)
	}

	open := func(schema *models.Schema) *screen.Screen {
		return screen.New(schema, a.source(schema), a.notes, screen.Options{StageDir: a.stageDir})
	}
	p := tea.NewProgram(tui.NewModel(a.registry.All(), open, a.notes), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err = p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}

func login(ctx context.Context, cfg *config.Config) error {
	a, err := newApp(cfg)
	if err != nil {
		return err
	}
	defer a.close()

	creds, err := promptCredentials(os.Stdin, os.Stdout)
	if err != nil {
		return err
	}
	sess, err := a.session.Login(ctx, a.client, creds)
	if err != nil {
		return err
	}
	fmt.Printf("Signed in as %s (%s)\n", sess.Email, sess.Role)
	if !sess.ExpiresAt.IsZero() {
		fmt.Printf("Token expires %s\n", sess.ExpiresAt.Local().Format(time.RFC1123))
	}
	if !sess.IsAdmin() {
		fmt.Println("Warning: this account is not an admin; management actions will be refused.")
	}
	return a.session.Logout(ctx, a.client)
}

// promptCredentials reads an email and, without echo, a password.
func promptCredentials(in *os.File, out io.Writer) (session.Credentials, error) {
	fmt.Fprint(out, "Email: ")
	email, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && email == "" {
		return session.Credentials{}, fmt.Errorf("reading email: %w", err)
	}
	fmt.Fprint(out, "Password: ")
	pw, err := term.ReadPassword(int(in.Fd()))
	fmt.Fprintln(out)
	if err != nil {
		return session.Credentials{}, fmt.Errorf("reading password: %w", err)
	}
	return session.Credentials{Email: strings.TrimSpace(email), Password: string(pw)}, nil
}
