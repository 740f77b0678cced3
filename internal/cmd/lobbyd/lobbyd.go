// Package lobbyd parses orchestrator flags and composes the lobby daemon.
package lobbyd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"arcadehub/internal/lobby"
	"arcadehub/internal/netx"
	entrypoint "arcadehub/internal/platform/cmd"
	"arcadehub/internal/platform/logging"
	"arcadehub/internal/storage/sqlite"
)

const statusShutdownTimeout = 5 * time.Second

// Config holds lobby daemon configuration.
type Config struct {
	ListenAddr   string `env:"ARCADE_LOBBY_ADDR"           envDefault:":5555"`
	PublicHost   string `env:"ARCADE_LOBBY_PUBLIC_HOST"    envDefault:"127.0.0.1"`
	CallbackHost string `env:"ARCADE_LOBBY_CALLBACK_HOST"  envDefault:"127.0.0.1"`
	CatalogPath  string `env:"ARCADE_LOBBY_CATALOG"        envDefault:"games.json"`
	MaxRooms     int    `env:"ARCADE_LOBBY_MAX_ROOMS"      envDefault:"256"`
	ChatBacklog  int    `env:"ARCADE_LOBBY_CHAT_BACKLOG"   envDefault:"50"`
	PortMin      int    `env:"ARCADE_LOBBY_PORT_MIN"       envDefault:"10000"`
	PortMax      int    `env:"ARCADE_LOBBY_PORT_MAX"       envDefault:"20000"`
	PortAttempts int    `env:"ARCADE_LOBBY_PORT_ATTEMPTS"  envDefault:"50"`
	ReportRing   int    `env:"ARCADE_LOBBY_REPORT_RING"    envDefault:"100"`
	StatusAddr   string `env:"ARCADE_LOBBY_STATUS_ADDR"`
	HistoryDB    string `env:"ARCADE_LOBBY_HISTORY_DB"`
	LogLevel     string `env:"ARCADE_LOG_LEVEL"            envDefault:"info"`
	LogFormat    string `env:"ARCADE_LOG_FORMAT"           envDefault:"console"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.ListenAddr, "addr", cfg.ListenAddr, "lobby TCP listen address")
	fs.StringVar(&cfg.PublicHost, "public-host", cfg.PublicHost, "host clients use to reach match processes")
	fs.StringVar(&cfg.CallbackHost, "callback-host", cfg.CallbackHost, "host match processes use to report back")
	fs.StringVar(&cfg.CatalogPath, "catalog", cfg.CatalogPath, "game catalog JSON file")
	fs.IntVar(&cfg.MaxRooms, "max-rooms", cfg.MaxRooms, "maximum concurrent rooms")
	fs.IntVar(&cfg.ChatBacklog, "chat-backlog", cfg.ChatBacklog, "chat lines kept per room")
	fs.IntVar(&cfg.PortMin, "port-min", cfg.PortMin, "lowest match port")
	fs.IntVar(&cfg.PortMax, "port-max", cfg.PortMax, "highest match port")
	fs.IntVar(&cfg.PortAttempts, "port-attempts", cfg.PortAttempts, "port probes per launch")
	fs.StringVar(&cfg.StatusAddr, "status-addr", cfg.StatusAddr, "HTTP status listen address (empty disables)")
	fs.StringVar(&cfg.HistoryDB, "history-db", cfg.HistoryDB, "SQLite match history path (empty keeps memory only)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if cfg.PortMin <= 0 || cfg.PortMax < cfg.PortMin {
		return Config{}, fmt.Errorf("invalid port range %d-%d", cfg.PortMin, cfg.PortMax)
	}
	return cfg, nil
}

// Run starts the lobby and blocks until ctx is cancelled.
func Run(ctx context.Context, cfg Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat, nil).With().Str("service", entrypoint.ServiceLobby).Logger()
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLobby, log, func(ctx context.Context) error {
		catalog, err := lobby.LoadCatalog(cfg.CatalogPath)
		if err != nil {
			return err
		}
		ln, err := netx.Listen(ctx, cfg.ListenAddr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", cfg.ListenAddr, err)
		}
		var statusLn net.Listener
		if cfg.StatusAddr != "" {
			if statusLn, err = netx.Listen(ctx, cfg.StatusAddr); err != nil {
				_ = ln.Close()
				return fmt.Errorf("listen %s: %w", cfg.StatusAddr, err)
			}
		}
		app, err := NewApp(cfg, catalog, ln.Addr().(*net.TCPAddr).Port, log)
		if err != nil {
			_ = ln.Close()
			return err
		}
		defer app.Close()
		return app.Serve(ctx, ln, statusLn)
	})
}

// App is a fully wired lobby.
type App struct {
	Rooms   *lobby.Registry
	Reports *lobby.MemoryReports
	Service *lobby.Service

	store *sqlite.Store
	log   zerolog.Logger
}

// NewApp wires the lobby around catalog. callbackPort is the port the lobby
// listens on, handed to match processes for their reports.
func NewApp(cfg Config, catalog *lobby.Catalog, callbackPort int, log zerolog.Logger) (*App, error) {
	a := &App{
		Rooms:   lobby.NewRegistry(cfg.MaxRooms, cfg.ChatBacklog),
		Reports: lobby.NewMemoryReports(cfg.ReportRing),
		log:     log,
	}
	sinks := lobby.MultiSink{a.Reports}
	if cfg.HistoryDB != "" {
		store, err := sqlite.Open(cfg.HistoryDB)
		if err != nil {
			return nil, err
		}
		a.store = store
		sinks = append(sinks, store)
	}
	a.Service = lobby.NewService(lobby.Config{
		PublicHost:   cfg.PublicHost,
		CallbackHost: cfg.CallbackHost,
		CallbackPort: callbackPort,
	}, lobby.Deps{
		Rooms:    a.Rooms,
		Sessions: lobby.NewSessions(),
		Catalog:  catalog,
		Ports:    lobby.NewPortProber("", cfg.PortMin, cfg.PortMax, cfg.PortAttempts),
		Launcher: lobby.NewExecLauncher(log),
		Reports:  sinks,
	}, log)
	return a, nil
}

// Serve runs the command server on ln and, when statusLn is non-nil, the
// HTTP status surface, until ctx is cancelled.
func (a *App) Serve(ctx context.Context, ln, statusLn net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return lobby.NewServer(a.Service, a.log).Serve(gctx, ln)
	})
	if statusLn != nil {
		srv := &http.Server{
			Handler:           lobby.NewStatusHandler(a.Rooms, a.Reports, a.log),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			a.log.Info().Str("addr", statusLn.Addr().String()).Msg("status listening")
			if err := srv.Serve(statusLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("serve status: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), statusShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}
	return g.Wait()
}

// Close releases the history store.
func (a *App) Close() error {
	return a.store.Close()
}
