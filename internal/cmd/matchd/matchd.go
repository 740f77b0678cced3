// Package matchd parses launch-template flags and runs one match process.
package matchd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"sort"
	"strconv"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"arcadehub/internal/drawguess"
	"arcadehub/internal/match"
	"arcadehub/internal/netx"
	entrypoint "arcadehub/internal/platform/cmd"
	"arcadehub/internal/platform/logging"
	"arcadehub/internal/tetris"
	"arcadehub/pkg/types"
)

// engines is the registered-constructor table, keyed by catalog id.
var engines = map[string]func() match.Registration{
	tetris.Game:    tetris.Registration,
	drawguess.Game: drawguess.Registration,
}

// Games lists the engine ids this binary can run.
func Games() []string {
	out := make([]string, 0, len(engines))
	for id := range engines {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the registration for game.
func Lookup(game string) (match.Registration, error) {
	reg, ok := engines[game]
	if !ok {
		return match.Registration{}, fmt.Errorf("unknown game %q (have %v)", game, Games())
	}
	return reg(), nil
}

// Config holds one match's launch parameters.
type Config struct {
	Game        string  `env:"ARCADE_MATCH_GAME"`
	Host        string  `env:"ARCADE_MATCH_HOST"        envDefault:"0.0.0.0"`
	Port        int     `env:"ARCADE_MATCH_PORT"`
	Token       string  `env:"ARCADE_MATCH_TOKEN"`
	RoomID      string  `env:"ARCADE_MATCH_ROOM"`
	MatchID     string  `env:"ARCADE_MATCH_ID"`
	LobbyHost   string  `env:"ARCADE_MATCH_LOBBY_HOST"  envDefault:"127.0.0.1"`
	LobbyPort   int     `env:"ARCADE_MATCH_LOBBY_PORT"`
	Mode        string  `env:"ARCADE_MATCH_MODE"`
	DurationSec int     `env:"ARCADE_MATCH_DURATION_SEC"`
	TargetLines int     `env:"ARCADE_MATCH_TARGET_LINES"`
	Seed        int64   `env:"ARCADE_MATCH_SEED"`
	InputRate   float64 `env:"ARCADE_MATCH_INPUT_RATE"  envDefault:"30"`
	InputBurst  int     `env:"ARCADE_MATCH_INPUT_BURST" envDefault:"30"`
	LogLevel    string  `env:"ARCADE_LOG_LEVEL"         envDefault:"info"`
	LogFormat   string  `env:"ARCADE_LOG_FORMAT"        envDefault:"console"`
}

// Params returns the match parameters carried by the flags.
func (c Config) Params() types.MatchParams {
	return types.MatchParams{
		Mode:        types.ParseMode(c.Mode),
		DurationSec: c.DurationSec,
		TargetLines: c.TargetLines,
		Seed:        c.Seed,
	}
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}

	fs.StringVar(&cfg.Game, "game", cfg.Game, "engine to run: "+fmt.Sprint(Games()))
	fs.StringVar(&cfg.Host, "host", cfg.Host, "listen host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "listen port")
	fs.StringVar(&cfg.Token, "token", cfg.Token, "one-time room token")
	fs.StringVar(&cfg.RoomID, "room", cfg.RoomID, "room id")
	fs.StringVar(&cfg.MatchID, "match-id", cfg.MatchID, "match id")
	fs.StringVar(&cfg.LobbyHost, "lobby-host", cfg.LobbyHost, "lobby host for the end-of-match report")
	fs.IntVar(&cfg.LobbyPort, "lobby-port", cfg.LobbyPort, "lobby port for the end-of-match report (0 disables)")
	fs.StringVar(&cfg.Mode, "mode", cfg.Mode, "match mode")
	fs.IntVar(&cfg.DurationSec, "duration-sec", cfg.DurationSec, "timer mode duration in seconds")
	fs.IntVar(&cfg.TargetLines, "target-lines", cfg.TargetLines, "lines mode target")
	fs.Int64Var(&cfg.Seed, "seed", cfg.Seed, "random seed")
	fs.Float64Var(&cfg.InputRate, "input-rate", cfg.InputRate, "structured messages per second per connection")
	fs.IntVar(&cfg.InputBurst, "input-burst", cfg.InputBurst, "input rate burst")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level")
	fs.StringVar(&cfg.LogFormat, "log-format", cfg.LogFormat, "log format: console or json")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}

	var errs []error
	if _, err := Lookup(cfg.Game); err != nil {
		errs = append(errs, err)
	}
	if cfg.Port <= 0 {
		errs = append(errs, errors.New("port is required"))
	}
	if cfg.Token == "" {
		errs = append(errs, errors.New("token is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run listens on the configured port and plays one match to completion.
func Run(ctx context.Context, cfg Config) error {
	log := logging.New(cfg.LogLevel, cfg.LogFormat, nil).With().Str("service", entrypoint.ServiceMatch).Logger()
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceMatch, log, func(ctx context.Context) error {
		addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))
		ln, err := netx.Listen(ctx, addr)
		if err != nil {
			return fmt.Errorf("listen %s: %w", addr, err)
		}
		_, err = Serve(ctx, cfg, ln, log)
		return err
	})
}

// Serve plays one match on ln.
func Serve(ctx context.Context, cfg Config, ln net.Listener, log zerolog.Logger) (match.Outcome, error) {
	reg, err := Lookup(cfg.Game)
	if err != nil {
		_ = ln.Close()
		return match.Outcome{}, err
	}
	var reporter match.Reporter = match.NopReporter{}
	if cfg.LobbyPort > 0 {
		reporter = match.LobbyReporter{Addr: net.JoinHostPort(cfg.LobbyHost, strconv.Itoa(cfg.LobbyPort))}
	}
	host, err := match.NewHost(match.Config{
		Token:      cfg.Token,
		RoomID:     cfg.RoomID,
		MatchID:    cfg.MatchID,
		Params:     cfg.Params(),
		InputRate:  rate.Limit(cfg.InputRate),
		InputBurst: cfg.InputBurst,
	}, reg, reporter, log)
	if err != nil {
		_ = ln.Close()
		return match.Outcome{}, err
	}
	out, err := host.Run(ctx, ln)
	if err != nil {
		return match.Outcome{}, err
	}
	log.Info().Str("reason", out.Reason).Str("winner", out.Winner).Msg("match finished")
	return out, nil
}
