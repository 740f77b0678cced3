package lobby

import (
	"context"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"arcadehub/internal/apperr"
	"arcadehub/pkg/types"
)

// LaunchRequest carries everything substituted into a launch template.
type LaunchRequest struct {
	Game      Game
	Port      int
	Token     string
	RoomID    string
	MatchID   string
	LobbyHost string
	LobbyPort int
	Params    types.MatchParams
}

// Launcher starts a match process.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) error
}

// ExpandArgs substitutes the request into the game's args template and
// splits the result on whitespace.
func ExpandArgs(template string, req LaunchRequest) []string {
	r := strings.NewReplacer(
		"{port}", strconv.Itoa(req.Port),
		"{token}", req.Token,
		"{room_id}", req.RoomID,
		"{match_id}", req.MatchID,
		"{lobby_host}", req.LobbyHost,
		"{lobby_port}", strconv.Itoa(req.LobbyPort),
		"{game}", req.Game.ID,
		"{mode}", string(req.Params.Mode),
		"{duration_sec}", strconv.Itoa(req.Params.DurationSec),
		"{target_lines}", strconv.Itoa(req.Params.TargetLines),
		"{seed}", strconv.FormatInt(req.Params.Seed, 10),
	)
	return strings.Fields(r.Replace(template))
}

// ExecLauncher spawns match processes as children. Each child is reaped on
// its own goroutine and its exit is logged; room state is never touched.
type ExecLauncher struct {
	log zerolog.Logger
}

// NewExecLauncher returns a launcher that logs child exits to log.
func NewExecLauncher(log zerolog.Logger) *ExecLauncher {
	return &ExecLauncher{log: log.With().Str("component", "launcher").Logger()}
}

func (l *ExecLauncher) Launch(_ context.Context, req LaunchRequest) error {
	if err := req.Game.Validate(); err != nil {
		return err
	}
	argv := strings.Fields(req.Game.Server.Command)
	argv = append(argv, ExpandArgs(req.Game.Server.ArgsTemplate, req)...)

	// The child outlives the request, so it is not bound to ctx.
	cmd := exec.Command(argv[0], argv[1:]...)
	cmd.Dir = req.Game.Server.Dir
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		return apperr.Wrap(apperr.CodeLaunchFailed, "spawn "+req.Game.ID, err)
	}

	log := l.log.With().
		Str("room", req.RoomID).
		Str("match", req.MatchID).
		Int("pid", cmd.Process.Pid).
		Logger()
	log.Info().Int("port", req.Port).Msg("match process started")
	go func() {
		if err := cmd.Wait(); err != nil {
			log.Warn().Err(err).Msg("match process exited")
			return
		}
		log.Info().Msg("match process exited")
	}()
	return nil
}
