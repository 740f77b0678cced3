package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"arcadehub/internal/lobby"
	entrypoint "arcadehub/internal/platform/cmd"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

type config struct {
	Addr    string        `env:"ARCADE_CTL_LOBBY"   envDefault:"127.0.0.1:5555"`
	Timeout time.Duration `env:"ARCADE_CTL_TIMEOUT" envDefault:"5s"`
}

func main() {
	var cfg config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		log.Fatalf("parse env: %v", err)
	}
	flag.StringVar(&cfg.Addr, "lobby", cfg.Addr, "lobby address")
	flag.DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "per-command timeout")
	if err := entrypoint.ParseArgs(flag.CommandLine, os.Args[1:]); err != nil {
		log.Fatalf("parse flags: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := lobby.Dial(ctx, cfg.Addr)
	if err != nil {
		log.Fatalf("dial %s: %v", cfg.Addr, err)
	}
	defer c.Close()

	fmt.Println("connected to", cfg.Addr)
	fmt.Println("type 'help' for commands")
	newREPL(c, os.Stdout, cfg.Timeout).run(ctx, os.Stdin)
}

// syncWriter lets pushed events interleave with command output.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

type repl struct {
	c       *lobby.Client
	out     io.Writer
	timeout time.Duration
}

func newREPL(c *lobby.Client, out io.Writer, timeout time.Duration) *repl {
	return &repl{c: c, out: &syncWriter{w: out}, timeout: timeout}
}

func (r *repl) run(ctx context.Context, in io.Reader) {
	go r.printEvents()

	s := bufio.NewScanner(in)
	prompt := func() { fmt.Fprint(r.out, "> ") }
	prompt()
	for s.Scan() {
		line := strings.TrimSpace(s.Text())
		if line == "" {
			prompt()
			continue
		}
		if !r.exec(ctx, strings.Fields(line)) {
			return
		}
		prompt()
	}
}

// exec runs one command line and reports whether to keep going.
func (r *repl) exec(ctx context.Context, args []string) bool {
	switch strings.ToLower(args[0]) {
	case "help":
		r.printHelp()
	case "login":
		if len(args) < 2 {
			fmt.Fprintln(r.out, "usage: login <name>")
			break
		}
		r.call(ctx, protocol.CmdLogin, protocol.Payload{Username: args[1]})
	case "logout":
		r.call(ctx, protocol.CmdLogout, protocol.Payload{})
	case "users":
		if resp, ok := r.call(ctx, protocol.CmdListUsers, protocol.Payload{}); ok {
			r.list(resp.Users, "(nobody online)")
		}
	case "games":
		if resp, ok := r.call(ctx, protocol.CmdListGames, protocol.Payload{}); ok {
			if len(resp.Games) == 0 {
				fmt.Fprintln(r.out, "(no games)")
			}
			for _, g := range resp.Games {
				fmt.Fprintf(r.out, "- %s %q players=%d-%d modes=%s\n", g.ID, g.Name, g.MinPlayers, g.MaxPlayers, strings.Join(g.Modes, ","))
			}
		}
	case "rooms":
		if resp, ok := r.call(ctx, protocol.CmdListRooms, protocol.Payload{}); ok {
			if len(resp.Rooms) == 0 {
				fmt.Fprintln(r.out, "(no rooms)")
			}
			for _, rm := range resp.Rooms {
				fmt.Fprintf(r.out, "- %s game=%s host=%s status=%s members=%s\n", rm.ID, rm.GameID, rm.Host, rm.Status, strings.Join(rm.Members, ","))
			}
		}
	case "create":
		if len(args) < 2 {
			fmt.Fprintln(r.out, "usage: create <gameID>")
			break
		}
		r.call(ctx, protocol.CmdCreateRoom, protocol.Payload{GameID: args[1]})
	case "join", "leave", "info":
		if len(args) < 2 {
			fmt.Fprintf(r.out, "usage: %s <roomID>\n", args[0])
			break
		}
		cmd := map[string]protocol.Command{
			"join":  protocol.CmdJoinRoom,
			"leave": protocol.CmdLeaveRoom,
			"info":  protocol.CmdGetRoomInfo,
		}[strings.ToLower(args[0])]
		if resp, ok := r.call(ctx, cmd, protocol.Payload{RoomID: args[1]}); ok && resp.Room != nil {
			r.printRoom(*resp.Room)
		}
	case "chat":
		if len(args) < 3 {
			fmt.Fprintln(r.out, "usage: chat <roomID> <message>")
			break
		}
		r.call(ctx, protocol.CmdLobbyChat, protocol.Payload{RoomID: args[1], Message: strings.Join(args[2:], " ")})
	case "start":
		// start <roomID> [mode] [seconds|lines]
		if len(args) < 2 {
			fmt.Fprintln(r.out, "usage: start <roomID> [mode] [seconds|lines]")
			break
		}
		p := protocol.Payload{RoomID: args[1]}
		if len(args) > 2 {
			p.Mode = args[2]
		}
		if len(args) > 3 {
			n, err := strconv.Atoi(args[3])
			if err != nil {
				fmt.Fprintln(r.out, "error: not a number:", args[3])
				break
			}
			if types.ParseMode(p.Mode) == types.ModeLines {
				p.TargetLines = n
			} else {
				p.DurationSec = n
			}
		}
		if resp, ok := r.call(ctx, protocol.CmdStartGame, p); ok && resp.Match != nil {
			r.printMatch(*resp.Match)
		}
	case "quit", "exit":
		fmt.Fprintln(r.out, "bye")
		return false
	default:
		fmt.Fprintln(r.out, "unknown command; type 'help'")
	}
	return true
}

func (r *repl) call(ctx context.Context, cmd protocol.Command, p protocol.Payload) (protocol.Response, bool) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	resp, err := r.c.Do(ctx, cmd, p)
	if err != nil {
		fmt.Fprintln(r.out, "error:", err)
		return resp, false
	}
	if resp.Status != protocol.StatusSuccess {
		if resp.Code != "" {
			fmt.Fprintf(r.out, "%s [%s]: %s\n", resp.Status, resp.Code, resp.Message)
		} else {
			fmt.Fprintf(r.out, "%s: %s\n", resp.Status, resp.Message)
		}
		return resp, false
	}
	if resp.Message != "" {
		fmt.Fprintln(r.out, resp.Message)
	}
	return resp, true
}

func (r *repl) list(items []string, empty string) {
	if len(items) == 0 {
		fmt.Fprintln(r.out, empty)
		return
	}
	for _, it := range items {
		fmt.Fprintln(r.out, "-", it)
	}
}

func (r *repl) printRoom(rm protocol.RoomInfo) {
	fmt.Fprintf(r.out, "room=%s game=%s host=%s status=%s\n", rm.ID, rm.GameID, rm.Host, rm.Status)
	fmt.Fprintf(r.out, "members: %s\n", strings.Join(rm.Members, ", "))
	for _, line := range rm.Chat {
		fmt.Fprintln(r.out, " ", line)
	}
	if rm.Match != nil {
		r.printMatch(*rm.Match)
	}
}

func (r *repl) printMatch(m protocol.MatchInfo) {
	fmt.Fprintf(r.out, "match=%s game=%s at %s:%d token=%s params=%s\n", m.MatchID, m.GameID, m.GameHost, m.GamePort, m.Token, m.Params)
}

func (r *repl) printEvents() {
	for ev := range r.c.Events() {
		switch ev.Event {
		case protocol.EventRoomChat:
			fmt.Fprintf(r.out, "\n[%s] %s\n", ev.RoomID, ev.Chat)
		case protocol.EventMatchStarted:
			fmt.Fprintf(r.out, "\n[%s] match started\n", ev.RoomID)
			if ev.Match != nil {
				r.printMatch(*ev.Match)
			}
		case protocol.EventRoomUpdated:
			fmt.Fprintf(r.out, "\n[%s] room updated\n", ev.RoomID)
			if ev.Room != nil {
				fmt.Fprintf(r.out, "members: %s status=%s\n", strings.Join(ev.Room.Members, ", "), ev.Room.Status)
			}
		default:
			fmt.Fprintf(r.out, "\n[%s] %s\n", ev.RoomID, ev.Event)
		}
	}
}

func (r *repl) printHelp() {
	fmt.Fprintln(r.out, `commands:
  login <name>
  logout
  users
  games
  rooms
  create <gameID>
  join <roomID>
  leave <roomID>
  info <roomID>
  chat <roomID> <message>
  start <roomID> [mode] [seconds|lines]
  quit`)
}
