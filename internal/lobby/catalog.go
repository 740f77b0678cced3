package lobby

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"arcadehub/internal/apperr"
	"arcadehub/internal/protocol"
	"arcadehub/pkg/types"
)

// Game is one catalog manifest entry.
type Game struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	MinPlayers int               `json:"min_players"`
	MaxPlayers int               `json:"max_players"`
	Modes      []string          `json:"modes,omitempty"`
	Defaults   types.MatchParams `json:"defaults"`
	Server     ServerSpec        `json:"server"`
}

// ServerSpec tells the launcher how to start a match process.
type ServerSpec struct {
	Command      string `json:"command"`
	ArgsTemplate string `json:"args_template"`
	Dir          string `json:"dir,omitempty"`
}

// Validate checks that the manifest can be launched.
func (g Game) Validate() error {
	if strings.TrimSpace(g.Server.Command) == "" {
		return apperr.New(apperr.CodeLaunchFailed, "manifest for "+g.ID+" has no server command")
	}
	for _, ph := range []string{"{port}", "{token}"} {
		if !strings.Contains(g.Server.ArgsTemplate, ph) {
			return apperr.New(apperr.CodeLaunchFailed, fmt.Sprintf("manifest for %s: args_template must contain %s", g.ID, ph))
		}
	}
	return nil
}

// ResolveParams fills unset request fields from the manifest defaults and
// checks the mode against the manifest.
func (g Game) ResolveParams(req types.MatchParams) (types.MatchParams, error) {
	p := req.Merge(g.Defaults)
	if len(g.Modes) > 0 {
		if p.Mode == "" {
			p.Mode = types.ParseMode(g.Modes[0])
		}
		ok := slices.ContainsFunc(g.Modes, func(m string) bool { return types.ParseMode(m) == p.Mode })
		if !ok {
			return p, apperr.InvalidArgument(fmt.Sprintf("game %s does not support mode %q", g.ID, p.Mode))
		}
	}
	if p.DurationSec < 0 || p.TargetLines < 0 {
		return p, apperr.InvalidArgument("mode parameters must not be negative")
	}
	return p, nil
}

// Info is the LIST_GAMES view.
func (g Game) Info() protocol.GameInfo {
	return protocol.GameInfo{
		ID:         g.ID,
		Name:       g.Name,
		MinPlayers: g.MinPlayers,
		MaxPlayers: g.MaxPlayers,
		Modes:      g.Modes,
	}
}

type manifest struct {
	Games []Game `json:"games"`
}

// Catalog is the read-only set of launchable games.
type Catalog struct {
	games map[string]Game
	order []string
}

// NewCatalog builds a catalog from games; later duplicates win.
func NewCatalog(games ...Game) *Catalog {
	c := &Catalog{games: make(map[string]Game)}
	for _, g := range games {
		if _, ok := c.games[g.ID]; !ok {
			c.order = append(c.order, g.ID)
		}
		c.games[g.ID] = g
	}
	return c
}

// LoadCatalog reads a JSON manifest file.
func LoadCatalog(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return ParseCatalog(f)
}

// ParseCatalog decodes a manifest of the form {"games":[...]}.
func ParseCatalog(r io.Reader) (*Catalog, error) {
	var m manifest
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	seen := make(map[string]bool, len(m.Games))
	for _, g := range m.Games {
		if g.ID == "" {
			return nil, fmt.Errorf("decode catalog: game without id")
		}
		if seen[g.ID] {
			return nil, fmt.Errorf("decode catalog: duplicate game %q", g.ID)
		}
		seen[g.ID] = true
	}
	return NewCatalog(m.Games...), nil
}

// Get returns one game.
func (c *Catalog) Get(id string) (Game, error) {
	g, ok := c.games[id]
	if !ok {
		return Game{}, apperr.NotFound("game " + id + " not found")
	}
	return g, nil
}

// List returns the catalog in manifest order.
func (c *Catalog) List() []protocol.GameInfo {
	out := make([]protocol.GameInfo, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.games[id].Info())
	}
	return out
}
