package core

import (
	"strings"

	"github.com/cockroachdb/errors"
)

// Engine identifies the search provider a result came from.
// The set is closed; Engines() returns it in display order.
type Engine int

const (
	Bing Engine = iota
	Brave
	DuckDuckGo
)

var (
	engineSlugs = [...]string{"bing", "brave", "duckduckgo"}
	engineNames = [...]string{"Bing", "Brave Search", "DuckDuckGo"}
)

// ErrUnknownEngine is returned when a slug does not name a known engine.
var ErrUnknownEngine = errors.New("unknown engine")

// Engines returns every known engine in display order.
func Engines() []Engine {
	out := make([]Engine, len(engineSlugs))
	for i := range engineSlugs {
		out[i] = Engine(i)
	}
	return out
}

// Valid reports whether e is one of the known engines.
func (e Engine) Valid() bool {
	return e >= 0 && int(e) < len(engineSlugs)
}

// String returns the engine slug (e.g. "duckduckgo").
func (e Engine) String() string {
	if !e.Valid() {
		return "unknown"
	}
	return engineSlugs[e]
}

// DisplayName returns the human readable engine name.
func (e Engine) DisplayName() string {
	if !e.Valid() {
		return "Unknown"
	}
	return engineNames[e]
}

// ParseEngine maps a slug (case insensitive) to an Engine.
func ParseEngine(s string) (Engine, error) {
	slug := strings.ToLower(strings.TrimSpace(s))
	for i, candidate := range engineSlugs {
		if candidate == slug {
			return Engine(i), nil
		}
	}
	return 0, errors.Wrapf(ErrUnknownEngine, "%q", s)
}

func (e Engine) MarshalText() ([]byte, error) {
	if !e.Valid() {
		return nil, errors.Wrapf(ErrUnknownEngine, "%d", int(e))
	}
	return []byte(e.String()), nil
}

func (e *Engine) UnmarshalText(text []byte) error {
	parsed, err := ParseEngine(string(text))
	if err != nil {
		return err
	}
	*e = parsed
	return nil
}
