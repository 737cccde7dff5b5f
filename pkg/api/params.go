package api

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/rubiojr/sieve/pkg/core"
)

// SearchParams are the query string parameters shared by every search
// endpoint: q and an optional comma separated engines list.
type SearchParams struct {
	Query   string
	Engines []core.Engine
}

func ParseSearchParams(values url.Values) (SearchParams, error) {
	p := SearchParams{Query: strings.TrimSpace(values.Get("q"))}
	engines, err := parseEngineList(values["engines"])
	if err != nil {
		return p, err
	}
	p.Engines = engines
	return p, nil
}

// parseEngineList accepts both engines=a,b and repeated engines= values.
func parseEngineList(raw []string) ([]core.Engine, error) {
	var out []core.Engine
	seen := map[core.Engine]bool{}
	for _, v := range raw {
		for _, slug := range strings.Split(v, ",") {
			if strings.TrimSpace(slug) == "" {
				continue
			}
			e, err := core.ParseEngine(slug)
			if err != nil {
				return nil, err
			}
			if !seen[e] {
				seen[e] = true
				out = append(out, e)
			}
		}
	}
	return out, nil
}

// HistoryParams filter the history listing.
type HistoryParams struct {
	Query string
	Limit int
}

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 200
)

func ParseHistoryParams(values url.Values) (HistoryParams, error) {
	p := HistoryParams{Query: strings.TrimSpace(values.Get("q")), Limit: defaultHistoryLimit}
	if raw := values.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			return p, errors.Newf("invalid limit %q", raw)
		}
		p.Limit = min(n, maxHistoryLimit)
	}
	return p, nil
}
