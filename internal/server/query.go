package server

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/KaramelBytes/trialdash/internal/dashboard"
	"github.com/KaramelBytes/trialdash/internal/filter"
)

// Query parameters.
const (
	paramCountry    = "country"
	paramStatus     = "status"
	paramPhase      = "phase"
	paramTopN       = "top_n"
	paramChart      = "chart"
	paramScale      = "scale"
	paramRows       = "rows"
	paramStartMonth = "start_month"
)

// parseSet reads a repeatable parameter. An absent parameter yields def;
// a parameter present only with empty values yields the empty set.
func parseSet(q url.Values, name string, def filter.Set) filter.Set {
	vals, ok := q[name]
	if !ok {
		return def
	}
	s := filter.Set{}
	for _, v := range vals {
		if v != "" {
			s[v] = struct{}{}
		}
	}
	return s
}

func parseInt(q url.Values, name string, def int) (int, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be an integer, got %q", dashboard.ErrInvalidQuery, name, raw)
	}
	return n, nil
}

func parseBool(q url.Values, name string, def bool) (bool, error) {
	raw := q.Get(name)
	if raw == "" {
		return def, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("%w: %s must be a boolean, got %q", dashboard.ErrInvalidQuery, name, raw)
	}
	return b, nil
}

// parseQuery builds a pipeline query from URL parameters on top of def.
func parseQuery(q url.Values, def filter.Selection) (dashboard.Query, error) {
	sel := filter.Selection{
		Countries: parseSet(q, paramCountry, def.Countries),
		Statuses:  parseSet(q, paramStatus, def.Statuses),
		Phases:    parseSet(q, paramPhase, def.Phases),
	}
	var err error
	if sel.TopN, err = parseInt(q, paramTopN, def.TopN); err != nil {
		return dashboard.Query{}, err
	}
	rows, err := parseInt(q, paramRows, 0)
	if err != nil {
		return dashboard.Query{}, err
	}

	out := dashboard.Query{
		Selection:   sel,
		Chart:       q.Get(paramChart),
		Scale:       q.Get(paramScale),
		PreviewRows: rows,
	}
	if err := out.Validate(); err != nil {
		return dashboard.Query{}, err
	}
	return out, nil
}
