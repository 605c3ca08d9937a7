package exchange

import (
	"sort"
	"strings"
)

// Registry resolves the exchange a plan names.
type Registry map[string]Exchange

func (r Registry) Get(name string) (Exchange, bool) {
	ex, ok := r[strings.ToLower(strings.TrimSpace(name))]
	return ex, ok
}

func (r Registry) Names() []string {
	out := make([]string, 0, len(r))
	for name := range r {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
