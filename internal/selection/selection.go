// Package selection turns the (explicit list, "all" flag) pairs accepted on the
// command line into concrete, ordered sets of user or library names.
package selection

import (
	"fmt"
	"strings"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"

	"plexadmin/internal/services"
)

// Requested reports whether the dimension was asked for at all. An empty list
// without the all flag means "not requested", never "select nothing".
func Requested(explicit []string, selectAll bool) bool {
	return selectAll || len(explicit) > 0
}

// Resolve returns the active set for one dimension:
//
//	all=false, explicit empty      -> empty
//	all=false, explicit non-empty  -> explicit, order preserved
//	all=true,  explicit empty      -> universe
//	all=true,  explicit non-empty  -> universe minus explicit
//
// The universe slice is never modified.
func Resolve(explicit []string, selectAll bool, universe []string) []string {
	explicit = dedupe(explicit)
	switch {
	case !selectAll && len(explicit) == 0:
		return []string{}
	case !selectAll:
		return explicit
	case len(explicit) == 0:
		return append([]string(nil), universe...)
	}

	excluded := make(map[string]struct{}, len(explicit))
	for _, name := range explicit {
		excluded[name] = struct{}{}
	}
	out := make([]string, 0, len(universe))
	for _, name := range universe {
		if _, skip := excluded[name]; skip {
			continue
		}
		out = append(out, name)
	}
	return out
}

// Validate rejects any name that is not part of the universe. kind names the
// dimension in the error ("user", "library").
func Validate(kind string, names, universe []string) error {
	known := make(map[string]struct{}, len(universe))
	for _, name := range universe {
		known[name] = struct{}{}
	}
	var unknown []string
	for _, name := range names {
		if _, ok := known[name]; !ok {
			unknown = append(unknown, name)
		}
	}
	if len(unknown) == 0 {
		return nil
	}
	return services.Wrap(services.ErrValidation, "selection", kind,
		fmt.Sprintf("invalid choice %s (choose from %s)", quoteAll(unknown), quoteAll(Choices(universe))), nil)
}

// Choices returns a sorted copy of the universe for help and error messages.
func Choices(universe []string) []string {
	out := append([]string(nil), universe...)
	collate.New(language.Und, collate.IgnoreCase).SortStrings(out)
	return out
}

// Contains reports whether name is in set.
func Contains(set []string, name string) bool {
	for _, candidate := range set {
		if candidate == name {
			return true
		}
	}
	return false
}

// Union returns base followed by every entry of extra not already present.
func Union(base, extra []string) []string {
	return dedupe(append(append([]string(nil), base...), extra...))
}

// Difference returns the entries of base that are not in remove.
func Difference(base, remove []string) []string {
	out := make([]string, 0, len(base))
	for _, name := range base {
		if !Contains(remove, name) {
			out = append(out, name)
		}
	}
	return out
}

func dedupe(names []string) []string {
	seen := make(map[string]struct{}, len(names))
	out := make([]string, 0, len(names))
	for _, name := range names {
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		out = append(out, name)
	}
	return out
}

func quoteAll(names []string) string {
	quoted := make([]string, len(names))
	for i, name := range names {
		quoted[i] = fmt.Sprintf("%q", name)
	}
	return strings.Join(quoted, ", ")
}
