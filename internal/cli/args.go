package cli

import "strings"

// ArgSpec lists flags that take values in the space-separated style, e.g.
// `--user alice bob` or `--kill "Back soon"`.
type ArgSpec struct {
	// Multi flags consume every following argument up to the next flag.
	Multi []string
	// Optional flags consume the next argument only when it is not a flag.
	Optional []string
}

// ExpandArgs rewrites space-separated values into the `--flag=value` form
// pflag understands. Everything after a bare "--" is passed through.
func ExpandArgs(args []string, argSpec ArgSpec) []string {
	multi := toSet(argSpec.Multi)
	optional := toSet(argSpec.Optional)

	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			out = append(out, args[i:]...)
			break
		}
		name, ok := longFlagName(arg)
		switch {
		case ok && multi[name]:
			consumed := 0
			for i+1 < len(args) && !isFlag(args[i+1]) {
				i++
				consumed++
				out = append(out, "--"+name+"="+args[i])
			}
			if consumed == 0 {
				out = append(out, arg)
			}
		case ok && optional[name]:
			if i+1 < len(args) && !isFlag(args[i+1]) {
				i++
				out = append(out, "--"+name+"="+args[i])
			} else {
				out = append(out, arg)
			}
		default:
			out = append(out, arg)
		}
	}
	return out
}

func longFlagName(arg string) (string, bool) {
	if !strings.HasPrefix(arg, "--") || strings.Contains(arg, "=") {
		return "", false
	}
	name := strings.TrimPrefix(arg, "--")
	return name, name != ""
}

func isFlag(arg string) bool {
	return strings.HasPrefix(arg, "-") && arg != "-"
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}
