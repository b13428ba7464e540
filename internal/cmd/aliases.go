package cmd

import "strings"

// flagAliases maps legacy flag spellings to their current equivalents.
// Both spellings produce the identical run request; the table is consulted
// once, before cobra parses the arguments.
var flagAliases = map[string]string{
	"-auto":             "--headless",
	"-exit_on_complete": "--exit-on-complete",
	"-s":                "--device",
}

// NormalizeArgs rewrites legacy flag spellings in an argument vector.
// Rewriting stops at a bare "--" terminator; everything after it is
// passed through untouched.
func NormalizeArgs(args []string) []string {
	out := make([]string, len(args))
	rewriting := true
	for i, arg := range args {
		if rewriting && arg == "--" {
			rewriting = false
		}
		out[i] = arg
		if !rewriting {
			continue
		}
		if modern, ok := flagAliases[arg]; ok {
			out[i] = modern
			continue
		}
		// Handle the "-flag=value" form.
		if name, value, found := strings.Cut(arg, "="); found {
			if modern, ok := flagAliases[name]; ok {
				out[i] = modern + "=" + value
			}
		}
	}
	return out
}
