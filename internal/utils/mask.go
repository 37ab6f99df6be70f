// Package utils provides small shared helpers.
package utils

import "strings"

// secretFlags are CLI flags whose values must never reach logs or
// diagnostics.
var secretFlags = []string{"--password", "--auth-token"}

// MaskArgs returns a copy of args with every secret flag value replaced
// by a redaction marker. Both "--password secret" and "--password=secret"
// forms are handled.
func MaskArgs(args []string) []string {
	masked := make([]string, len(args))
	copy(masked, args)

	for i := 0; i < len(masked); i++ {
		for _, flag := range secretFlags {
			if masked[i] == flag && i+1 < len(masked) {
				masked[i+1] = "[REDACTED]"
				break
			}
			if strings.HasPrefix(masked[i], flag+"=") {
				masked[i] = flag + "=[REDACTED]"
				break
			}
		}
	}

	return masked
}

// MaskCommandLine renders a command line with secret flag values redacted,
// suitable for diagnostics.
func MaskCommandLine(name string, args []string) string {
	parts := append([]string{name}, MaskArgs(args)...)
	return strings.Join(parts, " ")
}
