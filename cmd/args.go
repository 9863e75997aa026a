package cmd

import "strings"

// StripPlatformArgs drops the arguments macOS adds when launching an app
// bundle: the -psn_* process serial number and
// -NSDocumentRevisionsDebugMode with its value.
func StripPlatformArgs(args []string) []string {
	out := make([]string, 0, len(args))
	for i := 0; i < len(args); i++ {
		switch {
		case strings.HasPrefix(args[i], "-psn_"):
		case args[i] == "-NSDocumentRevisionsDebugMode":
			if i+1 < len(args) && !strings.HasPrefix(args[i+1], "-") {
				i++
			}
		default:
			out = append(out, args[i])
		}
	}
	return out
}
