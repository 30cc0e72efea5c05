package handlers

import (
	"strings"
	"unicode"
)

// invokesCommand reports whether text runs the slash command, either typed on its own line
// or wrapped in the host's <command-name> tag.
func invokesCommand(text, command string) bool {
	if command == "" {
		return false
	}
	if strings.Contains(text, "<command-name>"+command+"</command-name>") {
		return true
	}
	for _, line := range strings.Split(text, "\n") {
		rest, ok := strings.CutPrefix(strings.TrimSpace(line), command)
		if !ok {
			continue
		}
		if rest == "" || unicode.IsSpace(rune(rest[0])) {
			return true
		}
	}
	return false
}

func containsAll(text string, markers []string) bool {
	for _, m := range markers {
		if !strings.Contains(text, m) {
			return false
		}
	}
	return true
}
