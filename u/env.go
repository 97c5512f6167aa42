package u

import (
	"fmt"
	"strings"
)

// NormalizeNewlines changes CRLF (Windows) and CR (Mac) to LF (Unix)
func NormalizeNewlines(d []byte) []byte {
	s := strings.ReplaceAll(string(d), "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")
	return []byte(s)
}

// ParseEnv parses .env-style content: KEY=VALUE lines,
// empty lines and lines starting with # are skipped
func ParseEnv(d []byte) (map[string]string, error) {
	lines := strings.Split(string(NormalizeNewlines(d)), "\n")
	m := make(map[string]string)
	for i, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, val, ok := strings.Cut(line, "=")
		if !ok {
			return nil, &EnvSyntaxError{Line: i + 1, Text: line}
		}
		key = strings.TrimSpace(key)
		val = strings.TrimSpace(val)
		val = strings.Trim(val, `"`)
		m[key] = val
	}
	return m, nil
}

type EnvSyntaxError struct {
	Line int
	Text string
}

func (e *EnvSyntaxError) Error() string {
	return fmt.Sprintf("invalid line %d in .env: '%s'", e.Line, e.Text)
}
