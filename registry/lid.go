package registry

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// LID is a parsed library-definition file: an ordered list of
// Key: value headers, values split into whitespace-separated tokens.
type LID struct {
	Path      string
	Library   string
	Platforms []string
	Includes  []string // values of repeated "LID:" headers
	Origin    string
}

// parseLID reads and parses path as a LID file: "Key: value" lines with
// indented continuation lines appending tokens to the previous header,
// and a repeatable "LID:" include directive.
func parseLID(path string) (*LID, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	lid := &LID{Path: path}
	var currentKey string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}

		if isContinuation(line) && currentKey != "" {
			appendTokens(lid, currentKey, strings.Fields(line))
			continue
		}

		key, value, ok := splitHeader(line)
		if !ok {
			continue
		}
		currentKey = key
		appendTokens(lid, key, strings.Fields(value))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if lid.Library == "" {
		return nil, fmt.Errorf("%s: missing required \"Library\" header", path)
	}
	return lid, nil
}

func isContinuation(line string) bool {
	return len(line) > 0 && (line[0] == ' ' || line[0] == '\t')
}

func splitHeader(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, ':')
	if idx < 0 {
		return "", "", false
	}
	key = strings.TrimSpace(line[:idx])
	value = strings.TrimSpace(line[idx+1:])
	return key, value, true
}

func appendTokens(lid *LID, key string, tokens []string) {
	switch key {
	case "Library":
		if len(tokens) > 0 {
			lid.Library = tokens[0]
		}
	case "Platforms":
		lid.Platforms = append(lid.Platforms, tokens...)
	case "LID":
		lid.Includes = append(lid.Includes, tokens...)
	case "Origin":
		if len(tokens) > 0 {
			lid.Origin = strings.Join(tokens, " ")
		}
	}
}
