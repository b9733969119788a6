package util

import (
	"bufio"
	"io"
	"strings"
)

// ParseWhitelist reads a text or CSV document of uploader names, one per
// line or separated by commas. Names are trimmed, blanks dropped, and
// duplicates removed case-insensitively while keeping first-seen order, so
// the persisted whitelist is deterministic across imports of the same file.
// The second return value counts duplicate entries that were dropped.
func ParseWhitelist(r io.Reader) ([]string, int, error) {
	seen := make(map[string]struct{})
	names := make([]string, 0)
	skipped := 0

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		for _, field := range strings.Split(scanner.Text(), ",") {
			name := strings.TrimSpace(field)
			if name == "" {
				continue
			}

			key := strings.ToLower(name)
			if _, dup := seen[key]; dup {
				skipped++
				continue
			}
			seen[key] = struct{}{}
			names = append(names, name)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, 0, err
	}

	return names, skipped, nil
}

// WhitelistContains reports whether name matches an entry, comparing both
// sides trimmed and case-folded. An empty whitelist admits everyone.
func WhitelistContains(whitelist []string, name string) bool {
	if len(whitelist) == 0 {
		return true
	}

	needle := strings.ToLower(strings.TrimSpace(name))
	for _, entry := range whitelist {
		if strings.ToLower(strings.TrimSpace(entry)) == needle {
			return true
		}
	}

	return false
}
