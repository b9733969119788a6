package util

import (
	"net/http"
	"regexp"
	"strings"
	"unicode"

	"go-file-collector/pkg/apierror"
)

var invalidNameChars = regexp.MustCompile(`[<>:"/\\|?*]`)

var windowsReservedNames = map[string]struct{}{
	"CON": {}, "PRN": {}, "AUX": {}, "NUL": {},
	"COM1": {}, "COM2": {}, "COM3": {}, "COM4": {}, "COM5": {},
	"COM6": {}, "COM7": {}, "COM8": {}, "COM9": {},
	"LPT1": {}, "LPT2": {}, "LPT3": {}, "LPT4": {}, "LPT5": {},
	"LPT6": {}, "LPT7": {}, "LPT8": {}, "LPT9": {},
}

// SanitizeFilename normalizes a client-supplied filename into something safe
// to place inside an uploader directory. Path separators and shell-hostile
// characters are replaced, control and invisible runes stripped. Dotfiles
// are kept as-is; only "." and ".." themselves are rejected.
func SanitizeFilename(name string) (string, error) {
	return sanitizeComponent(name, "filename")
}

// SanitizeUploaderName validates the free-text uploader name that becomes a
// directory component under the task folder.
func SanitizeUploaderName(name string) (string, error) {
	return sanitizeComponent(name, "uploader name")
}

func sanitizeComponent(name string, what string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", apierror.New("BAD_REQUEST", what+" cannot be empty", "", http.StatusBadRequest)
	}

	if strings.Contains(trimmed, "\x00") {
		return "", apierror.New("BAD_REQUEST", what+" contains null bytes", "", http.StatusBadRequest)
	}

	builder := strings.Builder{}
	builder.Grow(len(trimmed))
	for _, char := range trimmed {
		if unicode.IsControl(char) || unicode.Is(unicode.Cf, char) {
			continue
		}
		builder.WriteRune(char)
	}

	cleaned := strings.TrimSpace(invalidNameChars.ReplaceAllString(builder.String(), "_"))
	if cleaned == "" || cleaned == "." || cleaned == ".." {
		return "", apierror.New("BAD_REQUEST", what+" is invalid after sanitization", trimmed, http.StatusBadRequest)
	}

	// Truncate by runes so multi-byte characters are never split.
	runes := []rune(cleaned)
	if len(runes) > 255 {
		cleaned = string(runes[:255])
	}

	stem := cleaned
	if idx := strings.Index(cleaned, "."); idx >= 0 {
		stem = cleaned[:idx]
	}
	if _, reserved := windowsReservedNames[strings.ToUpper(stem)]; reserved {
		return "", apierror.New("BAD_REQUEST", what+" uses a reserved name", cleaned, http.StatusBadRequest)
	}

	return cleaned, nil
}
