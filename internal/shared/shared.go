// package shared defines shared helpers
package shared

import (
	"crypto/md5"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"unicode"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Letters with a stroke do not decompose under NFD.
var strokeReplacer = strings.NewReplacer("ł", "l", "Ł", "L", "ø", "o", "Ø", "O", "đ", "d", "Đ", "D")

// NewLogger creates a new [log.Logger] instance with the specified [io.Writer], with timestamps and caller reporting enabled.
//
// The writer defaults to [os.Stderr]
func NewLogger(w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	opts := log.Options{ReportTimestamp: true, ReportCaller: true}
	return log.NewWithOptions(w, opts)
}

// NewFileLogger creates a [log.Logger] that appends to the file at path, creating parent directories as needed.
func NewFileLogger(path string) (*log.Logger, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}
	return NewLogger(f), nil
}

// WithLogger creates a child [log.Logger] with the specified key-value pairs added to all log entries.
func WithLogger(l *log.Logger, kv ...any) *log.Logger {
	return l.With(kv...)
}

// SetLogLevel sets the [log.Level] for the given [log.Logger].
func SetLogLevel(l *log.Logger, ll log.Level) {
	l.SetLevel(ll)
}

// GenerateID generates a new v4 [uuid.UUID] as a string
func GenerateID() string {
	return uuid.New().String()
}

// MD5Hex returns the hex encoded MD5 digest of the concatenated parts.
func MD5Hex(parts ...string) string {
	h := md5.New()
	for _, p := range parts {
		io.WriteString(h, p)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies a call by function name and arguments.
//
// It is the sha1 of the JSON encoded [function, args] pair, so arguments must be JSON encodable.
func Fingerprint(function string, args ...any) (string, error) {
	if args == nil {
		args = []any{}
	}
	data, err := json.Marshal([]any{function, args})
	if err != nil {
		return "", fmt.Errorf("failed to encode fingerprint arguments: %w", err)
	}
	sum := sha1.Sum(data)
	return hex.EncodeToString(sum[:]), nil
}

// ShelfFileName builds the JSON file name for a profile shelf, e.g. "jan_kowalski_chce_przeczytac.json".
func ShelfFileName(profile, shelf string) string {
	name := fmt.Sprintf("%s_%s", strings.TrimSpace(profile), strings.TrimSpace(shelf))
	name = whitespaceRe.ReplaceAllString(name, "_")
	return strings.ToLower(name) + ".json"
}

// ShelfFilePath joins the shelves directory with [ShelfFileName].
func ShelfFilePath(dir, profile, shelf string) string {
	return filepath.Join(dir, ShelfFileName(profile, shelf))
}

// MarshalJSON encodes v, indenting when pretty is set.
func MarshalJSON(v any, pretty bool) ([]byte, error) {
	if pretty {
		return json.MarshalIndent(v, "", "  ")
	}
	return json.Marshal(v)
}

// WriteJSONFile writes v as indented JSON to path, creating parent directories.
func WriteJSONFile(path string, v any) error {
	data, err := MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// ReadJSONFile decodes the JSON file at path into v.
func ReadJSONFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s is not valid JSON: %v", ErrInvalidInput, path, err)
	}
	return nil
}

// DigitsOnly strips every non-digit character, e.g. "978-83-240-1234-5" becomes "9788324012345".
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// CollapseSpace trims s and folds inner whitespace runs into single spaces.
func CollapseSpace(s string) string {
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// FoldDiacritics strips combining marks, so "Stanisław Lem" becomes "Stanislaw Lem".
func FoldDiacritics(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, strokeReplacer.Replace(s))
	if err != nil {
		return s
	}
	return folded
}
