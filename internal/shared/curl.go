// Utilities for turning a browser "Copy as cURL" command into catalog session headers.
package shared

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	curlHeaderRe = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRe = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"`)
)

// hopHeaders are request specific and never replayed on later requests.
var hopHeaders = map[string]bool{
	"content-length": true,
	"host":           true,
	"connection":     true,
}

// CurlHeaders represents parsed headers and cookies from a cURL command.
type CurlHeaders struct {
	Headers map[string]string `json:"headers"`
	Cookie  string            `json:"cookie"`
}

// ParseCurlFile reads a file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(content)
}

// ParseCurlCommand parses a cURL command string and extracts headers.
//
// A cookie passed with -b wins over a Cookie header.
func ParseCurlCommand(data []byte) (*CurlHeaders, error) {
	cmd := strings.ReplaceAll(string(data), "\\\n", " ")
	cmd = strings.ReplaceAll(cmd, "\\", "")

	headers := make(map[string]string)
	var headerCookie string
	for _, line := range firstGroup(curlHeaderRe.FindAllStringSubmatch(cmd, -1)) {
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		switch lower := strings.ToLower(key); {
		case lower == "cookie":
			if headerCookie == "" {
				headerCookie = value
			}
		case hopHeaders[lower]:
		default:
			headers[key] = value
		}
	}

	cookie := headerCookie
	if m := firstGroup([][]string{curlCookieRe.FindStringSubmatch(cmd)}); len(m) > 0 && m[0] != "" {
		cookie = m[0]
	}

	if len(headers) == 0 && cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return &CurlHeaders{Headers: headers, Cookie: cookie}, nil
}

// firstGroup returns the first non-empty capture group of each match.
func firstGroup(matches [][]string) []string {
	var out []string
	for _, m := range matches {
		for _, g := range m[min(1, len(m)):] {
			if g != "" {
				out = append(out, g)
				break
			}
		}
	}
	return out
}

// Apply sets the stored headers and cookie on every request made by client.
func (c *CurlHeaders) Apply(client *resty.Client) {
	keys := make([]string, 0, len(c.Headers))
	for k := range c.Headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		client.SetHeader(k, c.Headers[k])
	}
	if c.Cookie != "" {
		client.SetHeader("Cookie", c.Cookie)
	}
}

// Save writes the headers as JSON to path.
func (c *CurlHeaders) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal headers: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// LoadCurlHeaders reads headers saved by [CurlHeaders.Save]. A missing file yields (nil, nil).
func LoadCurlHeaders(path string) (*CurlHeaders, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read headers: %w", err)
	}

	var headers CurlHeaders
	if err := json.Unmarshal(data, &headers); err != nil {
		return nil, fmt.Errorf("%w: stored headers are not valid JSON: %v", ErrInvalidConfig, err)
	}
	return &headers, nil
}
