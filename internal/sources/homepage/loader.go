package homepage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ErrNoLinks is returned when a file holds no importable entry
var ErrNoLinks = errors.New("no importable links found")

var templateVar = regexp.MustCompile(`\{\{[^}]+\}\}`)

// LoadFile reads a Homepage bookmarks.yaml or services.yaml file
func LoadFile(path string) ([]Link, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read homepage file: %w", err)
	}
	return Parse(data)
}

// Read parses a Homepage file from r, up to limit bytes
func Read(r io.Reader, limit int64) ([]Link, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read homepage file: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("homepage file exceeds %d bytes", limit)
	}
	return Parse(data)
}

// Parse accepts either the bookmarks.yaml or the services.yaml layout.
func Parse(data []byte) ([]Link, error) {
	// Strip Homepage template variables ({{HOMEPAGE_VAR_...}})
	data = stripTemplateVariables(data)

	var bookmarks BookmarksConfig
	bookmarksErr := yaml.Unmarshal(data, &bookmarks)
	if bookmarksErr == nil {
		if links := MapBookmarks(bookmarks); len(links) > 0 {
			return links, nil
		}
	}

	var services ServicesConfig
	if err := yaml.Unmarshal(data, &services); err != nil {
		if bookmarksErr != nil {
			return nil, fmt.Errorf("failed to parse homepage yaml: %w", bookmarksErr)
		}
		return nil, ErrNoLinks
	}
	links := MapServices(services)
	if len(links) == 0 {
		return nil, ErrNoLinks
	}
	return links, nil
}

// stripTemplateVariables removes Homepage template variables from YAML
// Example: {{HOMEPAGE_VAR_ADGUARD_USER}} -> ""
func stripTemplateVariables(data []byte) []byte {
	return templateVar.ReplaceAll(data, []byte(`""`))
}
