package ingestion

import (
	"net/url"
	"path"
	"strings"
)

// InferredMetadata holds the source type, format, and title inferred from a
// document location. CLI flags and caller metadata take precedence over
// inferred values; this is the best-effort fallback when nothing explicit is
// supplied.
type InferredMetadata struct {
	// SourceType classifies where the document came from (url, file).
	SourceType string
	// Format is the content format guessed from the extension
	// (markdown, html, text, json, yaml, csv).
	Format string
	// Title is a human-readable label derived from the file or URL path.
	Title string
}

// formatByExtension maps file extensions to canonical format labels.
var formatByExtension = map[string]string{
	".md":       "markdown",
	".markdown": "markdown",
	".html":     "html",
	".htm":      "html",
	".txt":      "text",
	".text":     "text",
	".json":     "json",
	".yaml":     "yaml",
	".yml":      "yaml",
	".csv":      "csv",
	".rst":      "text",
	".log":      "text",
}

// InferMetadata inspects a document location and returns best-effort
// metadata. Unknown extensions default to "text"; a URL with an empty path
// gets its hostname as title.
func InferMetadata(location string) InferredMetadata {
	m := InferredMetadata{
		SourceType: "file",
		Format:     "text",
	}

	p := location
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		m.SourceType = "url"
		if parsed, err := url.Parse(location); err == nil {
			p = parsed.Path
			if strings.Trim(p, "/") == "" {
				m.Title = parsed.Hostname()
			}
		}
	}

	if ext := strings.ToLower(path.Ext(p)); ext != "" {
		if format, ok := formatByExtension[ext]; ok {
			m.Format = format
		}
	}

	if m.Title == "" {
		base := path.Base(strings.ReplaceAll(p, "\\", "/"))
		m.Title = strings.TrimSuffix(base, path.Ext(base))
	}
	return m
}
