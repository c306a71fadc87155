// Package template loads and merges the document templates used for legal
// drafting. Templates carry {{PLACEHOLDER}} slots filled at generation time.
// A YAML manifest maps document types to template files so deployments can
// override the embedded defaults with a directory of their own.
package template

import (
	"embed"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed templates/*.md templates/manifest.yaml
var embeddedFS embed.FS

// Templates shorter than this are assumed truncated and rejected.
const minTemplateSize = 100

var placeholderPattern = regexp.MustCompile(`\{\{([A-Z_]+)\}\}`)

type manifest struct {
	Templates map[string]string `yaml:"templates"`
}

// Library resolves document types to template content.
type Library struct {
	fsys  fs.FS
	files map[string]string
}

// NewLibrary returns a library over the embedded default templates.
func NewLibrary() (*Library, error) {
	sub, err := fs.Sub(embeddedFS, "templates")
	if err != nil {
		return nil, err
	}
	return newLibrary(sub)
}

// LoadLibrary returns a library over a template directory on disk. The
// directory must contain a manifest.yaml next to the template files.
func LoadLibrary(fsys fs.FS) (*Library, error) {
	return newLibrary(fsys)
}

func newLibrary(fsys fs.FS) (*Library, error) {
	data, err := fs.ReadFile(fsys, "manifest.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading template manifest: %w", err)
	}

	var m manifest
	dec := yaml.NewDecoder(strings.NewReader(string(data)))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parsing template manifest: %w", err)
	}
	if len(m.Templates) == 0 {
		return nil, fmt.Errorf("template manifest lists no templates")
	}

	return &Library{fsys: fsys, files: m.Templates}, nil
}

// ForDocumentType returns the template for a document type.
func (l *Library) ForDocumentType(documentType string) (string, error) {
	name, ok := l.files[strings.ToLower(documentType)]
	if !ok {
		return "", fmt.Errorf("no template for document type %q", documentType)
	}

	data, err := fs.ReadFile(l.fsys, name)
	if err != nil {
		return "", fmt.Errorf("loading template %s: %w", name, err)
	}
	if len(data) < minTemplateSize {
		return "", fmt.Errorf("template %s is too short (%d bytes)", name, len(data))
	}
	return string(data), nil
}

// Placeholders extracts the unique {{PLACEHOLDER}} names from a template,
// sorted for deterministic output.
func Placeholders(tpl string) []string {
	seen := map[string]struct{}{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(tpl, -1) {
		seen[m[1]] = struct{}{}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Merge substitutes placeholder values into a template. Placeholders without
// a value are left in place so a reviewer can spot the gap.
func Merge(tpl string, vars map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(tpl, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		if value, ok := vars[name]; ok {
			return value
		}
		return match
	})
}
