package lsp

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hx-lsp/hxls/pkg/grammar"
	"github.com/mitchellh/mapstructure"
)

// Settings is the workspace configuration supplied once at startup through
// initializationOptions. Root directory lists are relative to the workspace
// folder. The values do not change at runtime.
type Settings struct {
	// Backend is the backend language selector: rust, python or go.
	Backend string `mapstructure:"lang" json:"lang"`
	// TemplateExt is the template file extension, without the dot.
	TemplateExt string `mapstructure:"templateExt" json:"templateExt"`
	// Templates lists the template root directories.
	Templates []string `mapstructure:"templates" json:"templates"`
	// Scripts lists the frontend script root directories (js/ts).
	Scripts []string `mapstructure:"jsTags" json:"jsTags"`
	// BackendRoots lists the backend source root directories.
	BackendRoots []string `mapstructure:"backendTags" json:"backendTags"`

	LogLevel string `mapstructure:"logLevel" json:"logLevel"`
}

// DecodeSettings reads Settings from the raw initializationOptions value.
func DecodeSettings(options any) (Settings, error) {
	var s Settings
	if options == nil {
		return s, fmt.Errorf("no initialization options provided")
	}
	if err := mapstructure.Decode(options, &s); err != nil {
		return s, fmt.Errorf("malformed initialization options: %w", err)
	}
	return s, s.Validate()
}

// Validate checks the startup invariants. Failures here are configuration
// errors: reported once, and the server does not index the workspace.
func (s *Settings) Validate() error {
	if s.TemplateExt == "" || strings.ContainsAny(s.TemplateExt, " .") {
		return fmt.Errorf("invalid template extension %q", s.TemplateExt)
	}
	backend, ok := grammar.BackendLanguage(s.Backend)
	if !ok {
		return fmt.Errorf("unsupported backend language %q", s.Backend)
	}
	if grammar.BackendExtension(backend) == s.TemplateExt {
		return fmt.Errorf("template extension %q collides with backend language %q", s.TemplateExt, s.Backend)
	}
	return nil
}

// BackendLanguage returns the configured backend language kind.
func (s *Settings) BackendLanguage() grammar.Language {
	kind, _ := grammar.BackendLanguage(s.Backend)
	return kind
}

// LanguageForPath maps a file path to its language kind. The template
// extension is checked first, then the fixed script extensions, then the
// configured backend extension. Unknown extensions report false: those files
// are not eligible for any grammar.
func (s *Settings) LanguageForPath(path string) (grammar.Language, bool) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	switch {
	case ext == "":
		return grammar.LanguageUnknown, false
	case ext == s.TemplateExt:
		return grammar.LanguageTemplate, true
	case ext == "js" || ext == "jsx":
		return grammar.LanguageJavaScript, true
	case ext == "ts" || ext == "tsx":
		return grammar.LanguageTypeScript, true
	case ext == grammar.BackendExtension(s.BackendLanguage()):
		return s.BackendLanguage(), true
	default:
		return grammar.LanguageUnknown, false
	}
}

// scanRoots groups the configured root directories with the extensions
// searched under each of them.
func (s *Settings) scanRoots() []scanRoot {
	var roots []scanRoot
	for _, dir := range s.Templates {
		roots = append(roots, scanRoot{dir: dir, extensions: []string{s.TemplateExt}})
	}
	for _, dir := range s.Scripts {
		roots = append(roots, scanRoot{dir: dir, extensions: []string{"js", "jsx", "ts", "tsx"}})
	}
	for _, dir := range s.BackendRoots {
		roots = append(roots, scanRoot{dir: dir, extensions: []string{grammar.BackendExtension(s.BackendLanguage())}})
	}
	return roots
}

type scanRoot struct {
	dir        string
	extensions []string
}
