package render

import (
	"bytes"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

//go:embed defaults/*.tmpl
var defaultTemplatesFS embed.FS

// TemplateEngine renders a named template against a palette, per spec §4.3.
type TemplateEngine interface {
	Render(templateName string, ph *PaletteHelper) (string, error)
	AvailableTemplates() []string
	RequiredVariables(templateName string) ([]string, error)

	// HasCustomTemplate reports whether name resolves to a user-supplied
	// override rather than one of the embedded defaults, so a caller
	// rendering a structured format (json/yaml/toml) can prefer its native
	// marshaler for the default case while still honoring a user override
	// when one is present (spec §4.3's lookup order).
	HasCustomTemplate(name string) bool
}

// TextTemplateEngine is the default TemplateEngine, built on text/template,
// grounded on tinct's contrib/plugins/output/templater/template.go
// (TemplateProcessor.processTemplate: read -> Funcs -> Parse -> Execute) and
// internal/plugin/output/common/template_funcs.go's FuncMap. Templates come
// from an embedded default set, overridable by name from a user-supplied
// directory (spec §4.3's lookup order: override dir, then embedded default).
type TextTemplateEngine struct {
	overrideDir string
}

// NewTextTemplateEngine builds a TextTemplateEngine that looks in
// overrideDir (if non-empty) before falling back to the embedded defaults.
func NewTextTemplateEngine(overrideDir string) *TextTemplateEngine {
	return &TextTemplateEngine{overrideDir: overrideDir}
}

func (e *TextTemplateEngine) loadSource(name string) (string, error) {
	if e.overrideDir != "" {
		path := filepath.Join(e.overrideDir, name+".tmpl")
		if b, err := os.ReadFile(path); err == nil { // #nosec G304 - operator-configured template directory
			return string(b), nil
		}
	}
	b, err := defaultTemplatesFS.ReadFile("defaults/" + name + ".tmpl")
	if err != nil {
		return "", wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("no template named %q", name), false, err)
	}
	return string(b), nil
}

func (e *TextTemplateEngine) Render(templateName string, ph *PaletteHelper) (string, error) {
	src, err := e.loadSource(templateName)
	if err != nil {
		return "", err
	}
	tmpl, err := template.New(templateName).Funcs(templateFuncs()).Parse(src)
	if err != nil {
		return "", wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot parse template %q: %v", templateName, err), false, err)
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, ph); err != nil {
		return "", wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot execute template %q: %v", templateName, err), false, err)
	}
	return buf.String(), nil
}

// HasCustomTemplate reports whether name has a user-supplied override file
// under overrideDir, without falling back to the embedded default.
func (e *TextTemplateEngine) HasCustomTemplate(name string) bool {
	if e.overrideDir == "" {
		return false
	}
	_, err := os.Stat(filepath.Join(e.overrideDir, name+".tmpl"))
	return err == nil
}

// AvailableTemplates lists the embedded default template names; override
// templates placed under overrideDir shadow these names but don't widen the
// set (spec §4.3: the override directory is a lookup source, not a catalog).
func (e *TextTemplateEngine) AvailableTemplates() []string {
	entries, err := defaultTemplatesFS.ReadDir("defaults")
	if err != nil {
		return nil
	}
	names := make([]string, 0, len(entries))
	for _, ent := range entries {
		names = append(names, strings.TrimSuffix(ent.Name(), ".tmpl"))
	}
	return names
}

// RequiredVariables checks that templateName resolves and then returns the
// fixed list of PaletteHelper accessors; it does not scan the template
// source. PaletteHelper methods are fixed, so this mostly matters for
// documenting what a custom override template can rely on.
func (e *TextTemplateEngine) RequiredVariables(templateName string) ([]string, error) {
	_, err := e.loadSource(templateName)
	if err != nil {
		return nil, err
	}
	return []string{"Background", "Foreground", "Cursor", "AllColors", "GetByIndex"}, nil
}

// templateFuncs returns the FuncMap exposed to every template, grounded on
// tinct's internal/plugin/output/common/template_funcs.go TemplateFuncs.
func templateFuncs() template.FuncMap {
	return template.FuncMap{
		"hex":        func(cv ColorValue) string { return cv.Hex() },
		"hexNoHash":  func(cv ColorValue) string { return cv.HexNoHash() },
		"rgb":        func(cv ColorValue) string { return cv.RGB() },
		"rgba":       func(cv ColorValue) string { return cv.RGBA() },
		"rgbDecimal": func(cv ColorValue) string { return cv.RGBDecimal() },
		"withAlpha":  func(a float64, cv ColorValue) ColorValue { return cv.WithAlpha(a) },
		"trimPrefix": strings.TrimPrefix,
		"trimSuffix": strings.TrimSuffix,
		"replace":    strings.ReplaceAll,
		"toLower":    strings.ToLower,
		"toUpper":    strings.ToUpper,
	}
}
