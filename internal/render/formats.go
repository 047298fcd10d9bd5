package render

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/jmylchreest/wallhue/internal/wallcore"
)

// Format names the serialization a palette can be rendered to (spec §4.3).
type Format string

const (
	FormatJSON  Format = "json"
	FormatYAML  Format = "yaml"
	FormatTOML  Format = "toml"
	FormatCSS   Format = "css"
	FormatShell Format = "shell"
)

// FileExtension returns the conventional output filename extension for a
// format, used to build "colors.<ext>" output paths (spec §4.3); only shell
// differs from its format name ("sh").
func FileExtension(format Format) string {
	switch format {
	case FormatShell:
		return "sh"
	default:
		return string(format)
	}
}

// PaletteOutputSet maps a format name to the absolute path of the rendered
// file for that format, per spec §3's PaletteOutputSet.
type PaletteOutputSet map[string]string

// structuredDoc is the marshaling shape for the json/yaml/toml formats,
// grounded on the struct-tag-per-format convention other_examples'
// wallpaper/theme tools (heimdall-cli, omarchy-theme-generator) use for
// their own generated color docs.
type structuredDoc struct {
	Background string   `json:"background" yaml:"background" toml:"background"`
	Foreground string   `json:"foreground" yaml:"foreground" toml:"foreground"`
	Cursor     string   `json:"cursor" yaml:"cursor" toml:"cursor"`
	Colors     []string `json:"colors" yaml:"colors" toml:"colors"`
}

func newStructuredDoc(ph *PaletteHelper) structuredDoc {
	colors := make([]string, ph.Count())
	for i, cv := range ph.AllColors() {
		colors[i] = cv.Hex()
	}
	return structuredDoc{
		Background: ph.Background().Hex(),
		Foreground: ph.Foreground().Hex(),
		Cursor:     ph.Cursor().Hex(),
		Colors:     colors,
	}
}

// marshalStructured renders doc through format's native marshaler: go-toml/v2
// for toml, gopkg.in/yaml.v3 for yaml, encoding/json for json. These three
// formats have a direct structured representation, so the default (no user
// override) rendering goes through the real marshaler rather than a
// hand-written template, the way the rest of the corpus's config/output
// tooling serializes structured docs.
func marshalStructured(f Format, doc structuredDoc) (string, error) {
	switch f {
	case FormatJSON:
		b, err := json.MarshalIndent(doc, "", "  ")
		return string(b) + "\n", err
	case FormatYAML:
		b, err := yaml.Marshal(doc)
		return string(b), err
	case FormatTOML:
		b, err := toml.Marshal(doc)
		return string(b), err
	default:
		return "", fmt.Errorf("marshalStructured: unsupported format %q", f)
	}
}

func isStructuredFormat(f Format) bool {
	switch f {
	case FormatJSON, FormatYAML, FormatTOML:
		return true
	default:
		return false
	}
}

// Render renders p for each requested format and writes each result
// atomically to outDir/colors.<ext>. json/yaml/toml render through their
// native marshaler by default (structuredDoc) unless the caller has placed
// a "colors.<format>.tmpl" override in engine's override directory, in
// which case that template wins, per spec §4.3's override-then-default
// lookup order. css/shell have no natural structured representation, so
// they always render through engine (the embedded colors.css.tmpl/
// colors.shell.tmpl defaults, or a user override of either). A missing
// template or an execution/marshal error surfaces as TemplateFailed.
func Render(engine TemplateEngine, p *wallcore.Palette, outDir string, formats []Format) (PaletteOutputSet, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil { // #nosec G301 - operator-configured output directory
		return nil, wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot create output dir %s", outDir), false, err)
	}

	ph := NewPaletteHelper(p)
	doc := newStructuredDoc(ph)
	out := make(PaletteOutputSet, len(formats))
	for _, f := range formats {
		templateName := "colors." + string(f)

		var content string
		var err error
		if isStructuredFormat(f) && !engine.HasCustomTemplate(templateName) {
			content, err = marshalStructured(f, doc)
			if err != nil {
				return nil, wallcore.NewError(wallcore.ErrTemplateFailed, "render", fmt.Sprintf("cannot marshal %q", f), false, err)
			}
		} else {
			content, err = engine.Render(templateName, ph)
			if err != nil {
				return nil, err
			}
		}

		path := filepath.Join(outDir, "colors."+FileExtension(f))
		if err := WriteAtomic(path, []byte(content), 0o644); err != nil {
			return nil, err
		}
		out[string(f)] = path
	}
	return out, nil
}
