// Package models defines the data types shared by the template registry,
// the report pipeline and the persistence layer.
package models

import (
	"encoding/json"
	"strings"
)

const (
	DefaultHTMLFile  = "template.html"
	DefaultLogicFile = "logic.py"
	DefaultTestFile  = "test.py"

	DefaultModule        = "generic"
	DefaultPageSize      = "A4"
	OrientationLandscape = "L"
	OrientationPortrait  = "P"
)

// Template is a remotely authored report template as declared in the index document.
type Template struct {
	ID      string         `json:"id" validate:"required"`
	Path    string         `json:"path" validate:"required"`
	Module  string         `json:"module,omitempty"`
	Version string         `json:"version,omitempty"`
	Files   TemplateFiles  `json:"files,omitempty"`
	Args    ArgsSchema     `json:"args,omitempty"`
	Meta    map[string]any `json:"meta,omitempty"`
	PDF     map[string]any `json:"pdf,omitempty"`

	// Raw is the template object exactly as the index declared it, including
	// keys that have no field above.
	Raw json.RawMessage `json:"-"`
}

func (t *Template) UnmarshalJSON(data []byte) error {
	type plain Template

	var decoded plain

	err := DecodeJSON(data, &decoded)
	if err != nil {
		return err
	}

	*t = Template(decoded)
	t.Args.Defaults = normalizeMap(t.Args.Defaults)
	t.Meta = normalizeMap(t.Meta)
	t.PDF = normalizeMap(t.PDF)
	t.Raw = append(json.RawMessage(nil), data...)

	return nil
}

// Declaration encodes the fields the registry acts on. Its hash is the
// template fingerprint.
func (t *Template) Declaration() ([]byte, error) {
	return json.Marshal(t)
}

// Document returns the template object as declared in the index, falling back
// to the encoded declaration for templates built in code.
func (t *Template) Document() ([]byte, error) {
	if len(t.Raw) > 0 {
		return t.Raw, nil
	}

	return t.Declaration()
}

// TemplateFiles maps the logical asset names to file names relative to Template.Path.
type TemplateFiles struct {
	HTML  string `json:"html,omitempty"`
	Logic string `json:"logic,omitempty"`
	Test  string `json:"test,omitempty"`
}

// ArgsSchema declares which caller arguments a template accepts.
type ArgsSchema struct {
	Required []string       `json:"required,omitempty"`
	Optional []string       `json:"optional,omitempty"`
	Defaults map[string]any `json:"defaults,omitempty"`
}

// Index is the remote catalog of templates.
type Index struct {
	Templates []Template `json:"templates"`
}

// Find returns the template with the given id, or nil.
func (i *Index) Find(id string) *Template {
	if i == nil {
		return nil
	}

	for idx := range i.Templates {
		if i.Templates[idx].ID == id {
			return &i.Templates[idx]
		}
	}

	return nil
}

// Resolved returns the file mapping with defaults applied to empty entries.
func (f TemplateFiles) Resolved() TemplateFiles {
	resolved := f
	if resolved.HTML == "" {
		resolved.HTML = DefaultHTMLFile
	}

	if resolved.Logic == "" {
		resolved.Logic = DefaultLogicFile
	}

	if resolved.Test == "" {
		resolved.Test = DefaultTestFile
	}

	return resolved
}

// ModuleName returns the declared processing module, "generic" when unset.
func (t *Template) ModuleName() string {
	if t.Module == "" {
		return DefaultModule
	}

	return t.Module
}

// PDFOptions holds the rendering options forwarded to the PDF renderer.
type PDFOptions struct {
	PageSize    string `json:"page_size"`
	Orientation string `json:"orientation"`
	Header      string `json:"header,omitempty"`
	Footer      string `json:"footer,omitempty"`
}

// Landscape reports whether the orientation asks for landscape pages.
func (o PDFOptions) Landscape() bool {
	switch strings.ToLower(o.Orientation) {
	case "l", "landscape":
		return true
	default:
		return false
	}
}

// PDFOptions extracts rendering options from meta.pdf, falling back to a
// top-level pdf block. Page size defaults to A4 and orientation to landscape;
// header and footer stay empty unless declared.
func (t *Template) PDFOptions() PDFOptions {
	opts := PDFOptions{
		PageSize:    DefaultPageSize,
		Orientation: OrientationLandscape,
	}

	block := t.PDF
	if raw, ok := t.Meta["pdf"].(map[string]any); ok {
		block = raw
	}

	if v, ok := block["page_size"].(string); ok && v != "" {
		opts.PageSize = v
	}

	if v, ok := block["orientation"].(string); ok && v != "" {
		opts.Orientation = v
	}

	if v, ok := block["header"].(string); ok {
		opts.Header = v
	}

	if v, ok := block["footer"].(string); ok {
		opts.Footer = v
	}

	return opts
}

// Bundle is the complete cached asset set for one template.
type Bundle struct {
	Meta  Template `json:"meta"`
	HTML  string   `json:"html"`
	Logic string   `json:"logic"`
	Test  string   `json:"test"`
}
