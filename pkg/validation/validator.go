// Package validation checks caller arguments against a template's declared argument schema.
package validation

import (
	"context"
	"log/slog"
	"maps"
	"slices"

	"github.com/dukex/reportgen/pkg/models"
)

// TemplateLookup is the part of the template registry the validator needs.
type TemplateLookup interface {
	GetTemplate(ctx context.Context, id string) (*models.Template, error)
	SyncIndex(ctx context.Context, force bool) (*models.Index, error)
}

type Validator struct {
	templates TemplateLookup
	logger    *slog.Logger
}

func NewValidator(templates TemplateLookup, logger *slog.Logger) *Validator {
	return &Validator{
		templates: templates,
		logger:    logger.With("module", "validator"),
	}
}

// Validate resolves the template, checks required arguments and returns the
// processing module with the normalized process args. An unknown template
// triggers one index sync before being rejected.
func (v *Validator) Validate(ctx context.Context, templateID string, args map[string]any) (string, map[string]any, error) {
	tmpl, err := v.templates.GetTemplate(ctx, templateID)
	if err != nil {
		return "", nil, err
	}

	if tmpl == nil {
		v.logger.InfoContext(ctx, "Template not in index; re-syncing", "template_id", templateID)

		index, err := v.templates.SyncIndex(ctx, false)
		if err != nil {
			return "", nil, err
		}

		tmpl = index.Find(templateID)
		if tmpl == nil {
			return "", nil, &ValidationError{TemplateID: templateID, UnknownID: true}
		}
	}

	missing := make([]string, 0)

	for _, key := range tmpl.Args.Required {
		if _, ok := args[key]; !ok {
			missing = append(missing, key)
		}
	}

	if len(missing) > 0 {
		slices.Sort(missing)

		return "", nil, &ValidationError{TemplateID: templateID, MissingKeys: slices.Compact(missing)}
	}

	return tmpl.ModuleName(), ProcessArgs(tmpl.Args, args), nil
}

// ProcessArgs keeps the declared keys of args and fills omitted ones from the defaults.
func ProcessArgs(schema models.ArgsSchema, args map[string]any) map[string]any {
	processed := make(map[string]any, len(schema.Required)+len(schema.Optional))

	for _, key := range slices.Concat(schema.Required, schema.Optional) {
		if value, ok := args[key]; ok {
			processed[key] = value
		}
	}

	for key, value := range maps.All(schema.Defaults) {
		if _, ok := processed[key]; !ok {
			processed[key] = value
		}
	}

	return processed
}
