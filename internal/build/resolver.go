package build

import (
	"fmt"
	"slices"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/pagecraft/engine/internal/models"
	appErr "github.com/pagecraft/engine/pkg/errors"
)

var validate = validator.New()

// ResolveDefaults returns every schema key mapped to its declared default.
// Fields without a default map to nil so the key is still part of the
// resolved set.
func ResolveDefaults(schema []models.SchemaField) map[string]any {
	out := make(map[string]any, len(schema))
	for _, f := range schema {
		if f.Key == "" {
			continue
		}
		out[f.Key] = f.Default
	}
	return out
}

// Merge applies overrides on top of defaults. Overrides always win; keys
// missing from defaults are dropped because the schema decides which
// placeholders exist.
func Merge(defaults, overrides map[string]any) map[string]any {
	out := make(map[string]any, len(defaults))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range overrides {
		if _, ok := defaults[k]; ok {
			out[k] = v
		}
	}
	return out
}

// ValidateOverrides checks that every override key is declared by the
// schema and that its value matches the field type. nil clears an override
// and is always accepted.
func ValidateOverrides(schema []models.SchemaField, overrides map[string]any) error {
	fields := make(map[string]models.SchemaField, len(schema))
	for _, f := range schema {
		fields[f.Key] = f
	}

	var problems []string
	for key, value := range overrides {
		f, ok := fields[key]
		if !ok {
			problems = append(problems, fmt.Sprintf("%s: not declared by template", key))
			continue
		}
		if value == nil {
			continue
		}
		if msg := checkValue(f, value); msg != "" {
			problems = append(problems, fmt.Sprintf("%s: %s", key, msg))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	slices.Sort(problems)
	return appErr.New(appErr.CodeInvalid, "invalid config overrides").WithMeta("fields", problems)
}

func checkValue(f models.SchemaField, value any) string {
	switch f.Type {
	case models.FieldNumber:
		switch value.(type) {
		case float64, float32, int, int32, int64:
			return ""
		}
		return "must be a number"
	case models.FieldBoolean:
		if _, ok := value.(bool); !ok {
			return "must be a boolean"
		}
		return ""
	}

	s, ok := value.(string)
	if !ok {
		return "must be a string"
	}
	if f.Required && strings.TrimSpace(s) == "" {
		return "is required"
	}
	switch f.Type {
	case models.FieldSelect:
		if !slices.Contains(f.Options, s) {
			return fmt.Sprintf("must be one of %s", strings.Join(f.Options, ", "))
		}
	case models.FieldColor:
		if s != "" && validate.Var(s, "hexcolor|rgb|rgba|hsl|hsla") != nil {
			return "must be a color"
		}
	case models.FieldURL:
		if s != "" && validate.Var(s, "url") != nil {
			return "must be a URL"
		}
	case models.FieldImage:
		if s != "" && validate.Var(s, "url|startswith=/|startswith=./") != nil {
			return "must be a URL or path"
		}
	}
	return ""
}
