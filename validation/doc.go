// Package validation validates streamkit configuration and arguments.
//
// It supports struct tag validation (using go-playground/validator) and
// programmatic validation with error collection. Both report failures as an
// INVALID_CONFIG *errors.AppError whose details list every failing field.
//
// # Struct Tag Validation
//
//	type PipelineConfig struct {
//	    Workers int `mapstructure:"workers" validate:"gte=1,lte=256"`
//	}
//	err := validation.Validate(cfg)
//
// # Programmatic Validation
//
//	v := validation.New()
//	v.Min("limit", limit, 0)
//	err := v.Validate()
package validation
