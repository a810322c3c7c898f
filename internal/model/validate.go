package model

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// minSpacing matches the engine's smallest accepted grid spacing.
const minSpacing = 0.005

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(validateSurface, SurfaceConfig{})
	validate.RegisterStructValidation(validateResolution, Resolution{})
}

// validateSurface requires the active mode's grid fields to be usable.
func validateSurface(sl validator.StructLevel) {
	s := sl.Current().Interface().(SurfaceConfig)
	switch s.Mode {
	case ModeSpacing:
		if s.XSpacing <= minSpacing {
			sl.ReportError(s.XSpacing, "xSpacing", "XSpacing", "gt", "0.005")
		}
		if s.YSpacing <= minSpacing {
			sl.ReportError(s.YSpacing, "ySpacing", "YSpacing", "gt", "0.005")
		}
	case ModeNumPoints:
		if s.NumX < 1 {
			sl.ReportError(s.NumX, "numX", "NumX", "gte", "1")
		}
		if s.NumY < 1 {
			sl.ReportError(s.NumY, "numY", "NumY", "gte", "1")
		}
	}
}

// validateResolution rejects spacings below the engine minimum. Zero means
// "let the engine derive it".
func validateResolution(sl validator.StructLevel) {
	r := sl.Current().Interface().(Resolution)
	if r.Mode != ModeSpacing {
		return
	}
	for name, v := range map[string]float64{"XSpacing": r.XSpacing, "YSpacing": r.YSpacing, "ZSpacing": r.ZSpacing} {
		if v != 0 && v <= minSpacing {
			sl.ReportError(v, name, name, "gt", "0.005")
		}
	}
}

// Validate checks the full model before it is replayed to the engine.
func Validate(m Model) error {
	return describe(validate.Struct(m))
}

// ValidateNewLightSource checks a light source that has no id yet.
func ValidateNewLightSource(ls LightSource) error {
	return describe(validate.StructExcept(ls, "ID"))
}

// ValidateNewZone checks a zone that has no id yet.
func ValidateNewZone(z Zone) error {
	return describe(validate.StructExcept(z, "ID"))
}

// describe flattens validator output into one readable error.
func describe(err error) error {
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s=%s", fe.Namespace(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s must satisfy %s", fe.Namespace(), fe.Tag()))
		}
	}
	return fmt.Errorf("invalid model: %s", strings.Join(parts, "; "))
}
