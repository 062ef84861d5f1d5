// Package record defines the validated record variants streamed to the batch writer.
package record

import (
	"math"
	"slices"

	"github.com/google/uuid"

	"github.com/kailas-cloud/vecfeed/internal/domain"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
)

// Record is a validated row of one domain. The set of implementations is
// closed: Recruit, Candidate and SkillDictionary.
type Record interface {
	ID() string
	Domain() schema.Name
	Skills() []string
	Embedding() []float32
	sealed()
}

func requireText(field, v string) error {
	if v == "" {
		return domain.NewValidationError(field, "is required")
	}
	return nil
}

func requireUUID(field, v string) error {
	if err := requireText(field, v); err != nil {
		return err
	}
	if _, err := uuid.Parse(v); err != nil {
		return domain.NewValidationError(field, "must be a UUID, got %q", v)
	}
	return nil
}

func checkSkills(field string, skills []string) error {
	if len(skills) == 0 {
		return domain.NewValidationError(field, "must contain at least one skill")
	}
	return nil
}

func checkExperience(field string, years *int) error {
	if years != nil && *years < 0 {
		return domain.NewValidationError(field, "must be non-negative, got %d", *years)
	}
	return nil
}

// checkEmbedding enforces the domain width and finite components.
func checkEmbedding(field string, v []float32, dim int) error {
	if v == nil {
		return domain.NewValidationError(field, "is required")
	}
	if len(v) != dim {
		return domain.NewValidationError(field, "expected %d dimensions, got %d", dim, len(v))
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return domain.NewValidationError(field, "component %d is not finite", i)
		}
	}
	return nil
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func cloneInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneStrings(s []string) []string { return slices.Clone(s) }

func cloneVector(v []float32) []float32 { return slices.Clone(v) }
