// Package schema holds the immutable per-domain ingestion schema.
package schema

import (
	"fmt"
	"slices"
	"sort"

	"github.com/kailas-cloud/vecfeed/internal/domain"
)

// Name identifies an ingestion domain.
type Name string

// Known domains.
const (
	Recruit         Name = "recruit"
	Candidate       Name = "candidate"
	SkillDictionary Name = "skill_dic"
)

// Known returns every domain the pipeline can preprocess, in stable order.
func Known() []Name { return []Name{Recruit, Candidate, SkillDictionary} }

// DefaultDimension is the embedding width used when configuration omits one.
const DefaultDimension = 384

// canonical field lists, in output order. The identifier comes first.
var (
	recruitFields = []string{
		"id", "position", "company_name", "experience_years", "primary_keyword",
		"english_level", "published_at", "skills", "long_description",
		"description_lang", "skills_vector",
	}
	candidateFields = []string{
		"candidate_id", "position_category", "experience_years", "original_resume",
		"resume_lang", "moreinfo", "looking_for", "skills", "skills_vector",
	}
	skillDictionaryFields = []string{"skill", "position_category", "skill_vector"}
)

// DomainConfig is the immutable schema of one domain.
type DomainConfig struct {
	name      Name
	dimension int
	idField   string
	skills    string // "" when the skill list is derived from the identifier
	vector    string
	fields    []string
}

// New validates and creates a DomainConfig for a known domain.
func New(name Name, dimension int) (DomainConfig, error) {
	if dimension <= 0 {
		return DomainConfig{}, fmt.Errorf("domain %q: embedding dimension must be positive, got %d", name, dimension)
	}
	switch name {
	case Recruit:
		return DomainConfig{
			name: name, dimension: dimension,
			idField: "id", skills: "skills", vector: "skills_vector", fields: recruitFields,
		}, nil
	case Candidate:
		return DomainConfig{
			name: name, dimension: dimension,
			idField: "candidate_id", skills: "skills", vector: "skills_vector", fields: candidateFields,
		}, nil
	case SkillDictionary:
		return DomainConfig{
			name: name, dimension: dimension,
			idField: "skill", vector: "skill_vector", fields: skillDictionaryFields,
		}, nil
	default:
		return DomainConfig{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, name)
	}
}

// Name returns the domain name.
func (c DomainConfig) Name() Name { return c.name }

// EmbeddingDimension returns the required embedding width.
func (c DomainConfig) EmbeddingDimension() int { return c.dimension }

// IDField returns the canonical name of the record identifier.
func (c DomainConfig) IDField() string { return c.idField }

// SkillsField returns the canonical name of the skill list, or "" when the
// identifier itself is the single skill.
func (c DomainConfig) SkillsField() string { return c.skills }

// VectorField returns the canonical name of the embedding column.
func (c DomainConfig) VectorField() string { return c.vector }

// Fields returns a copy of the canonical field list in output order.
func (c DomainConfig) Fields() []string { return slices.Clone(c.fields) }

// Registry maps domain names to their schema. Built once, read-only afterwards.
type Registry struct {
	domains map[Name]DomainConfig
}

// NewRegistry builds a registry from name → embedding dimension.
// A zero dimension falls back to DefaultDimension.
func NewRegistry(dimensions map[string]int) (*Registry, error) {
	r := &Registry{domains: make(map[Name]DomainConfig, len(dimensions))}
	for raw, dim := range dimensions {
		if dim == 0 {
			dim = DefaultDimension
		}
		cfg, err := New(Name(raw), dim)
		if err != nil {
			return nil, err
		}
		r.domains[cfg.name] = cfg
	}
	return r, nil
}

// Resolve returns the schema for a domain name.
func (r *Registry) Resolve(name string) (DomainConfig, error) {
	cfg, ok := r.domains[Name(name)]
	if !ok {
		return DomainConfig{}, fmt.Errorf("%w: %q", domain.ErrUnknownDomain, name)
	}
	return cfg, nil
}

// Names returns the registered domain names sorted.
func (r *Registry) Names() []string {
	out := make([]string, 0, len(r.domains))
	for n := range r.domains {
		out = append(out, string(n))
	}
	sort.Strings(out)
	return out
}
