package record

import "github.com/kailas-cloud/vecfeed/internal/domain/schema"

// SkillDictionaryFields are the canonical attributes of a dictionary entry.
type SkillDictionaryFields struct {
	Skill            string
	PositionCategory string
	SkillVector      []float32
}

// SkillDictionary is one validated skill dictionary entry.
// The entry names a single skill, so Skills returns [Skill].
type SkillDictionary struct {
	f SkillDictionaryFields
}

// NewSkillDictionary validates and creates a dictionary entry.
func NewSkillDictionary(f SkillDictionaryFields, dim int) (SkillDictionary, error) {
	err := firstErr(
		requireText("skill", f.Skill),
		requireText("position_category", f.PositionCategory),
		checkEmbedding("skill_vector", f.SkillVector, dim),
	)
	if err != nil {
		return SkillDictionary{}, err
	}
	f.SkillVector = cloneVector(f.SkillVector)
	return SkillDictionary{f: f}, nil
}

func (s SkillDictionary) ID() string { return s.f.Skill }
func (s SkillDictionary) Domain() schema.Name { return schema.SkillDictionary }
func (s SkillDictionary) Skills() []string { return []string{s.f.Skill} }
func (s SkillDictionary) Embedding() []float32 { return s.f.SkillVector }

// Fields returns a copy of all attributes.
func (s SkillDictionary) Fields() SkillDictionaryFields {
	f := s.f
	f.SkillVector = cloneVector(s.f.SkillVector)
	return f
}

func (SkillDictionary) sealed() {}
