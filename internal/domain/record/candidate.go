package record

import "github.com/kailas-cloud/vecfeed/internal/domain/schema"

// CandidateFields are the canonical attributes of a candidate profile.
type CandidateFields struct {
	CandidateID      string
	PositionCategory string
	ExperienceYears  *int
	OriginalResume   string
	ResumeLang       string
	MoreInfo         string
	LookingFor       string
	Skills           []string
	SkillsVector     []float32
}

// Candidate is a validated candidate profile (immutable value object).
type Candidate struct {
	f CandidateFields
}

// NewCandidate validates and creates a Candidate record.
func NewCandidate(f CandidateFields, dim int) (Candidate, error) {
	err := firstErr(
		requireUUID("candidate_id", f.CandidateID),
		requireText("position_category", f.PositionCategory),
		requireText("original_resume", f.OriginalResume),
		checkExperience("experience_years", f.ExperienceYears),
		checkSkills("skills", f.Skills),
		checkEmbedding("skills_vector", f.SkillsVector, dim),
	)
	if err != nil {
		return Candidate{}, err
	}
	f.ExperienceYears = cloneInt(f.ExperienceYears)
	f.Skills = cloneStrings(f.Skills)
	f.SkillsVector = cloneVector(f.SkillsVector)
	return Candidate{f: f}, nil
}

func (c Candidate) ID() string { return c.f.CandidateID }
func (c Candidate) Domain() schema.Name { return schema.Candidate }
func (c Candidate) Skills() []string { return c.f.Skills }
func (c Candidate) Embedding() []float32 { return c.f.SkillsVector }

// Fields returns a copy of all attributes.
func (c Candidate) Fields() CandidateFields {
	f := c.f
	f.ExperienceYears = cloneInt(c.f.ExperienceYears)
	f.Skills = cloneStrings(c.f.Skills)
	f.SkillsVector = cloneVector(c.f.SkillsVector)
	return f
}

func (Candidate) sealed() {}
