package record

import "github.com/kailas-cloud/vecfeed/internal/domain/schema"

// RecruitFields are the canonical attributes of a job posting.
type RecruitFields struct {
	ID              string
	Position        string
	CompanyName     string
	ExperienceYears *int
	PrimaryKeyword  string
	EnglishLevel    string
	PublishedAt     string
	Skills          []string
	LongDescription string
	DescriptionLang string
	SkillsVector    []float32
}

// Recruit is a validated job posting (immutable value object).
type Recruit struct {
	f RecruitFields
}

// NewRecruit validates and creates a Recruit record.
// id must be a UUID; position and company_name are required; the skills
// vector must have exactly dim components.
func NewRecruit(f RecruitFields, dim int) (Recruit, error) {
	err := firstErr(
		requireUUID("id", f.ID),
		requireText("position", f.Position),
		requireText("company_name", f.CompanyName),
		checkExperience("experience_years", f.ExperienceYears),
		checkSkills("skills", f.Skills),
		checkEmbedding("skills_vector", f.SkillsVector, dim),
	)
	if err != nil {
		return Recruit{}, err
	}
	f.ExperienceYears = cloneInt(f.ExperienceYears)
	f.Skills = cloneStrings(f.Skills)
	f.SkillsVector = cloneVector(f.SkillsVector)
	return Recruit{f: f}, nil
}

// ID returns the posting identifier.
func (r Recruit) ID() string { return r.f.ID }

// Domain returns schema.Recruit.
func (r Recruit) Domain() schema.Name { return schema.Recruit }

// Skills returns the required skills.
func (r Recruit) Skills() []string { return r.f.Skills }

// Embedding returns the skills vector.
func (r Recruit) Embedding() []float32 { return r.f.SkillsVector }

// Fields returns a copy of all attributes.
func (r Recruit) Fields() RecruitFields {
	f := r.f
	f.ExperienceYears = cloneInt(r.f.ExperienceYears)
	f.Skills = cloneStrings(r.f.Skills)
	f.SkillsVector = cloneVector(r.f.SkillsVector)
	return f
}

func (Recruit) sealed() {}
