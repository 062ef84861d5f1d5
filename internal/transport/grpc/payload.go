package grpc

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/vecfeed/internal/domain/record"
)

// PayloadEncoding tags every data chunk: a JSON array of domain objects.
const PayloadEncoding = "json/v1"

type recruitDTO struct {
	ID              string    `json:"id"`
	Position        string    `json:"position"`
	CompanyName     string    `json:"company_name"`
	ExperienceYears *int      `json:"experience_years"`
	PrimaryKeyword  string    `json:"primary_keyword,omitempty"`
	EnglishLevel    string    `json:"english_level,omitempty"`
	PublishedAt     string    `json:"published_at,omitempty"`
	Skills          []string  `json:"skills"`
	LongDescription string    `json:"long_description,omitempty"`
	DescriptionLang string    `json:"description_lang,omitempty"`
	SkillsVector    []float32 `json:"skills_vector"`
}

type candidateDTO struct {
	CandidateID      string    `json:"candidate_id"`
	PositionCategory string    `json:"position_category"`
	ExperienceYears  *int      `json:"experience_years"`
	OriginalResume   string    `json:"original_resume"`
	ResumeLang       string    `json:"resume_lang,omitempty"`
	MoreInfo         string    `json:"moreinfo,omitempty"`
	LookingFor       string    `json:"looking_for,omitempty"`
	Skills           []string  `json:"skills"`
	SkillsVector     []float32 `json:"skills_vector"`
}

type skillDictionaryDTO struct {
	Skill            string    `json:"skill"`
	PositionCategory string    `json:"position_category"`
	SkillVector      []float32 `json:"skill_vector"`
}

func toDTO(r record.Record) (any, error) {
	switch v := r.(type) {
	case record.Recruit:
		f := v.Fields()
		return recruitDTO{
			ID: f.ID, Position: f.Position, CompanyName: f.CompanyName,
			ExperienceYears: f.ExperienceYears, PrimaryKeyword: f.PrimaryKeyword,
			EnglishLevel: f.EnglishLevel, PublishedAt: f.PublishedAt, Skills: f.Skills,
			LongDescription: f.LongDescription, DescriptionLang: f.DescriptionLang,
			SkillsVector: f.SkillsVector,
		}, nil
	case record.Candidate:
		f := v.Fields()
		return candidateDTO{
			CandidateID: f.CandidateID, PositionCategory: f.PositionCategory,
			ExperienceYears: f.ExperienceYears, OriginalResume: f.OriginalResume,
			ResumeLang: f.ResumeLang, MoreInfo: f.MoreInfo, LookingFor: f.LookingFor,
			Skills: f.Skills, SkillsVector: f.SkillsVector,
		}, nil
	case record.SkillDictionary:
		f := v.Fields()
		return skillDictionaryDTO{
			Skill: f.Skill, PositionCategory: f.PositionCategory, SkillVector: f.SkillVector,
		}, nil
	default:
		return nil, fmt.Errorf("payload: unsupported record %T", r)
	}
}

// EncodeChunk serializes records as one self-contained JSON array.
func EncodeChunk(recs []record.Record) ([]byte, error) {
	items := make([]any, len(recs))
	for i, r := range recs {
		dto, err := toDTO(r)
		if err != nil {
			return nil, err
		}
		items[i] = dto
	}
	b, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("payload: encode %d records: %w", len(recs), err)
	}
	return b, nil
}

// DecodeChunkLen returns the number of objects in a JSON array chunk.
func DecodeChunkLen(chunk []byte) (int, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(chunk, &items); err != nil {
		return 0, fmt.Errorf("payload: decode: %w", err)
	}
	return len(items), nil
}
