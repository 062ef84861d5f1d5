package preprocess

import (
	"github.com/kailas-cloud/vecfeed/internal/domain/record"
	"github.com/kailas-cloud/vecfeed/internal/source"
)

var recruitRules = rules{
	rename: map[string]string{
		"Position":              "position",
		"Company Name":          "company_name",
		"Exp Years":             "experience_years",
		"Primary Keyword":       "primary_keyword",
		"English Level":         "english_level",
		"Published":             "published_at",
		"Long Description":      "long_description",
		"Long Description_lang": "description_lang",
		"skill_vector":          "skills_vector",
	},
	coerce: map[string]coercer{
		"experience_years": toYears,
		"skills":           toStrings,
		"skills_vector":    toVector,
	},
	build: func(row source.Row, dim int) (record.Record, error) {
		return record.NewRecruit(record.RecruitFields{
			ID:              text(row, "id"),
			Position:        text(row, "position"),
			CompanyName:     text(row, "company_name"),
			ExperienceYears: years(row, "experience_years"),
			PrimaryKeyword:  text(row, "primary_keyword"),
			EnglishLevel:    text(row, "english_level"),
			PublishedAt:     text(row, "published_at"),
			Skills:          strs(row, "skills"),
			LongDescription: text(row, "long_description"),
			DescriptionLang: text(row, "description_lang"),
			SkillsVector:    vector(row, "skills_vector"),
		}, dim)
	},
}

var candidateRules = rules{
	rename: map[string]string{
		"id":               "candidate_id",
		"Position":         "position_category",
		"Experience Years": "experience_years",
		"Exp Years":        "experience_years",
		"CV":               "original_resume",
		"CV_lang":          "resume_lang",
		"Moreinfo":         "moreinfo",
		"Looking For":      "looking_for",
		"skill_vector":     "skills_vector",
	},
	coerce: map[string]coercer{
		"experience_years": toYears,
		"skills":           toStrings,
		"skills_vector":    toVector,
	},
	build: func(row source.Row, dim int) (record.Record, error) {
		return record.NewCandidate(record.CandidateFields{
			CandidateID:      text(row, "candidate_id"),
			PositionCategory: text(row, "position_category"),
			ExperienceYears:  years(row, "experience_years"),
			OriginalResume:   text(row, "original_resume"),
			ResumeLang:       text(row, "resume_lang"),
			MoreInfo:         text(row, "moreinfo"),
			LookingFor:       text(row, "looking_for"),
			Skills:           strs(row, "skills"),
			SkillsVector:     vector(row, "skills_vector"),
		}, dim)
	},
}

var skillDictionaryRules = rules{
	rename: map[string]string{
		"name":     "skill",
		"category": "position_category",
		"vector":   "skill_vector",
	},
	coerce: map[string]coercer{
		"skill_vector": toVector,
	},
	build: func(row source.Row, dim int) (record.Record, error) {
		return record.NewSkillDictionary(record.SkillDictionaryFields{
			Skill:            text(row, "skill"),
			PositionCategory: text(row, "position_category"),
			SkillVector:      vector(row, "skill_vector"),
		}, dim)
	},
}
