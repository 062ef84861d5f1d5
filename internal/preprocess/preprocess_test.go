package preprocess

import (
	"errors"
	"math"
	"reflect"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kailas-cloud/vecfeed/internal/domain"
	"github.com/kailas-cloud/vecfeed/internal/domain/record"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
	"github.com/kailas-cloud/vecfeed/internal/source"
)

const (
	uuidA = "0b5ad7b4-3c0f-4e41-9d43-0d1f1f0f4b01"
	uuidB = "0b5ad7b4-3c0f-4e41-9d43-0d1f1f0f4b02"
)

// --- Helpers ---

func newPre(t *testing.T, name schema.Name, dim int, logger *zap.Logger) *Preprocessor {
	t.Helper()
	cfg, err := schema.New(name, dim)
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	p, err := For(cfg, logger)
	if err != nil {
		t.Fatalf("For: %v", err)
	}
	return p
}

func rawRecruit(id string) source.Row {
	return source.Row{
		"id":                id,
		"Position":          "Go Developer",
		"Company Name":      "Acme",
		"Exp Years":         "3y",
		"Primary Keyword":   "Go",
		"English Level":     "upper",
		"Published":         "2024-01-02",
		"Long Description":  "build things",
		"skills":            []any{"Go", "gRPC"},
		"skill_vector":      []any{0.1, 0.2, 0.3},
		"__index_level_0__": int64(7),
		"normalized_skills": "go grpc",
		"Salary":            int64(5000),
	}
}

// --- Preprocess ---

func TestPreprocess_RecruitCanonical(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)

	out, st := p.Preprocess(source.Batch{rawRecruit(uuidA)})
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	row := out[0]

	cfg, _ := schema.New(schema.Recruit, 3)
	if len(row) != len(cfg.Fields()) {
		t.Errorf("expected %d canonical fields, got %d: %v", len(cfg.Fields()), len(row), row)
	}
	for _, f := range cfg.Fields() {
		if _, ok := row[f]; !ok {
			t.Errorf("missing canonical field %q", f)
		}
	}
	if row["company_name"] != "Acme" || row["published_at"] != "2024-01-02" {
		t.Errorf("rename failed: %v", row)
	}
	if row["experience_years"] != 3 {
		t.Errorf("expected experience_years 3, got %#v", row["experience_years"])
	}
	if row["description_lang"] != nil {
		t.Errorf("absent canonical field must be nil, got %#v", row["description_lang"])
	}
	if !reflect.DeepEqual(row["skills"], []string{"Go", "gRPC"}) {
		t.Errorf("unexpected skills %#v", row["skills"])
	}
	if !reflect.DeepEqual(row["skills_vector"], []float32{0.1, 0.2, 0.3}) {
		t.Errorf("unexpected vector %#v", row["skills_vector"])
	}

	if !reflect.DeepEqual(st.Unmapped, []string{"Salary"}) {
		t.Errorf("expected Salary unmapped, got %v", st.Unmapped)
	}
	if !reflect.DeepEqual(st.Irrelevant, []string{"__index_level_0__", "normalized_skills"}) {
		t.Errorf("unexpected irrelevant columns %v", st.Irrelevant)
	}
	if st.Input != 1 || st.Output != 1 || st.Dropped() != 0 {
		t.Errorf("unexpected stats %+v", st)
	}
}

func TestPreprocess_DoesNotMutateInput(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)
	in := source.Batch{rawRecruit(uuidA)}
	p.Preprocess(in)
	if _, ok := in[0]["Company Name"]; !ok {
		t.Fatal("input row was modified")
	}
}

func TestPreprocess_EmptySkillsDropped(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)

	empty := rawRecruit(uuidA)
	empty["skills"] = []any{}
	blank := rawRecruit(uuidB)
	blank["skills"] = []any{""}

	out, st := p.Preprocess(source.Batch{empty, blank})
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	if out[0]["id"] != uuidB {
		t.Errorf("expected the [\"\"] row to survive, got %v", out[0]["id"])
	}
	if st.EmptySkills != 1 {
		t.Errorf("expected EmptySkills 1, got %d", st.EmptySkills)
	}
}

func TestPreprocess_MissingEmbeddingDropped(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)

	nullVec := rawRecruit(uuidA)
	nullVec["skill_vector"] = nil
	nanVec := rawRecruit(uuidB)
	nanVec["skill_vector"] = math.NaN()
	ok := rawRecruit("0b5ad7b4-3c0f-4e41-9d43-0d1f1f0f4b03")

	out, st := p.Preprocess(source.Batch{nullVec, nanVec, ok})
	if len(out) != 1 || st.MissingEmbedding != 2 {
		t.Fatalf("expected 1 row and 2 dropped, got %d rows, stats %+v", len(out), st)
	}
}

func TestPreprocess_Idempotent(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)

	noExp := rawRecruit(uuidB)
	noExp["Exp Years"] = "no_exp"
	once, _ := p.Preprocess(source.Batch{rawRecruit(uuidA), noExp})
	twice, st := p.Preprocess(once)

	if !reflect.DeepEqual(once, twice) {
		t.Fatalf("second pass changed output:\n%v\n%v", once, twice)
	}
	if st.Dropped() != 0 || st.CellErrors != 0 || len(st.Unmapped) != 0 || len(st.Irrelevant) != 0 {
		t.Errorf("second pass must report nothing, got %+v", st)
	}
}

func TestPreprocess_CellErrorWarns(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := newPre(t, schema.Recruit, 3, zap.New(core))

	row := rawRecruit(uuidA)
	row["Exp Years"] = "about five"

	out, st := p.Preprocess(source.Batch{row})
	if len(out) != 1 {
		t.Fatalf("bad cell must not drop the row, got %d rows", len(out))
	}
	if out[0]["experience_years"] != nil {
		t.Errorf("expected null experience_years, got %#v", out[0]["experience_years"])
	}
	if st.CellErrors != 1 {
		t.Errorf("expected 1 cell error, got %d", st.CellErrors)
	}
	if logs.FilterMessage("unparseable cell set to null").Len() != 1 {
		t.Errorf("expected one coercion warning, got %v", logs.All())
	}
}

func TestPreprocess_CellWarningsCapped(t *testing.T) {
	core, logs := observer.New(zapcore.WarnLevel)
	p := newPre(t, schema.Recruit, 3, zap.New(core))

	var batch source.Batch
	for range 8 {
		row := rawRecruit(uuidA)
		row["Exp Years"] = "?"
		batch = append(batch, row)
	}
	_, st := p.Preprocess(batch)
	if st.CellErrors != 8 {
		t.Errorf("expected 8 cell errors, got %d", st.CellErrors)
	}
	if n := logs.FilterMessage("unparseable cell set to null").Len(); n != maxCellWarnings {
		t.Errorf("expected %d warnings, got %d", maxCellWarnings, n)
	}
	if logs.FilterMessage("further cell coercion warnings suppressed").Len() != 1 {
		t.Error("expected suppression summary")
	}
}

func TestPreprocess_SkillDictionary(t *testing.T) {
	p := newPre(t, schema.SkillDictionary, 2, nil)

	out, st := p.Preprocess(source.Batch{
		{"name": "Go", "category": "Backend", "vector": []any{1.0, 2.0}, "synonyms": []any{"golang"}},
		{"name": nil, "category": "Backend", "vector": []any{1.0, 2.0}},
	})
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	want := source.Row{"skill": "Go", "position_category": "Backend", "skill_vector": []float32{1, 2}}
	if !reflect.DeepEqual(out[0], want) {
		t.Errorf("expected %v, got %v", want, out[0])
	}
	if st.EmptySkills != 1 {
		t.Errorf("expected unnamed skill dropped, got %+v", st)
	}
	if !reflect.DeepEqual(st.Irrelevant, []string{"synonyms"}) {
		t.Errorf("expected synonyms dropped, got %v", st.Irrelevant)
	}
}

func TestPreprocess_CandidateRename(t *testing.T) {
	p := newPre(t, schema.Candidate, 2, nil)

	out, _ := p.Preprocess(source.Batch{{
		"id":               uuidA,
		"Position":         "Java",
		"Experience Years": 4.0,
		"CV":               "resume text",
		"Looking For":      "remote",
		"skills":           `["Java","Spring"]`,
		"skill_vector":     "[0.5, 0.25]",
	}})
	if len(out) != 1 {
		t.Fatalf("expected 1 row, got %d", len(out))
	}
	row := out[0]
	if row["candidate_id"] != uuidA || row["position_category"] != "Java" || row["experience_years"] != 4 {
		t.Errorf("unexpected row %v", row)
	}
	if !reflect.DeepEqual(row["skills"], []string{"Java", "Spring"}) {
		t.Errorf("unexpected skills %#v", row["skills"])
	}
}

func TestPreprocess_CanonicalColumnWinsOverRenamed(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)
	row := rawRecruit(uuidA)
	row["company_name"] = "Canonical Inc"

	out, _ := p.Preprocess(source.Batch{row})
	if out[0]["company_name"] != "Canonical Inc" {
		t.Errorf("expected canonical column to win, got %v", out[0]["company_name"])
	}
}

// --- Build ---

func TestBuild_Records(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)
	rows, _ := p.Preprocess(source.Batch{rawRecruit(uuidA), rawRecruit(uuidB)})

	recs, err := p.Build(rows)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("expected 2 records, got %d", len(recs))
	}
	r, ok := recs[0].(record.Recruit)
	if !ok {
		t.Fatalf("expected record.Recruit, got %T", recs[0])
	}
	if f := r.Fields(); f.ExperienceYears == nil || *f.ExperienceYears != 3 || f.Position != "Go Developer" {
		t.Errorf("unexpected fields %+v", f)
	}
}

func TestBuild_InvalidRowFailsBatch(t *testing.T) {
	p := newPre(t, schema.Recruit, 3, nil)
	rows, _ := p.Preprocess(source.Batch{rawRecruit(uuidA), rawRecruit("not-a-uuid")})

	_, err := p.Build(rows)
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if ve.Field != "id" {
		t.Errorf("expected id field, got %q", ve.Field)
	}
}

func TestBuild_OutOfRangeExperienceIsNull(t *testing.T) {
	tests := []struct {
		name string
		in   any
	}{
		{"huge float", 1e20},
		{"negative int", int64(-2)},
		{"negative text", "-3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newPre(t, schema.Recruit, 3, nil)
			row := rawRecruit(uuidA)
			row["Exp Years"] = tt.in

			rows, st := p.Preprocess(source.Batch{row})
			if st.CellErrors != 1 || len(rows) != 1 {
				t.Fatalf("expected one kept row with one cell error, got %d rows, %+v", len(rows), st)
			}
			recs, err := p.Build(rows)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if f := recs[0].(record.Recruit).Fields(); f.ExperienceYears != nil {
				t.Errorf("expected null experience, got %d", *f.ExperienceYears)
			}
		})
	}
}

func TestBuild_WrongWidth(t *testing.T) {
	p := newPre(t, schema.Recruit, 4, nil)
	rows, _ := p.Preprocess(source.Batch{rawRecruit(uuidA)})
	if p.EmbeddingWidth(rows[0]) != 3 {
		t.Fatalf("expected width 3, got %d", p.EmbeddingWidth(rows[0]))
	}
	if _, err := p.Build(rows); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

// --- Stats ---

func TestStats_Add(t *testing.T) {
	var total Stats
	total.Add(Stats{Input: 3, Output: 2, EmptySkills: 1, Unmapped: []string{"b", "a"}})
	total.Add(Stats{Input: 2, Output: 1, MissingEmbedding: 1, CellErrors: 2, Unmapped: []string{"a", "c"}})

	if total.Input != 5 || total.Output != 3 || total.Dropped() != 2 || total.CellErrors != 2 {
		t.Errorf("unexpected totals %+v", total)
	}
	if !reflect.DeepEqual(total.Unmapped, []string{"a", "b", "c"}) {
		t.Errorf("expected merged unique names, got %v", total.Unmapped)
	}
}
