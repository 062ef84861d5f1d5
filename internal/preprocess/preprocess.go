// Package preprocess normalizes raw source rows into a domain's canonical
// shape and builds validated records from them.
package preprocess

import (
	"fmt"
	"slices"
	"sort"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vecfeed/internal/domain/record"
	"github.com/kailas-cloud/vecfeed/internal/domain/schema"
	"github.com/kailas-cloud/vecfeed/internal/source"
)

// maxCellWarnings caps per-batch coercion warnings.
const maxCellWarnings = 5

// irrelevant columns are dropped for every domain.
var irrelevant = map[string]bool{
	"__index_level_0__":    true,
	"normalized_skills":    true,
	"embedding_input_text": true,
	"embedding_sample":     true,
	"synonyms":             true,
}

type coercer func(any) (any, bool)

// rules is the per-domain preprocessing table.
type rules struct {
	rename map[string]string  // source column → canonical field
	coerce map[string]coercer // canonical field → coercer; others use toText
	build  func(row source.Row, dim int) (record.Record, error)
}

// Stats counts what a preprocessing pass changed.
type Stats struct {
	Input            int
	Output           int
	EmptySkills      int
	MissingEmbedding int
	CellErrors       int
	Unmapped         []string // distinct source columns without a canonical name
	Irrelevant       []string // distinct known-irrelevant columns removed
}

// Dropped returns the number of rows removed.
func (s Stats) Dropped() int { return s.EmptySkills + s.MissingEmbedding }

// Add accumulates o into s.
func (s *Stats) Add(o Stats) {
	s.Input += o.Input
	s.Output += o.Output
	s.EmptySkills += o.EmptySkills
	s.MissingEmbedding += o.MissingEmbedding
	s.CellErrors += o.CellErrors
	s.Unmapped = mergeNames(s.Unmapped, o.Unmapped)
	s.Irrelevant = mergeNames(s.Irrelevant, o.Irrelevant)
}

func mergeNames(a, b []string) []string {
	if len(b) == 0 {
		return a
	}
	out := append(slices.Clone(a), b...)
	sort.Strings(out)
	return slices.Compact(out)
}

// Preprocessor normalizes batches of one domain.
type Preprocessor struct {
	cfg       schema.DomainConfig
	rules     rules
	canonical map[string]bool
	logger    *zap.Logger
}

// For returns the preprocessor of a domain.
func For(cfg schema.DomainConfig, logger *zap.Logger) (*Preprocessor, error) {
	var r rules
	switch cfg.Name() {
	case schema.Recruit:
		r = recruitRules
	case schema.Candidate:
		r = candidateRules
	case schema.SkillDictionary:
		r = skillDictionaryRules
	default:
		return nil, fmt.Errorf("no preprocessing rules for domain %q", cfg.Name())
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	canonical := make(map[string]bool)
	for _, f := range cfg.Fields() {
		canonical[f] = true
	}
	return &Preprocessor{cfg: cfg, rules: r, canonical: canonical, logger: logger}, nil
}

// Domain returns the domain configuration.
func (p *Preprocessor) Domain() schema.DomainConfig { return p.cfg }

// Preprocess applies, in order: rename, coercion, irrelevant-column drop,
// empty-skills drop, missing-embedding drop and canonical projection.
// The input batch is not modified. Applying it to its own output is a no-op.
func (p *Preprocessor) Preprocess(in source.Batch) (source.Batch, Stats) {
	st := Stats{Input: len(in)}
	unmapped := map[string]bool{}
	dropped := map[string]bool{}
	warned := 0

	rows := make(source.Batch, 0, len(in))
	for _, raw := range in {
		row := p.rename(raw, unmapped)
		p.coerceRow(row, &st, &warned)
		for col := range row {
			if irrelevant[col] {
				delete(row, col)
				dropped[col] = true
			}
		}
		rows = append(rows, row)
	}
	st.Unmapped = sortedKeys(unmapped)
	st.Irrelevant = sortedKeys(dropped)
	if len(st.Unmapped) > 0 {
		p.logger.Debug("dropped unmapped columns", zap.Strings("columns", st.Unmapped))
	}
	if len(st.Irrelevant) > 0 {
		p.logger.Debug("dropped irrelevant columns", zap.Strings("columns", st.Irrelevant))
	}
	if warned > maxCellWarnings {
		p.logger.Warn("further cell coercion warnings suppressed",
			zap.Int("suppressed", warned-maxCellWarnings))
	}

	rows = p.dropEmptySkills(rows, &st)
	rows = p.dropMissingEmbedding(rows, &st)

	for i, row := range rows {
		rows[i] = p.project(row)
	}
	st.Output = len(rows)
	return rows, st
}

// rename copies mapped columns under their canonical name. A column already
// carrying a canonical name wins over a renamed one.
func (p *Preprocessor) rename(raw source.Row, unmapped map[string]bool) source.Row {
	row := make(source.Row, len(raw))
	for col, v := range raw {
		if p.canonical[col] || irrelevant[col] {
			row[col] = v
		}
	}
	for col, v := range raw {
		if p.canonical[col] || irrelevant[col] {
			continue
		}
		target, ok := p.rules.rename[col]
		if !ok {
			unmapped[col] = true
			continue
		}
		if _, exists := row[target]; !exists {
			row[target] = v
		}
	}
	return row
}

func (p *Preprocessor) coerceRow(row source.Row, st *Stats, warned *int) {
	for col, v := range row {
		if !p.canonical[col] {
			continue
		}
		fn, ok := p.rules.coerce[col]
		if !ok {
			fn = toText
		}
		out, ok := fn(v)
		if !ok {
			st.CellErrors++
			*warned++
			if *warned <= maxCellWarnings {
				p.logger.Warn("unparseable cell set to null",
					zap.String("field", col),
					zap.String("value", fmt.Sprintf("%.64v", v)),
					zap.Any(p.cfg.IDField(), row[p.cfg.IDField()]))
			}
		}
		row[col] = out
	}
}

func (p *Preprocessor) dropEmptySkills(rows source.Batch, st *Stats) source.Batch {
	field := p.cfg.SkillsField()
	out := rows[:0]
	for _, row := range rows {
		var n int
		if field == "" {
			if row[p.cfg.IDField()] != nil {
				n = 1
			}
		} else if skills, ok := row[field].([]string); ok {
			n = len(skills)
		}
		if n == 0 {
			st.EmptySkills++
			continue
		}
		out = append(out, row)
	}
	if st.EmptySkills > 0 {
		p.logger.Debug("dropped rows with empty skills", zap.Int("rows", st.EmptySkills))
	}
	return out
}

func (p *Preprocessor) dropMissingEmbedding(rows source.Batch, st *Stats) source.Batch {
	field := p.cfg.VectorField()
	out := rows[:0]
	for _, row := range rows {
		if v, ok := row[field].([]float32); !ok || len(v) == 0 {
			st.MissingEmbedding++
			continue
		}
		out = append(out, row)
	}
	if st.MissingEmbedding > 0 {
		p.logger.Debug("dropped rows without embedding", zap.Int("rows", st.MissingEmbedding))
	}
	return out
}

// project keeps exactly the canonical fields; absent ones become nil.
func (p *Preprocessor) project(row source.Row) source.Row {
	out := make(source.Row, len(p.canonical))
	for f := range p.canonical {
		out[f] = row[f]
	}
	return out
}

// Build constructs validated records from a preprocessed batch. The first
// invalid row fails the whole batch.
func (p *Preprocessor) Build(rows source.Batch) ([]record.Record, error) {
	out := make([]record.Record, 0, len(rows))
	dim := p.cfg.EmbeddingDimension()
	for i, row := range rows {
		rec, err := p.rules.build(row, dim)
		if err != nil {
			return nil, fmt.Errorf("row %d (%s=%v): %w", i, p.cfg.IDField(), row[p.cfg.IDField()], err)
		}
		out = append(out, rec)
	}
	return out, nil
}

// EmbeddingWidth returns the embedding length of a preprocessed row.
func (p *Preprocessor) EmbeddingWidth(row source.Row) int {
	v, _ := row[p.cfg.VectorField()].([]float32)
	return len(v)
}

func sortedKeys(m map[string]bool) []string {
	if len(m) == 0 {
		return nil
	}
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// cell accessors for canonical rows.

func text(row source.Row, f string) string {
	s, _ := row[f].(string)
	return s
}

func years(row source.Row, f string) *int {
	n, ok := row[f].(int)
	if !ok {
		return nil
	}
	return &n
}

func strs(row source.Row, f string) []string {
	s, _ := row[f].([]string)
	return s
}

func vector(row source.Row, f string) []float32 {
	v, _ := row[f].([]float32)
	return v
}
