package schema

import (
	"errors"
	"testing"

	"github.com/kailas-cloud/vecfeed/internal/domain"
)

func TestNew_KnownDomains(t *testing.T) {
	tests := []struct {
		name    Name
		idField string
		vector  string
		first   string
	}{
		{Recruit, "id", "skills_vector", "id"},
		{Candidate, "candidate_id", "skills_vector", "candidate_id"},
		{SkillDictionary, "skill", "skill_vector", "skill"},
	}
	for _, tt := range tests {
		t.Run(string(tt.name), func(t *testing.T) {
			cfg, err := New(tt.name, 384)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.IDField() != tt.idField {
				t.Errorf("expected id field %q, got %q", tt.idField, cfg.IDField())
			}
			if cfg.VectorField() != tt.vector {
				t.Errorf("expected vector field %q, got %q", tt.vector, cfg.VectorField())
			}
			if cfg.Fields()[0] != tt.first {
				t.Errorf("expected first canonical field %q, got %q", tt.first, cfg.Fields()[0])
			}
			if cfg.EmbeddingDimension() != 384 {
				t.Errorf("expected dimension 384, got %d", cfg.EmbeddingDimension())
			}
		})
	}
}

func TestNew_Invalid(t *testing.T) {
	if _, err := New("orders", 384); !errors.Is(err, domain.ErrUnknownDomain) {
		t.Fatalf("expected ErrUnknownDomain, got %v", err)
	}
	if _, err := New(Recruit, 0); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestFields_ReturnsCopy(t *testing.T) {
	cfg, _ := New(Recruit, 384)
	f := cfg.Fields()
	f[0] = "mutated"
	if cfg.Fields()[0] != "id" {
		t.Fatal("Fields must not expose internal slice")
	}
}

func TestRegistry_Resolve(t *testing.T) {
	reg, err := NewRegistry(map[string]int{"recruit": 384, "skill_dic": 0})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg, err := reg.Resolve("recruit")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Name() != Recruit {
		t.Errorf("expected recruit, got %q", cfg.Name())
	}

	sd, err := reg.Resolve("skill_dic")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sd.EmbeddingDimension() != DefaultDimension {
		t.Errorf("expected default dimension %d, got %d", DefaultDimension, sd.EmbeddingDimension())
	}

	// Known but not configured.
	if _, err := reg.Resolve("candidate"); !errors.Is(err, domain.ErrUnknownDomain) {
		t.Errorf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestRegistry_RejectsUnknownName(t *testing.T) {
	if _, err := NewRegistry(map[string]int{"invoices": 384}); !errors.Is(err, domain.ErrUnknownDomain) {
		t.Fatalf("expected ErrUnknownDomain, got %v", err)
	}
}

func TestRegistry_Names(t *testing.T) {
	reg, _ := NewRegistry(map[string]int{"skill_dic": 384, "candidate": 384, "recruit": 384})
	got := reg.Names()
	want := []string{"candidate", "recruit", "skill_dic"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("names[%d]: expected %q, got %q", i, want[i], got[i])
		}
	}
}
