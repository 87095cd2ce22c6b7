package refset

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func writeArtifact(t *testing.T, a *artifact) string {
	t.Helper()
	data, err := json.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "refset.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func validArtifact() *artifact {
	return &artifact{
		Name:    "foodguard-test",
		Version: "1",
		Model:   "all-MiniLM-L6-v2",
		Categories: map[string][][]float32{
			LabelFood:    {{1, 0, 0}, {0.9, 0.1, 0}},
			LabelNotFood: {{0, 1, 0}},
			LabelUnsafe:  {{0, 0, 1}},
		},
	}
}

func TestLoad_Valid(t *testing.T) {
	rs, err := Load(writeArtifact(t, validArtifact()))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if rs.Model() != "all-MiniLM-L6-v2" {
		t.Errorf("unexpected model %q", rs.Model())
	}
	if rs.Dim() != 3 {
		t.Errorf("expected dim 3, got %d", rs.Dim())
	}
	if len(rs.Labels()) != 3 {
		t.Errorf("expected 3 labels, got %v", rs.Labels())
	}
}

func TestLoad_MissingCategory(t *testing.T) {
	a := validArtifact()
	delete(a.Categories, LabelUnsafe)
	if _, err := Load(writeArtifact(t, a)); err == nil {
		t.Fatal("expected error for missing required category")
	}
}

func TestLoad_DimensionMismatch(t *testing.T) {
	a := validArtifact()
	a.Categories[LabelFood] = [][]float32{{1, 0}}
	if _, err := Load(writeArtifact(t, a)); err == nil {
		t.Fatal("expected error for dimension mismatch")
	}
}

func TestLoad_MissingModel(t *testing.T) {
	a := validArtifact()
	a.Model = ""
	if _, err := Load(writeArtifact(t, a)); err == nil {
		t.Fatal("expected error for missing model identity")
	}
}

func TestBest(t *testing.T) {
	rs, err := Load(writeArtifact(t, validArtifact()))
	if err != nil {
		t.Fatal(err)
	}

	label, sim, err := rs.Best([]float32{2, 0.1, 0})
	if err != nil {
		t.Fatal(err)
	}
	if label != LabelFood {
		t.Errorf("expected food, got %s", label)
	}
	if sim < 0.9 || sim > 1 {
		t.Errorf("expected high similarity, got %f", sim)
	}

	label, _, err = rs.Best([]float32{0, 0, 5})
	if err != nil {
		t.Fatal(err)
	}
	if label != LabelUnsafe {
		t.Errorf("expected unsafe, got %s", label)
	}
}

func TestBest_ScoreClamped(t *testing.T) {
	rs, err := Load(writeArtifact(t, validArtifact()))
	if err != nil {
		t.Fatal(err)
	}
	// Opposite of every centroid: raw cosine is negative, reported score
	// must still land in [0,1].
	_, sim, err := rs.Best([]float32{-1, -1, -1})
	if err != nil {
		t.Fatal(err)
	}
	if sim < 0 || sim > 1 {
		t.Errorf("similarity %f outside [0,1]", sim)
	}
}

func TestBest_WrongDimension(t *testing.T) {
	rs, err := Load(writeArtifact(t, validArtifact()))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := rs.Best([]float32{1, 0}); err == nil {
		t.Fatal("expected dimension error")
	}
}

func TestBest_Deterministic(t *testing.T) {
	rs, err := Load(writeArtifact(t, validArtifact()))
	if err != nil {
		t.Fatal(err)
	}
	q := []float32{0.3, 0.7, 0.1}
	l1, s1, _ := rs.Best(q)
	l2, s2, _ := rs.Best(q)
	if l1 != l2 || math.Abs(s1-s2) != 0 {
		t.Errorf("Best must be deterministic: (%s,%f) vs (%s,%f)", l1, s1, l2, s2)
	}
}
