// Package refset loads the labeled reference embeddings the semantic scorers
// compare against. The set is read once at startup and is immutable for the
// process lifetime; a loading failure is a fatal startup error, never a
// per-request one.
package refset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
)

// Category labels every reference set must provide.
const (
	LabelFood    = "food"
	LabelNotFood = "not_food"
	LabelUnsafe  = "unsafe"
)

// ReferenceSet maps category labels to unit-normalized centroid embeddings.
type ReferenceSet struct {
	name      string
	version   string
	model     string
	dim       int
	centroids map[string][]float32
}

// artifact is the on-disk JSON shape: one or more exemplar embeddings per
// category, produced offline by embedding curated exemplar sentences with
// the same model the scorer uses at runtime.
type artifact struct {
	Name       string                 `json:"name"`
	Version    string                 `json:"version"`
	Model      string                 `json:"model"`
	Categories map[string][][]float32 `json:"categories"`
}

// Load reads a reference set artifact, averages each category's exemplars
// into a centroid, and unit-normalizes the result.
func Load(path string) (*ReferenceSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read reference set %s: %w", path, err)
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return nil, fmt.Errorf("parse reference set %s: %w", path, err)
	}
	return build(&a)
}

func build(a *artifact) (*ReferenceSet, error) {
	if a.Model == "" {
		return nil, fmt.Errorf("reference set %q: missing model identity", a.Name)
	}
	if len(a.Categories) == 0 {
		return nil, fmt.Errorf("reference set %q: no categories", a.Name)
	}
	for _, required := range []string{LabelFood, LabelNotFood, LabelUnsafe} {
		if len(a.Categories[required]) == 0 {
			return nil, fmt.Errorf("reference set %q: missing category %q", a.Name, required)
		}
	}

	rs := &ReferenceSet{
		name:      a.Name,
		version:   a.Version,
		model:     a.Model,
		centroids: make(map[string][]float32, len(a.Categories)),
	}

	for label, exemplars := range a.Categories {
		dim := len(exemplars[0])
		if dim == 0 {
			return nil, fmt.Errorf("reference set %q: empty embedding in %q", a.Name, label)
		}
		if rs.dim == 0 {
			rs.dim = dim
		} else if dim != rs.dim {
			return nil, fmt.Errorf("reference set %q: dimension mismatch in %q: %d != %d",
				a.Name, label, dim, rs.dim)
		}

		centroid := make([]float32, dim)
		for _, e := range exemplars {
			if len(e) != dim {
				return nil, fmt.Errorf("reference set %q: ragged embeddings in %q", a.Name, label)
			}
			for i, v := range e {
				centroid[i] += v
			}
		}
		for i := range centroid {
			centroid[i] /= float32(len(exemplars))
		}
		if err := normalize(centroid); err != nil {
			return nil, fmt.Errorf("reference set %q: category %q: %w", a.Name, label, err)
		}
		rs.centroids[label] = centroid
	}
	return rs, nil
}

func (r *ReferenceSet) Name() string    { return r.name }
func (r *ReferenceSet) Version() string { return r.version }
func (r *ReferenceSet) Model() string   { return r.model }
func (r *ReferenceSet) Dim() int        { return r.dim }

// Labels returns all category labels in the set.
func (r *ReferenceSet) Labels() []string {
	labels := make([]string, 0, len(r.centroids))
	for l := range r.centroids {
		labels = append(labels, l)
	}
	return labels
}

// Best returns the category whose centroid is most similar to vec, with the
// similarity clamped into [0,1]. vec need not be normalized.
func (r *ReferenceSet) Best(vec []float32) (string, float64, error) {
	if len(vec) != r.dim {
		return "", 0, fmt.Errorf("query dimension %d does not match reference set dimension %d",
			len(vec), r.dim)
	}
	q := make([]float32, len(vec))
	copy(q, vec)
	if err := normalize(q); err != nil {
		return "", 0, err
	}

	bestLabel := ""
	bestSim := math.Inf(-1)
	for label, centroid := range r.centroids {
		sim := dot(q, centroid)
		if sim > bestSim || (sim == bestSim && label < bestLabel) {
			bestLabel = label
			bestSim = sim
		}
	}
	return bestLabel, clamp01(bestSim), nil
}

func dot(a, b []float32) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

func normalize(v []float32) error {
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	norm = math.Sqrt(norm)
	if norm == 0 {
		return fmt.Errorf("zero-magnitude embedding")
	}
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
