package domain

import "math"

// CategorySpec describes one configured content category: its semantic
// description (embedded into an anchor vector when a provider is
// available), the static weight added to similarity-derived scores, the
// rotation priority rank, and the regex fallback patterns.
type CategorySpec struct {
	Name        string
	Description string
	Weight      float64
	Priority    int
	Patterns    []string
}

// Anchor is a category's precomputed semantic center. Vector is nil when
// no embedding backend was available at startup.
type Anchor struct {
	Category string
	Weight   float64
	Vector   []float32
}

// NoiseScore is forced onto every noise-classified article regardless of
// similarity or weight, so noise can never outrank a real category.
const NoiseScore = -50.0

var categoryEmoji = map[string]string{
	"WELFARE":       "🏛️",
	"ALERTS":        "🚨",
	"WAR_GEO":       "🌍",
	"POLITICS":      "🗳️",
	"FINANCE":       "💰",
	"TECH_SCI":      "🔬",
	CategoryGeneral: "📰",
	CategoryNoise:   "🗑️",
}

// CategoryEmoji returns the marker used in outbound messages; unknown
// categories get the general newspaper marker.
func CategoryEmoji(name string) string {
	if e, ok := categoryEmoji[name]; ok {
		return e
	}
	return categoryEmoji[CategoryGeneral]
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Returns 0 for mismatched lengths or zero-norm inputs.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
