package classify

import (
	"regexp"

	"newsdesk/internal/domain"
)

const fallbackConfidence = 0.2

// regexFallback is the mandatory second layer: precompiled per-category
// pattern sets, case-insensitive, always producing an answer.
type regexFallback struct {
	order    []string
	patterns map[string][]*regexp.Regexp
}

func newRegexFallback(specs []domain.CategorySpec) *regexFallback {
	f := &regexFallback{patterns: make(map[string][]*regexp.Regexp, len(specs))}
	for _, spec := range specs {
		compiled := make([]*regexp.Regexp, 0, len(spec.Patterns))
		for _, p := range spec.Patterns {
			re, err := regexp.Compile("(?i)" + p)
			if err != nil {
				continue
			}
			compiled = append(compiled, re)
		}
		f.order = append(f.order, spec.Name)
		f.patterns[spec.Name] = compiled
	}
	return f
}

// classify counts pattern hits per category and returns the best one with
// confidence min(hits/3, 1.0). Zero hits everywhere yields GENERAL with a
// low fixed confidence.
func (f *regexFallback) classify(text string) (string, float64) {
	bestCat := ""
	bestHits := 0

	for _, cat := range f.order {
		hits := 0
		for _, re := range f.patterns[cat] {
			if re.MatchString(text) {
				hits++
			}
		}
		if hits > bestHits {
			bestHits = hits
			bestCat = cat
		}
	}

	if bestHits == 0 {
		return domain.CategoryGeneral, fallbackConfidence
	}

	conf := float64(bestHits) / 3.0
	if conf > 1.0 {
		conf = 1.0
	}
	return bestCat, conf
}
