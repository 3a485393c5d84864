package ranking

import "math"

// coverListWeight is the mean item weight over valid items covering at
// least one subtopic. Zero when the list carries no subtopic coverage,
// which marks it degenerate for the diversity metrics.
func (p *prepared) coverListWeight() float64 {
	var sum, count float64
	for i, label := range p.labels {
		if label < 0 || len(p.subtopics) == 0 || len(p.subtopics[i]) == 0 {
			continue
		}
		sum += p.weights[i]
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// alphaDCGScorer implements alpha-DCG: discounted cumulative subtopic
// gain where each additional item covering an already-seen subtopic is
// further damped by (1-alpha) per prior covering item.
type alphaDCGScorer struct {
	topn     int
	alpha    float64
	discount DiscountFunc
}

func (s alphaDCGScorer) scoreList(p *prepared) (float64, float64) {
	w := p.coverListWeight()
	if w == 0 {
		return 0, 0
	}
	n := p.cut(s.topn)
	covered := make(map[int]int)
	var sum float64
	for r := 1; r <= n; r++ {
		i := p.perm[r-1]
		var gain float64
		for _, st := range p.subtopics[i] {
			gain += math.Pow(1-s.alpha, float64(covered[st]))
			covered[st]++
		}
		sum += p.weights[i] * gain * s.discount(r)
	}
	return sum, w
}

// precisionIAScorer implements intent-aware precision: precision@k
// restricted to each subtopic present in the list, averaged uniformly
// across those subtopics.
type precisionIAScorer struct {
	topn int
}

func (s precisionIAScorer) scoreList(p *prepared) (float64, float64) {
	w := p.coverListWeight()
	if w == 0 {
		return 0, 0
	}

	// Subtopics present anywhere in the valid list define the intents.
	present := make(map[int]bool)
	for i, label := range p.labels {
		if label < 0 {
			continue
		}
		for _, st := range p.subtopics[i] {
			present[st] = true
		}
	}
	if len(present) == 0 {
		return 0, 0
	}

	n := p.cut(s.topn)
	var total float64
	hits := make(map[int]float64)
	for r := 1; r <= n; r++ {
		i := p.perm[r-1]
		total += p.weights[i]
		for _, st := range p.subtopics[i] {
			hits[st] += p.weights[i]
		}
	}
	if total == 0 {
		return 0, 0
	}

	var sum float64
	for st := range present {
		sum += hits[st] / total
	}
	return sum / float64(len(present)), w
}
