package ranking

// scorer computes one metric over a single prepared list, returning the
// metric value and the list's contribution weight to the running mean.
// A zero weight excludes the list from aggregation.
type scorer interface {
	scoreList(p *prepared) (value, weight float64)
}

// relListWeight is the weighted-mean item weight over relevant valid
// items. Zero when the list has no relevant items, which marks the list
// degenerate for the relevance-based metrics.
func (p *prepared) relListWeight() float64 {
	var sum, count float64
	for i, label := range p.labels {
		if label > 0 {
			sum += p.weights[i]
			count++
		}
	}
	if count == 0 {
		return 0
	}
	return sum / count
}

// totalRelWeight is the summed weight of all relevant valid items.
func (p *prepared) totalRelWeight() float64 {
	var sum float64
	for i, label := range p.labels {
		if label > 0 {
			sum += p.weights[i]
		}
	}
	return sum
}

// mrrScorer implements reciprocal rank of the first relevant item.
type mrrScorer struct {
	topn int
}

func (s mrrScorer) scoreList(p *prepared) (float64, float64) {
	w := p.relListWeight()
	if w == 0 {
		return 0, 0
	}
	n := p.cut(s.topn)
	for r := 1; r <= n; r++ {
		if p.relevant(p.perm[r-1]) {
			return 1 / float64(r), w
		}
	}
	return 0, w
}

// arpScorer implements average relevance position: the weighted mean
// 1-indexed rank of the relevant items. Lower is better. ARP has no
// cutoff in its definition.
type arpScorer struct{}

func (s arpScorer) scoreList(p *prepared) (float64, float64) {
	var sum, weight float64
	for r := 1; r <= p.nvalid; r++ {
		i := p.perm[r-1]
		if p.relevant(i) {
			sum += p.weights[i] * float64(r)
			weight += p.weights[i]
		}
	}
	if weight == 0 {
		return 0, 0
	}
	return sum / weight, weight
}

// precisionScorer implements precision@k with binary relevance.
type precisionScorer struct {
	topn int
}

func (s precisionScorer) scoreList(p *prepared) (float64, float64) {
	w := p.relListWeight()
	if w == 0 {
		return 0, 0
	}
	n := p.cut(s.topn)
	var hit, total float64
	for r := 1; r <= n; r++ {
		i := p.perm[r-1]
		total += p.weights[i]
		if p.relevant(i) {
			hit += p.weights[i]
		}
	}
	if total == 0 {
		return 0, 0
	}
	return hit / total, w
}

// recallScorer implements recall@k: relevant weight retrieved in the
// top n over relevant weight in the whole valid list.
type recallScorer struct {
	topn int
}

func (s recallScorer) scoreList(p *prepared) (float64, float64) {
	w := p.relListWeight()
	if w == 0 {
		return 0, 0
	}
	den := p.totalRelWeight()
	if den == 0 {
		return 0, 0
	}
	n := p.cut(s.topn)
	var hit float64
	for r := 1; r <= n; r++ {
		i := p.perm[r-1]
		if p.relevant(i) {
			hit += p.weights[i]
		}
	}
	return hit / den, w
}

// mapScorer implements mean average precision: precision@rank averaged
// over the relevant items found within the cutoff, against the total
// relevant weight of the list.
type mapScorer struct {
	topn int
}

func (s mapScorer) scoreList(p *prepared) (float64, float64) {
	w := p.relListWeight()
	if w == 0 {
		return 0, 0
	}
	den := p.totalRelWeight()
	if den == 0 {
		return 0, 0
	}
	n := p.cut(s.topn)
	var num, cumRel, cumAll float64
	for r := 1; r <= n; r++ {
		i := p.perm[r-1]
		cumAll += p.weights[i]
		if !p.relevant(i) {
			continue
		}
		cumRel += p.weights[i]
		if cumAll > 0 {
			num += p.weights[i] * (cumRel / cumAll)
		}
	}
	return num / den, w
}

// opaScorer implements ordered pair accuracy: over all valid item pairs
// with distinct labels, the weighted fraction where the higher-labeled
// item also scores at least as high. The pair carries the weight of its
// higher-labeled member.
type opaScorer struct{}

func (s opaScorer) scoreList(p *prepared) (float64, float64) {
	var correct, total float64
	for i, li := range p.labels {
		if li < 0 {
			continue
		}
		for j, lj := range p.labels {
			if lj < 0 || li <= lj {
				continue
			}
			total += p.weights[i]
			if p.scores[i] >= p.scores[j] {
				correct += p.weights[i]
			}
		}
	}
	if total == 0 {
		// No discriminable pairs; the metric is undefined here.
		return 0, 0
	}
	return correct / total, total
}
