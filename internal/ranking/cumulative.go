package ranking

import "sort"

// gainListWeight is the gain-weighted mean of item weights over valid
// items. Zero when no item carries positive gain, which marks the list
// degenerate for the cumulative-gain metrics.
func (p *prepared) gainListWeight(gain GainFunc) float64 {
	var sum, gains float64
	for i, label := range p.labels {
		if label < 0 {
			continue
		}
		g := gain(label)
		sum += p.weights[i] * g
		gains += g
	}
	if gains == 0 {
		return 0
	}
	return sum / gains
}

// dcg sums weights[i] * gain(label) * discount(rank) over the first n
// ranks of the given order.
func (p *prepared) dcg(order []int, n int, gain GainFunc, discount DiscountFunc) float64 {
	var sum float64
	for r := 1; r <= n; r++ {
		i := order[r-1]
		sum += p.weights[i] * gain(p.labels[i]) * discount(r)
	}
	return sum
}

// idealOrder returns the valid item indices sorted by descending label,
// ties kept in position order.
func (p *prepared) idealOrder() []int {
	order := make([]int, 0, p.nvalid)
	for i, label := range p.labels {
		if label >= 0 {
			order = append(order, i)
		}
	}
	sort.SliceStable(order, func(a, b int) bool {
		return p.labels[order[a]] > p.labels[order[b]]
	})
	return order
}

// dcgScorer implements discounted cumulative gain.
type dcgScorer struct {
	topn     int
	gain     GainFunc
	discount DiscountFunc
}

func (s dcgScorer) scoreList(p *prepared) (float64, float64) {
	w := p.gainListWeight(s.gain)
	if w == 0 {
		return 0, 0
	}
	n := p.cut(s.topn)
	return p.dcg(p.perm, n, s.gain, s.discount), w
}

// ndcgScorer implements normalized DCG: DCG over the predicted order
// divided by DCG over the ideal (descending-label) order.
type ndcgScorer struct {
	topn     int
	gain     GainFunc
	discount DiscountFunc
}

func (s ndcgScorer) scoreList(p *prepared) (float64, float64) {
	w := p.gainListWeight(s.gain)
	if w == 0 {
		return 0, 0
	}
	n := p.cut(s.topn)
	ideal := p.dcg(p.idealOrder(), n, s.gain, s.discount)
	if ideal == 0 {
		return 0, 0
	}
	return p.dcg(p.perm, n, s.gain, s.discount) / ideal, w
}
