package transform

import (
	"fmt"
	"math"

	"github.com/zzappa/gradient-reading/internal/document"
	"github.com/zzappa/gradient-reading/internal/models"
)

// DefaultLevelWeights 各级别段落的相对权重，前后级别较轻，中间级别较重
var DefaultLevelWeights = []float64{0.7, 0.8, 1.25, 1.3, 1.25, 0.95, 0.75}

// Segment 分配给一个级别的连续段落
type Segment struct {
	Level      int      // 级别，1-7
	Paragraphs []string // 段落
}

// Planner 段落分段规划器
type Planner struct {
	splitter document.UnitSplitter
	weights  []float64
}

// NewPlanner 创建分段规划器，weights为空时使用默认权重
func NewPlanner(splitter document.UnitSplitter, weights []float64) (*Planner, error) {
	if len(weights) == 0 {
		weights = DefaultLevelWeights
	}
	if len(weights) != models.TransformLevels {
		return nil, fmt.Errorf("expected %d level weights, got %d", models.TransformLevels, len(weights))
	}
	for _, w := range weights {
		if w <= 0 {
			return nil, fmt.Errorf("level weights must be positive, got %v", w)
		}
	}
	return &Planner{splitter: splitter, weights: weights}, nil
}

// Plan 将段落扩展为足够的单元并切分为7个级别段
func (p *Planner) Plan(paragraphs []string) []Segment {
	units := ExpandUnits(p.splitter, paragraphs, len(p.weights))
	return PlanSegments(p.splitter, units, p.weights)
}

// ExpandUnits 单元数少于minUnits时，反复在句子中点对半拆分词数最多的单元
// 没有单元包含两个以上句子时停止，接受不足minUnits个单元
func ExpandUnits(s document.UnitSplitter, paragraphs []string, minUnits int) []string {
	units := make([]string, 0, len(paragraphs))
	for _, p := range paragraphs {
		if trimmed := trimSpace(p); trimmed != "" {
			units = append(units, trimmed)
		}
	}

	for len(units) < minUnits {
		splitIdx := -1
		splitWords := 0
		var left, right string

		for idx, unit := range units {
			sentences := s.Sentences(unit)
			if len(sentences) < 2 {
				continue
			}
			mid := len(sentences) / 2
			l := trimSpace(s.JoinWords(sentences[:mid]))
			r := trimSpace(s.JoinWords(sentences[mid:]))
			if l == "" || r == "" {
				continue
			}
			if words := document.WordCount(s, unit); words > splitWords {
				splitIdx, splitWords = idx, words
				left, right = l, r
			}
		}

		if splitIdx < 0 {
			break
		}

		expanded := make([]string, 0, len(units)+1)
		expanded = append(expanded, units[:splitIdx]...)
		expanded = append(expanded, left, right)
		expanded = append(expanded, units[splitIdx+1:]...)
		units = expanded
	}

	return units
}

// PlanSegments 按加权累计词数切分为len(weights)个连续段
// 单元数不少于级别数时每段非空，否则每级一个单元，多余级别为空
func PlanSegments(s document.UnitSplitter, units []string, weights []float64) []Segment {
	levels := len(weights)
	segments := make([]Segment, levels)
	for i := range segments {
		segments[i] = Segment{Level: i + 1, Paragraphs: []string{}}
	}

	n := len(units)
	if n == 0 {
		return segments
	}
	if n < levels {
		for i := 0; i < n; i++ {
			segments[i].Paragraphs = []string{units[i]}
		}
		return segments
	}

	counts := make([]int, n)
	total := 0
	for i, u := range units {
		counts[i] = document.WordCount(s, u)
		total += counts[i]
	}
	if total == 0 {
		for i := range counts {
			counts[i] = 1
		}
	}

	// prefix[i]为前i个单元的词数
	prefix := make([]int, n+1)
	for i, c := range counts {
		prefix[i+1] = prefix[i] + c
	}

	totalWeight := 0.0
	for _, w := range weights {
		totalWeight += w
	}

	boundaries := make([]int, 0, levels)
	prev := 0
	running := 0.0
	for b := 1; b < levels; b++ {
		running += weights[b-1]
		target := running / totalWeight * float64(prefix[n])

		minCut := prev + 1
		maxCut := n - (levels - b)
		cut := minCut
		if minCut <= maxCut {
			best := math.Inf(1)
			for i := minCut; i <= maxCut; i++ {
				// 距离相同时取较小的下标
				if d := math.Abs(float64(prefix[i]) - target); d < best {
					best, cut = d, i
				}
			}
		}
		boundaries = append(boundaries, cut)
		prev = cut
	}
	boundaries = append(boundaries, n)

	start := 0
	for i, end := range boundaries {
		segments[i].Paragraphs = append([]string{}, units[start:end]...)
		start = end
	}
	return segments
}
