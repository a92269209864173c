package metrics

import (
	"math"
	"path/filepath"
	"strings"
)

// Evaluate scores one query's ranked results against its judgments at cutoff
// k. Results beyond k do not contribute to Recall, MRR, nDCG or Precision;
// Average Precision is computed over the full ranked list. Relevance for any
// file with no judgment is treated as 0 (not relevant).
func Evaluate(query LabelledQuery, results []RankedResult, k int) QueryScore {
	rel := relevanceByBasename(query.Judgments)

	top := results
	if len(top) > k {
		top = top[:k]
	}

	score := QueryScore{Query: query.Query}
	score.RecallAtK = recallAtK(top, rel, query.Judgments)
	score.MRR = reciprocalRank(top, rel)
	score.NDCGAtK = ndcgAtK(top, rel, query.Judgments)
	score.PrecisionAtK = precisionAtK(top, rel)
	score.AveragePrecision = averagePrecision(results, rel, query.Judgments)
	return score
}

// EvaluateAll scores every labelled query against the engine's results
// (supplied in parallel slices, one ranked list per query) and aggregates
// as an arithmetic mean.
func EvaluateAll(queries []LabelledQuery, resultsByQuery [][]RankedResult, k int) Report {
	report := Report{K: k, Queries: make([]QueryScore, len(queries))}
	for i, q := range queries {
		var results []RankedResult
		if i < len(resultsByQuery) {
			results = resultsByQuery[i]
		}
		report.Queries[i] = Evaluate(q, results, k)
	}

	n := float64(len(report.Queries))
	if n == 0 {
		return report
	}
	for _, s := range report.Queries {
		report.MeanRecallAtK += s.RecallAtK
		report.MeanMRR += s.MRR
		report.MeanNDCGAtK += s.NDCGAtK
		report.MeanPrecisionAtK += s.PrecisionAtK
		report.MeanAveragePrecision += s.AveragePrecision
	}
	report.MeanRecallAtK /= n
	report.MeanMRR /= n
	report.MeanNDCGAtK /= n
	report.MeanPrecisionAtK /= n
	report.MeanAveragePrecision /= n
	return report
}

// normalizeFile reduces a path to basename-lowercase so relative and
// absolute path forms for the same file compare equal.
func normalizeFile(path string) string {
	return strings.ToLower(filepath.Base(path))
}

func relevanceByBasename(judgments []Judgment) map[string]Relevance {
	rel := make(map[string]Relevance, len(judgments))
	for _, j := range judgments {
		rel[normalizeFile(j.File)] = j.Relevance
	}
	return rel
}

func isRelevant(file string, rel map[string]Relevance) bool {
	_, ok := rel[normalizeFile(file)]
	return ok
}

func recallAtK(top []RankedResult, rel map[string]Relevance, judgments []Judgment) float64 {
	if len(judgments) == 0 {
		return 0
	}
	var hit int
	for _, r := range top {
		if isRelevant(r.File, rel) {
			hit++
		}
	}
	return float64(hit) / float64(len(judgments))
}

func precisionAtK(top []RankedResult, rel map[string]Relevance) float64 {
	if len(top) == 0 {
		return 0
	}
	var hit int
	for _, r := range top {
		if isRelevant(r.File, rel) {
			hit++
		}
	}
	return float64(hit) / float64(len(top))
}

func reciprocalRank(top []RankedResult, rel map[string]Relevance) float64 {
	for i, r := range top {
		if isRelevant(r.File, rel) {
			return 1.0 / float64(i+1)
		}
	}
	return 0
}

// ndcgAtK uses log2 gain discount; IDCG is computed from the labelled set's
// own relevance grades sorted descending, so the metric is 1.0 when the
// ranking places the most relevant judged files first.
func ndcgAtK(top []RankedResult, rel map[string]Relevance, judgments []Judgment) float64 {
	var dcg float64
	for i, r := range top {
		grade := float64(rel[normalizeFile(r.File)])
		if grade == 0 {
			continue
		}
		dcg += grade / math.Log2(float64(i+2))
	}

	grades := make([]float64, len(judgments))
	for i, j := range judgments {
		grades[i] = float64(j.Relevance)
	}
	sortDesc(grades)

	var idcg float64
	limit := len(grades)
	if limit > len(top) {
		limit = len(top)
	}
	for i := 0; i < limit; i++ {
		idcg += grades[i] / math.Log2(float64(i+2))
	}
	if idcg == 0 {
		return 0
	}
	return dcg / idcg
}

// averagePrecision considers the full ranked list, not just the top-k
// cutoff, since AP is defined over the whole ranking.
func averagePrecision(results []RankedResult, rel map[string]Relevance, judgments []Judgment) float64 {
	if len(judgments) == 0 {
		return 0
	}
	var hit int
	var sum float64
	for i, r := range results {
		if isRelevant(r.File, rel) {
			hit++
			sum += float64(hit) / float64(i+1)
		}
	}
	if hit == 0 {
		return 0
	}
	return sum / float64(len(judgments))
}

func sortDesc(xs []float64) {
	for i := 1; i < len(xs); i++ {
		for j := i; j > 0 && xs[j-1] < xs[j]; j-- {
			xs[j-1], xs[j] = xs[j], xs[j-1]
		}
	}
}
