package pipeline

import (
	"sort"

	"axmed/internal"
	"axmed/internal/catalog"
	"axmed/internal/config"
	"axmed/internal/util"
)

// Matcher links normalized rows to catalogue medicines by name.
type Matcher struct {
	cfg   config.Config
	index *catalog.Index
}

func NewMatcher(cfg config.Config, medicines []internal.MedicineRecord) *Matcher {
	return &Matcher{cfg: cfg, index: catalog.BuildIndex(medicines)}
}

// Match scores one row. checkQty downgrades order rows whose quantity does
// not parse to a positive number.
func (m *Matcher) Match(row internal.NormalizedRow, checkQty bool) internal.MatchResult {
	result := m.matchName(row.MedicineName)
	if checkQty && util.QtyInt(row.Quantity) <= 0 && result.Status == internal.MatchOK {
		result.Status = internal.MatchReview
		if result.Confidence > 0.7 {
			result.Confidence = 0.7
		}
	}
	return result
}

func (m *Matcher) matchName(name string) internal.MatchResult {
	normalized := util.NormalizeName(name)
	if normalized == "" {
		return notFound(nil, 0)
	}

	exact := m.index.ByName[normalized]
	if len(exact) == 1 {
		return internal.MatchResult{
			Status:     internal.MatchOK,
			Confidence: 0.95,
			Reason:     internal.ReasonName,
			Medicine:   toMatchMedicine(exact[0]),
			Candidates: []internal.MatchCandidate{{ID: exact[0].ID, Name: exact[0].Name, Score: 0.95}},
		}
	}
	if len(exact) > 1 {
		return internal.MatchResult{
			Status:     internal.MatchReview,
			Confidence: 0.78,
			Reason:     internal.ReasonName,
			Candidates: toCandidates(exact, 0.78),
		}
	}

	candidates := m.rankCandidates(normalized)
	if len(candidates) == 0 {
		return notFound(nil, 0)
	}

	top1 := candidates[0]
	gap := top1.Score
	if len(candidates) > 1 {
		gap = top1.Score - candidates[1].Score
	}

	best := m.index.MedicinesByID[top1.ID]
	switch {
	case top1.Score >= m.cfg.MatchOKThreshold && gap >= m.cfg.MatchGapThreshold:
		return internal.MatchResult{Status: internal.MatchOK, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Medicine: toMatchMedicine(best), Candidates: candidates}
	case top1.Score >= m.cfg.MatchReviewThreshold:
		return internal.MatchResult{Status: internal.MatchReview, Confidence: top1.Score, Reason: internal.ReasonFuzzy, Medicine: toMatchMedicine(best), Candidates: candidates}
	default:
		return notFound(candidates, top1.Score)
	}
}

func notFound(candidates []internal.MatchCandidate, score float64) internal.MatchResult {
	if candidates == nil {
		candidates = []internal.MatchCandidate{}
	}
	return internal.MatchResult{Status: internal.MatchNotFound, Confidence: score, Reason: internal.ReasonNone, Candidates: candidates}
}

func (m *Matcher) rankCandidates(query string) []internal.MatchCandidate {
	queryTokens := util.Tokenize(query)
	ids := map[int]struct{}{}

	for _, token := range queryTokens {
		for id := range m.index.TokenToMedicineIDs[token] {
			ids[id] = struct{}{}
		}
	}

	if len(ids) == 0 {
		i := 0
		for id := range m.index.MedicinesByID {
			ids[id] = struct{}{}
			i++
			if i >= 1500 {
				break
			}
		}
	}

	out := make([]internal.MatchCandidate, 0, len(ids))
	for id := range ids {
		medicine := m.index.MedicinesByID[id]
		candidateName := m.index.NormalizedNameByID[id]
		score := scoreName(query, candidateName, queryTokens, util.Tokenize(candidateName))
		out = append(out, internal.MatchCandidate{ID: medicine.ID, Name: medicine.Name, Score: score})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ID < out[j].ID
		}
		return out[i].Score > out[j].Score
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func scoreName(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func toMatchMedicine(m internal.MedicineRecord) *internal.MatchMedicine {
	return &internal.MatchMedicine{ID: m.ID, Name: m.Name, Category: m.Category, SIPRequired: m.SIPRequired}
}

func toCandidates(medicines []internal.MedicineRecord, score float64) []internal.MatchCandidate {
	limit := len(medicines)
	if limit > 5 {
		limit = 5
	}
	out := make([]internal.MatchCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, internal.MatchCandidate{ID: medicines[i].ID, Name: medicines[i].Name, Score: score})
	}
	return out
}
