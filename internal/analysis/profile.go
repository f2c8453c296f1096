// ABOUTME: Running customer profile and potential-score calculation.
// ABOUTME: Folds per-message sentiment and question type into a 0-100 score and a follow-up action.

package analysis

import (
	"maps"
	"math"
	"regexp"
	"time"
)

// Score weights.
const (
	weightSentiment          = 25
	weightInvestmentQuestion = 5
	weightFrequency          = 5
)

// Sentiment label thresholds on the average score.
const (
	PositiveThreshold = 0.3
	NegativeThreshold = -0.3
)

// Question types.
const (
	QuestionPrice        = "price_inquiry"
	QuestionRegistration = "registration"
	QuestionInvestment   = "investment"
	QuestionComplaint    = "complaint"
	QuestionSupport      = "support"
	QuestionGeneral      = "general_inquiry"
)

// Recommended follow-up actions.
const (
	ActionPriority = "priority_support"
	ActionFollowUp = "follow_up"
	ActionGeneral  = "general_follow_up"
	ActionStandard = "standard_response"
)

var questionPatterns = []struct {
	kind    string
	pattern *regexp.Regexp
}{
	{QuestionPrice, regexp.MustCompile(`giá|chi phí|phí|price|cost`)},
	{QuestionRegistration, regexp.MustCompile(`đăng ký|đăng kí|thành viên|register|sign up`)},
	{QuestionInvestment, regexp.MustCompile(`đầu tư|cổ đông|góp vốn|invest|shareholder`)},
	{QuestionComplaint, regexp.MustCompile(`khiếu nại|phàn nàn|complaint`)},
	{QuestionSupport, regexp.MustCompile(`hỗ trợ|tư vấn|help|support`)},
}

// ClassifyQuestion buckets a lowercased message by intent. The first match wins.
func ClassifyQuestion(text string) string {
	for _, qp := range questionPatterns {
		if qp.pattern.MatchString(text) {
			return qp.kind
		}
	}
	return QuestionGeneral
}

// Profile accumulates what is known about one customer.
type Profile struct {
	Interactions     int            `json:"interactions"`
	SentimentSum     float64        `json:"sentiment_sum"`
	AverageSentiment float64        `json:"average_sentiment"`
	Sentiment        string         `json:"sentiment"`
	QuestionTypes    map[string]int `json:"question_types"`
	FirstSeen        time.Time      `json:"first_seen"`
	LastSeen         time.Time      `json:"last_seen"`
	PotentialScore   float64        `json:"potential_score"`
	Action           string         `json:"recommended_action"`
}

// Observe folds one scored message into the profile and recomputes derived fields.
func (p Profile) Observe(sentiment float64, questionType string, at time.Time) Profile {
	out := p
	out.QuestionTypes = maps.Clone(p.QuestionTypes)
	if out.QuestionTypes == nil {
		out.QuestionTypes = map[string]int{}
	}

	if out.Interactions == 0 {
		out.FirstSeen = at
	}
	out.Interactions++
	out.LastSeen = at
	out.SentimentSum += sentiment
	out.AverageSentiment = round(out.SentimentSum/float64(out.Interactions), 2)
	out.QuestionTypes[questionType]++

	out.Sentiment = SentimentLabel(out.AverageSentiment)
	out.PotentialScore = PotentialScore(out)
	out.Action = RecommendedAction(out.PotentialScore)
	return out
}

// Frequency returns interactions per day over the observed span.
func (p Profile) Frequency() float64 {
	if p.Interactions < 2 {
		return 0
	}
	days := p.LastSeen.Sub(p.FirstSeen).Hours() / 24
	if days <= 0 {
		days = 1
	}
	return float64(p.Interactions) / days
}

// PotentialScore rates customer value in [0, 100].
func PotentialScore(p Profile) float64 {
	score := p.AverageSentiment * weightSentiment
	score += float64(p.QuestionTypes[QuestionInvestment]) * weightInvestmentQuestion
	if f := p.Frequency(); f > 1 {
		score += math.Log(f) * weightFrequency
	}
	return round(clamp(score, 0, 100), 1)
}

// RecommendedAction maps a potential score to a follow-up action.
func RecommendedAction(score float64) string {
	switch {
	case score >= 80:
		return ActionPriority
	case score >= 60:
		return ActionFollowUp
	case score >= 40:
		return ActionGeneral
	default:
		return ActionStandard
	}
}

// SentimentLabel buckets an average score.
func SentimentLabel(avg float64) string {
	switch {
	case avg > PositiveThreshold:
		return "positive"
	case avg < NegativeThreshold:
		return "negative"
	default:
		return "neutral"
	}
}

func round(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}
