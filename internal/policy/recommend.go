// Package policy decides whether a reply should carry partner shop
// recommendations. It is pure: no I/O, no shared state.
package policy

import (
	"regexp"
	"strconv"
	"strings"

	"cleanrag/internal/domain"
)

// ConfidenceThreshold is the success rate, in percent, below which a shop
// is recommended.
const ConfidenceThreshold = 60

// Reason names the signal that triggered a recommendation.
type Reason string

const (
	ReasonNone          Reason = "none"
	ReasonExplicit      Reason = "explicit"
	ReasonPremiumFabric Reason = "premium_fabric"
	ReasonRequestPhrase Reason = "request_phrase"
	ReasonLowConfidence Reason = "low_confidence"
	ReasonHighRisk      Reason = "high_risk"
)

var premiumKeywords = []string{
	"실크", "캐시미어", "가죽", "울", "린넨",
	"silk", "cashmere", "leather", "wool", "linen",
}

var requestPhrases = []string{
	"맡기", "세탁소", "전문", "의뢰", "드라이클리닝",
	"entrust", "professional shop", "dry cleaning", "dry clean",
}

// confidencePattern accepts "NN%", "NN~MM%" and "NN-MM%".
var confidencePattern = regexp.MustCompile(`^\s*(\d{1,3})\s*(?:[~\-]\s*(\d{1,3})\s*)?%\s*$`)

// Input is everything the policy looks at.
type Input struct {
	Message  string
	Metadata domain.ResponseMetadata
}

// Decision is the outcome of Decide.
type Decision struct {
	Recommend bool
	Reason    Reason
}

// Decide evaluates the signals in precedence order and reports the first
// one that fires.
func Decide(in Input) Decision {
	md := in.Metadata
	text := strings.ToLower(in.Message)

	switch {
	case md.RecommendShop != nil && *md.RecommendShop:
		return Decision{Recommend: true, Reason: ReasonExplicit}
	case containsAny(text, premiumKeywords):
		return Decision{Recommend: true, Reason: ReasonPremiumFabric}
	case containsAny(text, requestPhrases):
		return Decision{Recommend: true, Reason: ReasonRequestPhrase}
	case md.SuccessRate != nil && belowThreshold(*md.SuccessRate):
		return Decision{Recommend: true, Reason: ReasonLowConfidence}
	case md.RiskLevel != nil && *md.RiskLevel == domain.RiskHigh:
		return Decision{Recommend: true, Reason: ReasonHighRisk}
	}
	return Decision{Reason: ReasonNone}
}

// ShouldRecommend is Decide reduced to its boolean.
func ShouldRecommend(message string, md domain.ResponseMetadata) bool {
	return Decide(Input{Message: message, Metadata: md}).Recommend
}

// ParseConfidence returns the leading percentage of a success rate string.
// ok is false when s is not in one of the accepted forms.
func ParseConfidence(s string) (percent int, ok bool) {
	m := confidencePattern.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	lo, err := strconv.Atoi(m[1])
	if err != nil || lo > 100 {
		return 0, false
	}
	if m[2] != "" {
		hi, err := strconv.Atoi(m[2])
		if err != nil || hi > 100 || hi < lo {
			return 0, false
		}
	}
	return lo, true
}

func belowThreshold(rate string) bool {
	p, ok := ParseConfidence(rate)
	return ok && p < ConfidenceThreshold
}

func containsAny(text string, terms []string) bool {
	for _, t := range terms {
		if strings.Contains(text, t) {
			return true
		}
	}
	return false
}
