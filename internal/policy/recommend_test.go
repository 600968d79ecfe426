package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"cleanrag/internal/domain"
)

func ptr[T any](v T) *T { return &v }

func TestShouldRecommend(t *testing.T) {
	tests := []struct {
		name    string
		message string
		md      domain.ResponseMetadata
		want    bool
	}{
		{name: "premium keyword without metadata", message: "이 실크 셔츠...", want: true},
		{
			name:    "ordinary cotton, confident and safe",
			message: "일반 면 티셔츠 세탁법",
			md:      domain.ResponseMetadata{SuccessRate: ptr("80%"), RiskLevel: ptr(domain.RiskLow), RecommendShop: ptr(false)},
			want:    false,
		},
		{name: "low confidence alone", message: "hello", md: domain.ResponseMetadata{SuccessRate: ptr("45%")}, want: true},
		{name: "nothing at all", message: "hello", want: false},
		{name: "english keyword any case", message: "My CASHMERE sweater", want: true},
		{name: "request phrase", message: "Can I just send it to dry cleaning?", want: true},
		{name: "high risk", message: "hello", md: domain.ResponseMetadata{RiskLevel: ptr(domain.RiskHigh)}, want: true},
		{name: "medium risk", message: "hello", md: domain.ResponseMetadata{RiskLevel: ptr(domain.RiskMedium)}, want: false},
		{name: "threshold is exclusive", message: "hello", md: domain.ResponseMetadata{SuccessRate: ptr("60~70%")}, want: false},
		{name: "unparseable confidence is no signal", message: "hello", md: domain.ResponseMetadata{SuccessRate: ptr("about 30 percent")}, want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldRecommend(tt.message, tt.md))
		})
	}
}

func TestDecide_Precedence(t *testing.T) {
	all := domain.ResponseMetadata{
		SuccessRate:   ptr("10%"),
		RiskLevel:     ptr(domain.RiskHigh),
		RecommendShop: ptr(true),
	}
	assert.Equal(t, Decision{Recommend: true, Reason: ReasonExplicit}, Decide(Input{Message: "실크 세탁소", Metadata: all}))

	all.RecommendShop = ptr(false)
	assert.Equal(t, ReasonPremiumFabric, Decide(Input{Message: "실크 세탁소", Metadata: all}).Reason)
	assert.Equal(t, ReasonRequestPhrase, Decide(Input{Message: "세탁소에 맡길까요", Metadata: all}).Reason)
	assert.Equal(t, ReasonLowConfidence, Decide(Input{Message: "면 셔츠", Metadata: all}).Reason)

	all.SuccessRate = nil
	assert.Equal(t, ReasonHighRisk, Decide(Input{Message: "면 셔츠", Metadata: all}).Reason)
	assert.Equal(t, Decision{Reason: ReasonNone}, Decide(Input{Message: "면 셔츠"}))
}

func TestParseConfidence(t *testing.T) {
	tests := []struct {
		in     string
		want   int
		wantOK bool
	}{
		{"45%", 45, true},
		{" 30~40% ", 30, true},
		{"30 - 40 %", 30, true},
		{"0%", 0, true},
		{"100%", 100, true},
		{"101%", 0, false},
		{"40~30%", 0, false},
		{"30~140%", 0, false},
		{"45", 0, false},
		{"약 45%", 0, false},
		{"45.5%", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseConfidence(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
