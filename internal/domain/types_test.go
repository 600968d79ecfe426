package domain

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQuery_Validate(t *testing.T) {
	tests := []struct {
		name    string
		query   Query
		wantErr bool
	}{
		{name: "ok", query: Query{Message: "와인 얼룩 지우는 법"}},
		{name: "ok with zipcode", query: Query{Message: "실크", Zipcode: "06236"}},
		{name: "max length in runes", query: Query{Message: strings.Repeat("얼", MaxMessageLength)}},
		{name: "empty", query: Query{}, wantErr: true},
		{name: "too long", query: Query{Message: strings.Repeat("a", MaxMessageLength+1)}, wantErr: true},
		{name: "zipcode too long", query: Query{Message: "hi", Zipcode: strings.Repeat("1", 17)}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.query.Validate()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseRiskLevel(t *testing.T) {
	for in, want := range map[string]RiskLevel{"low": RiskLow, " Medium ": RiskMedium, "HIGH": RiskHigh} {
		got, ok := ParseRiskLevel(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got)
	}
	_, ok := ParseRiskLevel("extreme")
	assert.False(t, ok)
}

func TestResponseMetadata_IsEmpty(t *testing.T) {
	assert.True(t, ResponseMetadata{}.IsEmpty())
	yes := true
	assert.False(t, ResponseMetadata{RecommendShop: &yes}.IsEmpty())
}
