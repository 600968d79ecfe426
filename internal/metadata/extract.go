// Package metadata pulls the structured judgement block the model is asked
// to append to its answer.
package metadata

import (
	"regexp"
	"strings"

	"github.com/tidwall/gjson"

	"cleanrag/internal/domain"
)

var fencedJSON = regexp.MustCompile("```json\\s*([\\s\\S]*?)\\s*```")

// Extract returns the metadata found in the first ```json block of raw and
// the text with that block removed. When there is no block, or the block is
// not a JSON object, the metadata is empty and raw is returned unchanged.
func Extract(raw string) (domain.ResponseMetadata, string) {
	loc := fencedJSON.FindStringSubmatchIndex(raw)
	if loc == nil {
		return domain.ResponseMetadata{}, raw
	}
	body := raw[loc[2]:loc[3]]
	if !gjson.Valid(body) {
		return domain.ResponseMetadata{}, raw
	}
	doc := gjson.Parse(body)
	if !doc.IsObject() {
		return domain.ResponseMetadata{}, raw
	}

	var md domain.ResponseMetadata
	if v := doc.Get("success_rate"); v.Type == gjson.String {
		s := v.String()
		md.SuccessRate = &s
	}
	if v := doc.Get("risk_level"); v.Type == gjson.String {
		if level, ok := domain.ParseRiskLevel(v.String()); ok {
			md.RiskLevel = &level
		}
	}
	if v := doc.Get("recommend_shop"); v.IsBool() {
		b := v.Bool()
		md.RecommendShop = &b
	}

	clean := strings.TrimSpace(raw[:loc[0]] + raw[loc[1]:])
	return md, clean
}
