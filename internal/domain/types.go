package domain

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxMessageLength is the longest user message accepted, in characters.
const MaxMessageLength = 1000

// Disclaimer is attached to every chat reply.
const Disclaimer = "※ 이 조언은 참고용이며, 실제 결과는 다를 수 있습니다. 귀중한 의류는 전문 세탁소에 맡기시는 것을 권장합니다."

var validate = validator.New()

// Query is a single user question plus an optional locality hint.
type Query struct {
	Message string `json:"message" validate:"required,max=1000"`
	Zipcode string `json:"zipcode,omitempty" validate:"omitempty,max=16"`
}

// Validate checks the query against the request contract.
func (q Query) Validate() error {
	return validate.Struct(q)
}

// RiskLevel is the model's judgement of how risky home treatment is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseRiskLevel accepts low, medium and high in any case.
func ParseRiskLevel(s string) (RiskLevel, bool) {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow, true
	case RiskMedium:
		return RiskMedium, true
	case RiskHigh:
		return RiskHigh, true
	}
	return "", false
}

// KnowledgeRecord is a match from the knowledge index. Attributes holds the
// record payload (title, content, success_rate, ...).
type KnowledgeRecord struct {
	ID         string
	Score      float64
	Attributes map[string]any
}

// ProviderCandidate is a partner cleaning shop returned by the providers index.
type ProviderCandidate struct {
	ShopName     string   `json:"shop_name" yaml:"shop_name"`
	Zipcode      string   `json:"zipcode" yaml:"zipcode"`
	Subscription string   `json:"subscription" yaml:"subscription"`
	Specialty    []string `json:"specialty" yaml:"specialty"`
	Rating       *float64 `json:"rating,omitempty" yaml:"rating,omitempty"`
}

// ResponseMetadata holds judgements the model embeds in its answer. Every
// field is optional; nil means the model did not say.
type ResponseMetadata struct {
	SuccessRate   *string
	RiskLevel     *RiskLevel
	RecommendShop *bool
}

// IsEmpty reports whether no field was extracted.
func (m ResponseMetadata) IsEmpty() bool {
	return m.SuccessRate == nil && m.RiskLevel == nil && m.RecommendShop == nil
}

// ChatReply is the pipeline output returned to the caller.
type ChatReply struct {
	Answer           string              `json:"answer"`
	SuccessRate      *string             `json:"success_rate,omitempty"`
	RiskLevel        *RiskLevel          `json:"risk_level,omitempty"`
	RecommendedShops []ProviderCandidate `json:"recommended_shops"`
	Disclaimer       string              `json:"disclaimer"`
}

// Document is a plain-text source loaded for seeding the knowledge index.
type Document struct {
	ID      string
	Path    string
	Content string
}

// Chunk is a sentence-aligned slice of a Document.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Text       string
	Index      int
}
