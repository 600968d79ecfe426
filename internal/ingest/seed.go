package ingest

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"cleanrag/internal/domain"
	"cleanrag/internal/retrieval"
)

// KnowledgeSeed is one knowledge entry in a YAML seed file.
type KnowledgeSeed struct {
	ID          string `yaml:"id"`
	Title       string `yaml:"title"`
	StainType   string `yaml:"stain_type"`
	Fabric      string `yaml:"fabric"`
	SuccessRate string `yaml:"success_rate"`
	RiskLevel   string `yaml:"risk_level"`
	Content     string `yaml:"content"`
}

// ProviderSeed is one partner shop in a YAML seed file.
type ProviderSeed struct {
	ID                       string `yaml:"id"`
	domain.ProviderCandidate `yaml:",inline"`
	Description              string `yaml:"description"`
}

// SeedFile is the YAML layout accepted by Load. Either section may be empty.
type SeedFile struct {
	Knowledge []KnowledgeSeed `yaml:"knowledge"`
	Providers []ProviderSeed  `yaml:"providers"`
}

// Item is a record ready to embed: Text is embedded, Payload is stored.
type Item struct {
	ID      string
	Text    string
	Payload map[string]any
}

// Batch groups loaded items by destination index.
type Batch struct {
	Knowledge []Item
	Providers []Item
}

func (b *Batch) Len() int { return len(b.Knowledge) + len(b.Providers) }

// Load expands globs and reads .yaml/.yml seed files and .txt documents.
// Text documents are chunked into knowledge items.
func (p *Pipeline) Load(paths []string) (*Batch, error) {
	b := &Batch{}
	for _, pattern := range paths {
		matches, _ := filepath.Glob(pattern)
		if matches == nil {
			matches = []string{pattern}
		}
		for _, path := range matches {
			var err error
			switch strings.ToLower(filepath.Ext(path)) {
			case ".yaml", ".yml":
				err = loadSeedFile(path, b)
			case ".txt":
				err = p.loadText(path, b)
			default:
				p.logger.Debug("skipping unsupported file", zap.String("path", path))
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	if b.Len() == 0 {
		return nil, fmt.Errorf("no seed records found in %v", paths)
	}
	return b, nil
}

func loadSeedFile(path string, b *Batch) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var sf SeedFile
	if err := yaml.Unmarshal(data, &sf); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for i, k := range sf.Knowledge {
		if k.ID == "" {
			k.ID = hashString(fmt.Sprintf("%s#k%d", path, i))
		}
		b.Knowledge = append(b.Knowledge, knowledgeItem(k))
	}
	for i, s := range sf.Providers {
		if s.ID == "" {
			s.ID = hashString(fmt.Sprintf("%s#p%d", path, i))
		}
		b.Providers = append(b.Providers, providerItem(s))
	}
	return nil
}

func (p *Pipeline) loadText(path string, b *Batch) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	doc := domain.Document{ID: hashString(path), Path: path, Content: string(data)}
	chunks, err := p.chunker.Chunk(doc)
	if err != nil {
		return fmt.Errorf("chunk %s: %w", path, err)
	}
	title := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	for _, ch := range chunks {
		b.Knowledge = append(b.Knowledge, Item{
			ID:   ch.ChunkID,
			Text: title + "\n" + ch.Text,
			Payload: map[string]any{
				"title":       title,
				"content":     ch.Text,
				"source":      path,
				"chunk_index": ch.Index,
			},
		})
	}
	return nil
}

func knowledgeItem(k KnowledgeSeed) Item {
	payload := map[string]any{"content": k.Content}
	for key, v := range map[string]string{
		"title":        k.Title,
		"stain_type":   k.StainType,
		"fabric":       k.Fabric,
		"success_rate": k.SuccessRate,
		"risk_level":   k.RiskLevel,
	} {
		if v != "" {
			payload[key] = v
		}
	}
	title := k.Title
	if title == "" {
		title = k.StainType
	}
	return Item{ID: k.ID, Text: strings.TrimSpace(title + "\n" + k.Content), Payload: payload}
}

func providerItem(s ProviderSeed) Item {
	if s.Subscription == "" {
		s.Subscription = retrieval.SubscriptionActive
	}
	specialty := s.Specialty
	if specialty == nil {
		specialty = []string{}
	}
	payload := map[string]any{
		"shop_name":    s.ShopName,
		"zipcode":      s.Zipcode,
		"subscription": s.Subscription,
		"specialty":    specialty,
	}
	if s.Rating != nil {
		payload["rating"] = *s.Rating
	}
	if s.Description != "" {
		payload["description"] = s.Description
	}
	text := strings.TrimSpace(s.ShopName + "\n" + strings.Join(specialty, ", ") + "\n" + s.Description)
	return Item{ID: s.ID, Text: text, Payload: payload}
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:])
}
