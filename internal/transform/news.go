package transform

import (
	"sort"
	"strings"

	"github.com/jdkato/prose/v2"
	"go.uber.org/zap"

	"github.com/marketlens/backend/internal/market"
	"github.com/marketlens/backend/internal/news"
	"github.com/marketlens/backend/pkg/logger"
)

const (
	maxTopKeywords = 10
	maxTopEntities = 10
	maxTopics      = 5
)

var positiveWords = map[string]bool{
	"crescimento": true, "alta": true, "avanco": true, "avanço": true,
	"melhora": true, "melhoria": true, "recorde": true, "expansao": true,
	"expansão": true, "aumento": true, "ganho": true, "lucro": true,
	"recuperacao": true, "recuperação": true, "sucesso": true, "positivo": true,
	"oportunidade": true, "investimento": true, "inovacao": true, "inovação": true,
	"beneficio": true, "benefício": true, "fortalecimento": true, "otimismo": true,
}

var negativeWords = map[string]bool{
	"queda": true, "crise": true, "recessao": true, "recessão": true,
	"inflacao": true, "inflação": true, "desemprego": true, "perda": true,
	"prejuizo": true, "prejuízo": true, "retracao": true, "retração": true,
	"negativo": true, "risco": true, "colapso": true, "fracasso": true,
	"divida": true, "dívida": true, "deficit": true, "déficit": true,
	"reducao": true, "redução": true, "pessimismo": true, "instabilidade": true,
}

var stopwords = map[string]bool{
	"para": true, "pela": true, "pelo": true, "como": true, "mais": true,
	"menos": true, "sobre": true, "entre": true, "quando": true, "ainda": true,
	"tambem": true, "também": true, "esse": true, "essa": true, "este": true,
	"esta": true, "isso": true, "pode": true, "deve": true, "foram": true,
	"sera": true, "será": true, "pois": true, "apos": true, "após": true,
	"anos": true, "onde": true, "seus": true, "suas": true, "nesta": true,
	"neste": true, "segundo": true, "disse": true, "afirmou": true,
}

// ArticleSentiment scores text in [-1, 1] against a fixed Portuguese lexicon.
// Text with no lexicon hits scores 0.
func ArticleSentiment(text string) float64 {
	positives, negatives := 0, 0
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()\"'")
		if positiveWords[word] {
			positives++
		}
		if negativeWords[word] {
			negatives++
		}
	}
	total := positives + negatives
	if total == 0 {
		return 0
	}
	return float64(positives-negatives) / float64(total)
}

// News aggregates scraped articles into volume, sentiment, keyword and entity
// frequencies, source ranking and bounded topic groups.
func News(articles []news.Article) *market.NewsAnalysis {
	analysis := &market.NewsAnalysis{
		Volume:      len(articles),
		TopKeywords: map[string]int{},
		TopEntities: map[string]int{},
		Sentiments:  map[string]float64{},
	}
	if len(articles) == 0 {
		return analysis
	}

	sourceCounts := map[string]int{}
	keywordCounts := map[string]int{}
	entityCounts := map[string]int{}
	articleKeywords := make([]map[string]bool, len(articles))

	sentimentSum := 0.0
	for i, article := range articles {
		text := article.Title + ". " + article.Content

		score := ArticleSentiment(text)
		sentimentSum += score
		analysis.Sentiments[article.Title] = score
		sourceCounts[article.Source]++

		tokens, entities := tokenize(text)
		articleKeywords[i] = map[string]bool{}
		for _, token := range tokens {
			keywordCounts[token]++
			articleKeywords[i][token] = true
		}
		for _, entity := range entities {
			entityCounts[entity]++
		}
	}

	analysis.AvgSentiment = sentimentSum / float64(len(articles))
	analysis.TopSources = rankedKeys(sourceCounts, len(sourceCounts))
	analysis.TopKeywords = topCounts(keywordCounts, maxTopKeywords)
	analysis.TopEntities = topCounts(entityCounts, maxTopEntities)
	analysis.Topics = clusterTopics(articleKeywords, keywordCounts)

	return analysis
}

func tokenize(text string) ([]string, []string) {
	doc, err := prose.NewDocument(text)
	if err != nil {
		logger.Warn("NLP tokenization failed, falling back to field split", zap.Error(err))
		return fallbackTokens(text), nil
	}

	var tokens []string
	for _, tok := range doc.Tokens() {
		word := strings.ToLower(tok.Text)
		if len([]rune(word)) <= 3 || stopwords[word] {
			continue
		}
		if !isWord(word) {
			continue
		}
		tokens = append(tokens, word)
	}

	var entities []string
	for _, ent := range doc.Entities() {
		entities = append(entities, ent.Text)
	}
	return tokens, entities
}

func fallbackTokens(text string) []string {
	var tokens []string
	for _, word := range strings.Fields(strings.ToLower(text)) {
		word = strings.Trim(word, ".,;:!?()\"'")
		if len([]rune(word)) <= 3 || stopwords[word] || !isWord(word) {
			continue
		}
		tokens = append(tokens, word)
	}
	return tokens
}

func isWord(s string) bool {
	for _, r := range s {
		if (r < 'a' || r > 'z') && r < 0x80 {
			return false
		}
	}
	return true
}

// clusterTopics groups articles that share keywords, capped at
// min(maxTopics, n/2) groups. Each topic is the group's top shared terms.
func clusterTopics(articleKeywords []map[string]bool, keywordCounts map[string]int) [][]string {
	n := len(articleKeywords)
	limit := n / 2
	if limit > maxTopics {
		limit = maxTopics
	}
	if limit < 1 {
		limit = 1
	}

	type cluster struct {
		terms map[string]int
	}
	var clusters []*cluster

	for _, keywords := range articleKeywords {
		var best *cluster
		bestOverlap := 0
		for _, c := range clusters {
			overlap := 0
			for term := range keywords {
				if c.terms[term] > 0 {
					overlap++
				}
			}
			if overlap > bestOverlap {
				best = c
				bestOverlap = overlap
			}
		}

		if best == nil && len(clusters) < limit {
			best = &cluster{terms: map[string]int{}}
			clusters = append(clusters, best)
		}
		if best == nil {
			if len(clusters) == 0 {
				continue
			}
			best = clusters[0]
		}
		for term := range keywords {
			best.terms[term]++
		}
	}

	var topics [][]string
	for _, c := range clusters {
		topic := rankedKeys(c.terms, 3)
		if len(topic) > 0 {
			topics = append(topics, topic)
		}
	}
	return topics
}

func topCounts(counts map[string]int, limit int) map[string]int {
	out := map[string]int{}
	for _, key := range rankedKeys(counts, limit) {
		out[key] = counts[key]
	}
	return out
}

func rankedKeys(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
