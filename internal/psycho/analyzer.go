package psycho

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/marketlens/backend/pkg/logger"
)

const (
	ArchetypeExperiencialista = "Experiencialista"
	ArchetypeTradicionalista  = "Tradicionalista"
	ArchetypePragmatico       = "Pragmático"
	ArchetypeAspiracional     = "Aspiracional"
	ArchetypeEquilibrado      = "Equilibrado"
)

var archetypeOrder = []string{
	ArchetypeExperiencialista,
	ArchetypeTradicionalista,
	ArchetypePragmatico,
	ArchetypeAspiracional,
	ArchetypeEquilibrado,
}

var keywordFamilies = map[string][]string{
	"tech":        {"tecnologia", "digital", "inovacao", "smart", "tech"},
	"eco":         {"sustentavel", "eco", "verde", "ambiente"},
	"luxury":      {"premium", "luxo", "exclusivo", "sofisticado"},
	"young":       {"jovem", "millennial", "generation", "young"},
	"traditional": {"tradicional", "familia", "conservador", "classico"},
}

type Input struct {
	SegmentName string
	Keywords    []string
}

type Indicators struct {
	Materialistic     bool `json:"materialista"`
	HealthConscious   bool `json:"consciente_saude"`
	FamilyOriented    bool `json:"orientado_familia"`
	ExperienceSeeking bool `json:"busca_experiencias"`
	SecurityFocused   bool `json:"focado_seguranca"`
}

type Lifestyle struct {
	TechAdoption float64 `json:"adocao_tecnologia"`
	ComfortLevel float64 `json:"nivel_conforto"`
	BasicNeeds   float64 `json:"necessidades_basicas"`
	TotalGoods   int     `json:"total_bens"`
	Mobility     bool    `json:"mobilidade"`
}

type Profile struct {
	SegmentName      string             `json:"segmento"`
	Archetype        string             `json:"arquetipo"`
	Scores           map[string]float64 `json:"pontuacoes"`
	Sentiment        float64            `json:"indice_sentimento"`
	Emotions         []string           `json:"emocoes"`
	BehavioralTrends []string           `json:"tendencias_comportamentais"`
	Indicators       Indicators         `json:"indicadores"`
	Lifestyle        Lifestyle          `json:"estilo_vida"`
	DominantCategory string             `json:"categoria_dominante"`
	DurableGoods     map[string]bool    `json:"bens_duraveis"`
	Confidence       float64            `json:"confianca"`
	Source           string             `json:"fonte"`
	Quality          string             `json:"qualidade"`
}

type Analyzer struct {
	pof   *POFProvider
	store Store
}

func NewAnalyzer(pof *POFProvider, store Store) *Analyzer {
	if store == nil {
		store = NewMemoryStore()
	}
	return &Analyzer{pof: pof, store: store}
}

func (a *Analyzer) Analyze(ctx context.Context, input Input) (*Profile, error) {
	if cached, ok := a.store.Get(input.SegmentName); ok {
		if profile, ok := cached.(*Profile); ok {
			return profile, nil
		}
	}

	profile, err := a.analyze(ctx, input)
	if err != nil {
		return nil, fmt.Errorf("psychographic analysis failed: %w", err)
	}

	a.store.Set(input.SegmentName, profile)
	return profile, nil
}

func (a *Analyzer) analyze(ctx context.Context, input Input) (*Profile, error) {
	orientation := matchFamilies(input.Keywords)

	pof, err := a.pof.Fetch(ctx, input.SegmentName)
	if err != nil {
		return nil, err
	}

	indicators, dominant := behaviorIndicators(pof.Expenses)
	goods := estimateDurableGoods(orientation, pof.Household)
	lifestyle := lifestyleRatios(goods)

	scores := scoreArchetypes(indicators, lifestyle, orientation, pof.LifeEvaluation)
	archetype := pickArchetype(scores)
	indicators = applyConsistency(archetype, indicators, lifestyle, orientation)

	sentiment := sentimentIndex(indicators, lifestyle, pof.LifeEvaluation)

	logger.Debug("Psychographic profile computed",
		zap.String("segment", input.SegmentName),
		zap.String("archetype", archetype),
		zap.Float64("sentiment", sentiment),
	)

	return &Profile{
		SegmentName:      input.SegmentName,
		Archetype:        archetype,
		Scores:           scores,
		Sentiment:        sentiment,
		Emotions:         emotions(sentiment, archetype),
		BehavioralTrends: behavioralTrends(archetype, indicators, lifestyle),
		Indicators:       indicators,
		Lifestyle:        lifestyle,
		DominantCategory: dominant,
		DurableGoods:     goods,
		Confidence:       confidence(pof),
		Source:           pof.Source,
		Quality:          pof.Quality,
	}, nil
}

type orientation struct {
	tech        bool
	eco         bool
	luxury      bool
	young       bool
	traditional bool
}

func matchFamilies(keywords []string) orientation {
	joined := strings.ToLower(strings.Join(keywords, " "))
	has := func(family string) bool {
		for _, word := range keywordFamilies[family] {
			if strings.Contains(joined, word) {
				return true
			}
		}
		return false
	}
	return orientation{
		tech:        has("tech"),
		eco:         has("eco"),
		luxury:      has("luxury"),
		young:       has("young"),
		traditional: has("traditional"),
	}
}

func behaviorIndicators(expenses map[string]Expense) (Indicators, string) {
	total := 0.0
	for _, expense := range expenses {
		total += expense.Value
	}
	if total == 0 {
		return Indicators{}, ""
	}

	percent := func(code string) float64 {
		return expenses[code].Value / total * 100
	}

	dominant := ""
	dominantPct := 0.0
	for _, expense := range expenses {
		pct := expense.Value / total * 100
		if pct > dominantPct {
			dominantPct = pct
			dominant = expense.Category
		}
	}

	return Indicators{
		Materialistic:     percent("114031") > 20,
		HealthConscious:   percent("114025") > 10,
		FamilyOriented:    percent("114024") > 20,
		ExperienceSeeking: percent("114027") > 5,
		SecurityFocused:   percent("114023") > 35,
	}, dominant
}

func estimateDurableGoods(o orientation, household Household) map[string]bool {
	goods := map[string]bool{
		"geladeira":        true,
		"fogao":            true,
		"televisao":        true,
		"radio":            false,
		"telefone_celular": true,
		"computador":       household.HasComputer,
		"internet":         household.HasInternet,
		"lava_roupa":       true,
		"microondas":       true,
		"ar_condicionado":  false,
		"automovel":        true,
	}

	if o.tech {
		goods["computador"] = true
		goods["internet"] = true
	}
	if o.eco {
		goods["ar_condicionado"] = false
	}
	if o.young {
		goods["computador"] = true
		goods["internet"] = true
		goods["telefone_celular"] = true
		goods["radio"] = false
	}

	return goods
}

func lifestyleRatios(goods map[string]bool) Lifestyle {
	ratio := func(names ...string) float64 {
		owned := 0
		for _, name := range names {
			if goods[name] {
				owned++
			}
		}
		return float64(owned) / float64(len(names))
	}

	total := 0
	for _, owned := range goods {
		if owned {
			total++
		}
	}

	return Lifestyle{
		TechAdoption: ratio("computador", "internet", "telefone_celular"),
		ComfortLevel: ratio("ar_condicionado", "microondas", "lava_roupa"),
		BasicNeeds:   ratio("geladeira", "fogao", "televisao"),
		TotalGoods:   total,
		Mobility:     goods["automovel"],
	}
}

func scoreArchetypes(ind Indicators, life Lifestyle, o orientation, eval LifeEvaluation) map[string]float64 {
	scores := map[string]float64{}
	for _, name := range archetypeOrder {
		scores[name] = 0.0
	}

	if ind.ExperienceSeeking {
		scores[ArchetypeExperiencialista] += 3.0
	}
	if ind.FamilyOriented {
		scores[ArchetypeTradicionalista] += 2.5
	}
	if ind.SecurityFocused {
		scores[ArchetypeTradicionalista] += 2.0
		scores[ArchetypePragmatico] += 1.5
	}
	if ind.HealthConscious {
		scores[ArchetypePragmatico] += 2.0
		scores[ArchetypeExperiencialista] += 1.0
	}

	if life.TechAdoption > 0.7 {
		scores[ArchetypeExperiencialista] += 2.5
		scores[ArchetypeAspiracional] += 1.5
	} else if life.TechAdoption < 0.3 {
		scores[ArchetypeTradicionalista] += 2.0
	}

	if life.ComfortLevel > 0.7 {
		scores[ArchetypeAspiracional] += 2.0
	} else if life.ComfortLevel < 0.4 {
		scores[ArchetypePragmatico] += 1.5
	}

	if o.tech {
		scores[ArchetypeExperiencialista] += 2.0
	}
	if o.traditional {
		scores[ArchetypeTradicionalista] += 2.0
	}
	if o.luxury {
		scores[ArchetypeAspiracional] += 2.5
	}
	if o.eco {
		scores[ArchetypePragmatico] += 1.5
		scores[ArchetypeExperiencialista] += 1.0
	}

	if eval.Satisfaction > 0.7 && eval.FutureOutlook > 0.7 {
		scores[ArchetypeExperiencialista] += 1.5
		scores[ArchetypeAspiracional] += 1.0
	} else if eval.Satisfaction < 0.4 {
		scores[ArchetypePragmatico] += 1.0
	}

	max := 0.0
	for _, score := range scores {
		if score > max {
			max = score
		}
	}
	near := 0
	for _, score := range scores {
		if score > max*0.7 {
			near++
		}
	}
	if near >= 3 || max < 2.0 {
		scores[ArchetypeEquilibrado] += 5.0
	}

	return scores
}

func pickArchetype(scores map[string]float64) string {
	best := archetypeOrder[0]
	for _, name := range archetypeOrder {
		if scores[name] > scores[best] {
			best = name
		}
	}
	return best
}

// applyConsistency reconciles indicators with the selected archetype so the
// reported profile does not contradict itself.
func applyConsistency(archetype string, ind Indicators, life Lifestyle, o orientation) Indicators {
	switch archetype {
	case ArchetypeExperiencialista:
		if o.tech || life.TechAdoption > 0.7 {
			ind.ExperienceSeeking = true
		}
	case ArchetypeTradicionalista:
		if o.traditional && ind.FamilyOriented {
			ind.ExperienceSeeking = false
		}
	case ArchetypePragmatico:
		if !ind.HealthConscious && life.ComfortLevel > 0.6 {
			ind.HealthConscious = true
		}
	}
	return ind
}

func sentimentIndex(ind Indicators, life Lifestyle, eval LifeEvaluation) float64 {
	base := 0.3*eval.Satisfaction +
		0.2*eval.IncomeAdequacy +
		0.3*eval.FutureOutlook +
		0.2*(1-eval.FinancialStress)

	boost := life.TechAdoption * 0.1
	if ind.ExperienceSeeking {
		boost += 0.1
	}
	if ind.SecurityFocused {
		boost -= 0.05
	}

	sentiment := base*0.6 + boost*0.4 + 0.5
	if sentiment > 1 {
		return 1
	}
	if sentiment < 0 {
		return 0
	}
	return sentiment
}

var archetypeEmotions = map[string][]string{
	ArchetypeExperiencialista: {"curiosidade", "entusiasmo", "aventura"},
	ArchetypeTradicionalista:  {"estabilidade", "segurança", "nostalgia"},
	ArchetypePragmatico:       {"praticidade", "eficiência", "racionalidade"},
	ArchetypeAspiracional:     {"ambição", "aspiração", "determinação"},
	ArchetypeEquilibrado:      {"harmonia", "equilíbrio", "moderação"},
}

func emotions(sentiment float64, archetype string) []string {
	var base []string
	switch {
	case sentiment > 0.7:
		base = []string{"otimismo", "confiança"}
	case sentiment < 0.3:
		base = []string{"preocupação", "cautela"}
	default:
		base = []string{"moderação"}
	}

	seen := map[string]bool{}
	var out []string
	for _, emotion := range append(base, archetypeEmotions[archetype]...) {
		if seen[emotion] {
			continue
		}
		seen[emotion] = true
		out = append(out, emotion)
	}
	return out
}

var archetypeTrends = map[string][]string{
	ArchetypeExperiencialista: {"consumo_experiencial", "inovação_precoce"},
	ArchetypeTradicionalista:  {"consumo_conservador", "lealdade_marca"},
	ArchetypePragmatico:       {"valor_funcional", "decisão_racional"},
	ArchetypeAspiracional:     {"consumo_status", "mobilidade_social"},
	ArchetypeEquilibrado:      {"consumo_consciente", "diversificação"},
}

func behavioralTrends(archetype string, ind Indicators, life Lifestyle) []string {
	var out []string
	if life.TechAdoption > 0.7 {
		out = append(out, "digitalização_avançada")
	} else if life.TechAdoption > 0.4 {
		out = append(out, "digitalização_moderada")
	}
	if ind.ExperienceSeeking {
		out = append(out, "economia_experiência")
	}
	if ind.HealthConscious {
		out = append(out, "wellness_lifestyle")
	}
	return append(out, archetypeTrends[archetype]...)
}

func confidence(pof *POFData) float64 {
	base := 0.85
	switch {
	case pof.Quality == QualityReal:
		return base + 0.1
	case strings.Contains(pof.Source, "REAL"):
		return base
	default:
		return base - 0.15
	}
}
