package sidra

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type Location struct {
	Code  string `json:"code"`
	Level string `json:"level"`
	Name  string `json:"name"`
}

type ConceptSpec struct {
	Concept         string            `json:"concept"`
	Table           string            `json:"table"`
	Variables       []string          `json:"variables"`
	Classifications map[string]string `json:"classifications,omitempty"`
	Period          string            `json:"period"`
}

type TableInfo struct {
	Code        string
	Name        string
	Description string
	Parameters  []string
}

type Parameter struct {
	Code        string
	Name        string
	Description string
	Values      map[string]string
}

var territorialLevels = map[string]string{
	"1": "Brasil",
	"2": "Grande Região",
	"3": "Unidade da Federação",
	"6": "Município",
	"7": "Região Metropolitana",
	"8": "Mesorregião Geográfica",
	"9": "Microrregião Geográfica",
}

var commonLocations = map[string]Location{
	"brasil": {Code: "1", Level: "1", Name: "Brasil"},
	"brazil": {Code: "1", Level: "1", Name: "Brasil"},

	"norte":           {Code: "1", Level: "2", Name: "Região Norte"},
	"regiao norte":    {Code: "1", Level: "2", Name: "Região Norte"},
	"nordeste":        {Code: "2", Level: "2", Name: "Região Nordeste"},
	"regiao nordeste": {Code: "2", Level: "2", Name: "Região Nordeste"},
	"sudeste":         {Code: "3", Level: "2", Name: "Região Sudeste"},
	"regiao sudeste":  {Code: "3", Level: "2", Name: "Região Sudeste"},
	"sul":             {Code: "4", Level: "2", Name: "Região Sul"},
	"regiao sul":      {Code: "4", Level: "2", Name: "Região Sul"},
	"centro oeste":    {Code: "5", Level: "2", Name: "Região Centro-Oeste"},
	"centro-oeste":    {Code: "5", Level: "2", Name: "Região Centro-Oeste"},

	"sao paulo":      {Code: "35", Level: "3", Name: "São Paulo"},
	"rio de janeiro": {Code: "33", Level: "3", Name: "Rio de Janeiro"},
	"minas gerais":   {Code: "31", Level: "3", Name: "Minas Gerais"},
	"bahia":          {Code: "29", Level: "3", Name: "Bahia"},

	"sao paulo capital":      {Code: "3550308", Level: "6", Name: "São Paulo (Capital)"},
	"sao paulo sp":           {Code: "3550308", Level: "6", Name: "São Paulo (Capital)"},
	"rio de janeiro capital":  {Code: "3304557", Level: "6", Name: "Rio de Janeiro (Capital)"},
	"rio de janeiro rj":       {Code: "3304557", Level: "6", Name: "Rio de Janeiro (Capital)"},
	"belo horizonte":          {Code: "3106200", Level: "6", Name: "Belo Horizonte"},
	"bh":                      {Code: "3106200", Level: "6", Name: "Belo Horizonte"},
	"salvador":                {Code: "2927408", Level: "6", Name: "Salvador"},
}

var ufCodes = map[string]string{
	"AC": "12", "AL": "27", "AP": "16", "AM": "13", "BA": "29", "CE": "23",
	"DF": "53", "ES": "32", "GO": "52", "MA": "21", "MT": "51", "MS": "50",
	"MG": "31", "PA": "15", "PB": "25", "PR": "41", "PE": "26", "PI": "22",
	"RJ": "33", "RN": "24", "RS": "43", "RO": "11", "RR": "14", "SC": "42",
	"SP": "35", "SE": "28", "TO": "17",
}

var nonAlnumRe = regexp.MustCompile(`[^a-z0-9\s_-]`)
var multiSpaceRe = regexp.MustCompile(`\s+`)

var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

func NormalizeText(text string) string {
	if text == "" {
		return ""
	}

	lowered := strings.ToLower(text)
	folded, _, err := transform.String(stripDiacritics, lowered)
	if err != nil {
		folded = lowered
	}

	folded = nonAlnumRe.ReplaceAllString(folded, "")
	folded = multiSpaceRe.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

type Mapper struct {
	concepts        map[string]ConceptSpec
	termToParameter map[string]string
	parameters      map[string]Parameter
	tables          map[string]TableInfo
}

func NewMapper() *Mapper {
	return &Mapper{
		concepts:        defaultConcepts(),
		termToParameter: defaultTermParameters(),
		parameters:      defaultParameters(),
		tables:          defaultTables(),
	}
}

func (m *Mapper) MapLocation(name string) (Location, error) {
	if name == "" {
		return Location{}, fmt.Errorf("%w: empty location", ErrLocationNotFound)
	}

	normalized := NormalizeText(name)

	if loc, ok := commonLocations[normalized]; ok {
		return loc, nil
	}

	if len(normalized) == 2 {
		if code, ok := ufCodes[strings.ToUpper(normalized)]; ok {
			return Location{Code: code, Level: "3", Name: name}, nil
		}
	}

	if isDigits(normalized) {
		// Last-resort positional heuristic for raw territory codes.
		switch len(normalized) {
		case 1:
			return Location{Code: normalized, Level: "2", Name: name}, nil
		case 2:
			return Location{Code: normalized, Level: "3", Name: name}, nil
		case 7:
			return Location{Code: normalized, Level: "6", Name: name}, nil
		}
	}

	return Location{}, fmt.Errorf("%w: %q", ErrLocationNotFound, name)
}

func (m *Mapper) MapConcept(concept string) (ConceptSpec, error) {
	normalized := NormalizeText(concept)

	spec, ok := m.concepts[normalized]
	if !ok {
		return ConceptSpec{}, fmt.Errorf("%w: %q", ErrConceptNotFound, concept)
	}

	return spec, nil
}

func (m *Mapper) Concepts() []string {
	names := make([]string, 0, len(m.concepts))
	for name := range m.concepts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (m *Mapper) MapTerms(terms []string, preferredTable string) ConceptSpec {
	normalized := make([]string, len(terms))
	for i, t := range terms {
		normalized[i] = NormalizeText(t)
	}

	matched := map[string][]string{}
	for _, term := range normalized {
		if code, ok := m.termToParameter[term]; ok {
			matched[code] = append(matched[code], term)
		}
	}

	if len(matched) == 0 {
		for code, param := range m.parameters {
			haystack := NormalizeText(param.Name + " " + param.Description)
			for _, term := range normalized {
				if term != "" && strings.Contains(haystack, term) {
					matched[code] = append(matched[code], term)
				}
			}
		}
	}

	if preferredTable != "" {
		if table, ok := m.tables[preferredTable]; ok {
			filtered := map[string][]string{}
			for _, code := range table.Parameters {
				if terms, ok := matched[code]; ok {
					filtered[code] = terms
				}
			}
			matched = filtered
		}
	}

	if len(matched) == 0 {
		matched = map[string][]string{
			"200":   {"idade", "faixa etaria"},
			"6793":  {"renda", "salario"},
			"11046": {"consumo", "gasto"},
		}
	}

	spec := ConceptSpec{
		Table:           preferredTable,
		Classifications: map[string]string{},
		Period:          "last",
	}
	if spec.Table == "" {
		spec.Table = "6401"
	}

	codes := make([]string, 0, len(matched))
	for code := range matched {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	for _, code := range codes {
		if code == "6793" {
			spec.Variables = append(spec.Variables, code)
			continue
		}
		spec.Classifications[code] = m.refineClassification(code, normalized)
	}

	if len(spec.Variables) == 0 {
		spec.Variables = []string{"6793"}
	}

	return spec
}

func (m *Mapper) refineClassification(code string, terms []string) string {
	param, ok := m.parameters[code]
	if !ok {
		return "all"
	}

	var matches []string
	for valueCode, desc := range param.Values {
		descFolded := NormalizeText(desc)
		for _, term := range terms {
			if term != "" && strings.Contains(descFolded, term) {
				matches = append(matches, valueCode)
				break
			}
		}
	}

	if len(matches) == 0 {
		return "all"
	}

	sort.Strings(matches)
	return strings.Join(matches, ",")
}

func (m *Mapper) SuggestTables(terms []string) []TableInfo {
	type scored struct {
		info  TableInfo
		score int
	}

	var results []scored
	for _, table := range m.tables {
		tableTerms := NormalizeText(table.Name + " " + table.Description)
		score := 0
		for _, term := range terms {
			if t := NormalizeText(term); t != "" && strings.Contains(tableTerms, t) {
				score++
			}
		}
		if score > 0 {
			results = append(results, scored{table, score})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].score != results[j].score {
			return results[i].score > results[j].score
		}
		return results[i].info.Code < results[j].info.Code
	})

	out := make([]TableInfo, len(results))
	for i, r := range results {
		out[i] = r.info
	}
	return out
}

func ValidClassificationValue(value string) bool {
	if strings.EqualFold(value, "all") {
		return true
	}

	parts := strings.Split(value, ",")
	for _, part := range parts {
		if !isDigits(strings.TrimSpace(part)) {
			return false
		}
	}
	return len(parts) > 0
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func defaultConcepts() map[string]ConceptSpec {
	return map[string]ConceptSpec{
		"despesas_familiares": {
			Concept:         "despesas_familiares",
			Table:           "7482",
			Variables:       []string{"10008"},
			Classifications: map[string]string{"11046": "all"},
			Period:          "2017-2018",
		},
		"bens_duraveis": {
			Concept:         "bens_duraveis",
			Table:           "7493",
			Variables:       []string{"10007"},
			Classifications: map[string]string{"11046": "all"},
			Period:          "2017-2018",
		},
		"avaliacao_vida": {
			Concept:   "avaliacao_vida",
			Table:     "9052",
			Variables: []string{"11735"},
			Period:    "2017-2018",
		},
		"caracteristicas_domicilio": {
			Concept:   "caracteristicas_domicilio",
			Table:     "9053",
			Variables: []string{"11736"},
			Period:    "2017-2018",
		},
		"renda_trabalho": {
			Concept:         "renda_trabalho",
			Table:           "6401",
			Variables:       []string{"6793"},
			Classifications: map[string]string{"200": "all"},
			Period:          "last",
		},
	}
}

func defaultTermParameters() map[string]string {
	return map[string]string{
		"idade":        "200",
		"faixa etaria": "200",
		"genero":       "143",
		"sexo":         "143",
		"escolaridade": "276",
		"instrucao":    "276",
		"raca":         "93",
		"cor":          "93",
		"estado civil": "200",

		"renda":      "6793",
		"salario":    "6793",
		"ocupacao":   "6793",
		"emprego":    "6793",
		"desemprego": "6793",
		"setor":      "6793",
		"atividade":  "6793",

		"consumo":  "11046",
		"gasto":    "11046",
		"despesa":  "11046",
		"compra":   "11046",
		"venda":    "11046",
		"comercio": "11046",

		"alimentacao":     "11046",
		"alimento":        "11046",
		"moradia":         "11046",
		"habitacao":       "11046",
		"transporte":      "11046",
		"saude":           "11046",
		"educacao":        "11046",
		"lazer":           "11046",
		"cultura":         "11046",
		"vestuario":       "11046",
		"roupa":           "11046",
		"eletrodomestico": "11046",
		"eletronico":      "11046",
		"tecnologia":      "11046",
	}
}

func defaultParameters() map[string]Parameter {
	return map[string]Parameter{
		"200": {
			Code:        "200",
			Name:        "Faixa etária",
			Description: "Faixas de idade da população",
			Values: map[string]string{
				"1933": "14 a 17 anos",
				"1934": "18 a 24 anos",
				"1935": "25 a 39 anos",
				"1936": "40 a 59 anos",
				"1937": "60 anos ou mais",
			},
		},
		"143": {
			Code:        "143",
			Name:        "Sexo",
			Description: "Sexo da pessoa",
			Values: map[string]string{
				"4": "Homens",
				"5": "Mulheres",
			},
		},
		"276": {
			Code:        "276",
			Name:        "Nível de instrução",
			Description: "Nível de instrução da pessoa",
			Values: map[string]string{
				"29576": "Sem instrução e fundamental incompleto",
				"29577": "Fundamental completo e médio incompleto",
				"29578": "Médio completo e superior incompleto",
				"29579": "Superior completo",
				"29580": "Pós-graduação",
			},
		},
		"93": {
			Code:        "93",
			Name:        "Cor ou raça",
			Description: "Cor ou raça da pessoa",
			Values: map[string]string{
				"1": "Branca",
				"2": "Preta",
				"3": "Amarela",
				"4": "Parda",
				"5": "Indígena",
				"9": "Ignorado",
			},
		},
		"6793": {
			Code:        "6793",
			Name:        "Rendimento",
			Description: "Faixas de rendimento",
			Values: map[string]string{
				"0": "Sem rendimento",
				"1": "Até 1 salário mínimo",
				"2": "Mais de 1 a 2 salários mínimos",
				"3": "Mais de 2 a 3 salários mínimos",
				"4": "Mais de 3 a 5 salários mínimos",
				"5": "Mais de 5 a 10 salários mínimos",
				"6": "Mais de 10 a 20 salários mínimos",
				"7": "Mais de 20 salários mínimos",
				"8": "Sem declaração",
			},
		},
		"11046": {
			Code:        "11046",
			Name:        "Categorias de despesa",
			Description: "Categorias de despesa da POF",
			Values: map[string]string{
				"114023": "Habitação",
				"114024": "Alimentação",
				"114025": "Saúde",
				"114026": "Bens duráveis",
				"114027": "Recreação e cultura",
				"114028": "Esportes",
				"114029": "Educação",
				"114030": "Vestuário",
				"114031": "Transporte",
				"114032": "Comunicação",
				"114033": "Despesas diversas",
				"114034": "Impostos",
				"114035": "Poupança e investimentos",
				"114036": "Doações",
				"114037": "Outras despesas",
			},
		},
	}
}

func defaultTables() map[string]TableInfo {
	return map[string]TableInfo{
		"6401": {
			Code:        "6401",
			Name:        "PNAD Contínua - Rendimento e outras características",
			Description: "Dados sobre rendimento, trabalho, desemprego e outras características da população",
			Parameters:  []string{"200", "6793", "143", "276", "93"},
		},
		"7482": {
			Code:        "7482",
			Name:        "POF - Despesas",
			Description: "Dados sobre despesas das famílias brasileiras",
			Parameters:  []string{"11046", "11047"},
		},
		"7493": {
			Code:        "7493",
			Name:        "POF - Bens Duráveis",
			Description: "Posse de bens duráveis pelas famílias",
			Parameters:  []string{"11046"},
		},
		"4093": {
			Code:        "4093",
			Name:        "PNAD Contínua - Outros trabalhos",
			Description: "Dados sobre outros trabalhos e rendimentos",
			Parameters:  []string{"6793"},
		},
	}
}
