package usecase

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/pbs-retrieval/internal/core/domain"
)

// AnalyzerConfig switches individual facet families on or off.
type AnalyzerConfig struct {
	Countries   bool
	Phases      bool
	SurveyTypes bool
	Years       bool
}

func DefaultAnalyzerConfig() AnalyzerConfig {
	return AnalyzerConfig{Countries: true, Phases: true, SurveyTypes: true, Years: true}
}

type countryAlias struct {
	alias   string
	country domain.Country
}

// Demonyms and short forms that resolve to a canonical country.
var countryAliases = []countryAlias{
	{"tajik", domain.CountryTajikistan},
	{"guatemalan", domain.CountryGuatemala},
	{"tanzanian", domain.CountryTanzania},
	{"ugandan", domain.CountryUganda},
	{"kenyan", domain.CountryKenya},
	{"malawian", domain.CountryMalawi},
	{"zambian", domain.CountryZambia},
	{"ghanaian", domain.CountryGhana},
	{"liberian", domain.CountryLiberia},
	{"haitian", domain.CountryHaiti},
	{"honduran", domain.CountryHonduras},
	{"nepali", domain.CountryNepal},
	{"nepalese", domain.CountryNepal},
	{"rwandan", domain.CountryRwanda},
	{"senegalese", domain.CountrySenegal},
	{"nigerian", domain.CountryNigeria},
	{"malian", domain.CountryMali},
	{"mozambican", domain.CountryMozambique},
	{"ethiopian", domain.CountryEthiopia},
	{"cambodian", domain.CountryCambodia},
	{"bangladeshi", domain.CountryBangladesh},
}

type surveyKeyword struct {
	keyword string
	round   domain.SurveyRound
}

var surveyKeywords = []surveyKeyword{
	{"baseline", domain.SurveyBaseline},
	{"midline", domain.SurveyMidline},
	{"endline", domain.SurveyEndline},
	{"interim", domain.SurveyInterim},
	{"end-line", domain.SurveyEndline},
	{"end line", domain.SurveyEndline},
}

var (
	phaseRomanPattern  = regexp.MustCompile(`(?i)\bphase\s+(i{1,3}|iv)\b`)
	phaseArabicPattern = regexp.MustCompile(`(?i)\bphase\s+([1-4])\b`)
	phaseShortPattern  = regexp.MustCompile(`(?i)\bp([1-4])\b`)
	yearPattern        = regexp.MustCompile(`\b(?:19|20)\d{2}\b`)
)

var romanPhases = map[string]domain.Phase{"i": 1, "ii": 2, "iii": 3, "iv": 4}

// QueryAnalyzer extracts countries, phases, survey rounds and years from a
// free-text query. It is pure and safe for concurrent use.
type QueryAnalyzer struct {
	cfg AnalyzerConfig
}

func NewQueryAnalyzer(cfg AnalyzerConfig) *QueryAnalyzer {
	return &QueryAnalyzer{cfg: cfg}
}

func (a *QueryAnalyzer) Analyze(query string) domain.QueryEntities {
	entities := domain.EmptyQueryEntities()
	lowered := strings.ToLower(query)

	if a.cfg.Countries {
		entities.Countries = extractCountries(lowered)
	}
	if a.cfg.Phases {
		entities.Phases = extractPhases(query)
	}
	if a.cfg.SurveyTypes {
		entities.SurveyTypes = extractSurveyRounds(lowered)
	}
	if a.cfg.Years {
		entities.Years = extractYears(query)
	}
	return entities
}

type countryHit struct {
	country  domain.Country
	position int
}

func extractCountries(lowered string) []domain.Country {
	hits := make([]countryHit, 0, 2)
	seen := make(map[domain.Country]struct{})

	for _, c := range domain.Countries() {
		if pos := strings.Index(lowered, strings.ToLower(string(c))); pos >= 0 {
			hits = append(hits, countryHit{country: c, position: pos})
			seen[c] = struct{}{}
		}
	}

	aliasHits := make(map[domain.Country]int)
	for _, a := range countryAliases {
		if _, direct := seen[a.country]; direct {
			continue
		}
		pos := strings.Index(lowered, a.alias)
		if pos < 0 {
			continue
		}
		if prev, ok := aliasHits[a.country]; !ok || pos < prev {
			aliasHits[a.country] = pos
		}
	}
	for c, pos := range aliasHits {
		hits = append(hits, countryHit{country: c, position: pos})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].position != hits[j].position {
			return hits[i].position < hits[j].position
		}
		return hits[i].country < hits[j].country
	})

	out := make([]domain.Country, 0, len(hits))
	for _, h := range hits {
		out = append(out, h.country)
	}
	return out
}

func extractPhases(query string) []domain.Phase {
	out := make([]domain.Phase, 0, 2)
	add := func(p domain.Phase) {
		if !p.Valid() {
			return
		}
		for _, existing := range out {
			if existing == p {
				return
			}
		}
		out = append(out, p)
	}

	for _, m := range phaseRomanPattern.FindAllStringSubmatch(query, -1) {
		add(romanPhases[strings.ToLower(m[1])])
	}
	for _, pattern := range []*regexp.Regexp{phaseArabicPattern, phaseShortPattern} {
		for _, m := range pattern.FindAllStringSubmatch(query, -1) {
			n, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			add(domain.Phase(n))
		}
	}
	return out
}

func extractSurveyRounds(lowered string) []domain.SurveyRound {
	out := make([]domain.SurveyRound, 0, 1)
	for _, kw := range surveyKeywords {
		if !strings.Contains(lowered, kw.keyword) {
			continue
		}
		duplicate := false
		for _, existing := range out {
			if existing == kw.round {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, kw.round)
		}
	}
	return out
}

func extractYears(query string) []int {
	matches := yearPattern.FindAllString(query, -1)
	out := make([]int, 0, len(matches))
	for _, m := range matches {
		year, err := strconv.Atoi(m)
		if err != nil {
			continue
		}
		out = append(out, year)
	}
	return out
}
