package domain

import "strings"

// Country is one of the twenty Feed the Future focus countries covered by
// the PBS corpus. Values are canonical display names.
type Country string

const (
	CountryBangladesh Country = "Bangladesh"
	CountryCambodia   Country = "Cambodia"
	CountryEthiopia   Country = "Ethiopia"
	CountryGhana      Country = "Ghana"
	CountryGuatemala  Country = "Guatemala"
	CountryHaiti      Country = "Haiti"
	CountryHonduras   Country = "Honduras"
	CountryKenya      Country = "Kenya"
	CountryLiberia    Country = "Liberia"
	CountryMalawi     Country = "Malawi"
	CountryMali       Country = "Mali"
	CountryMozambique Country = "Mozambique"
	CountryNepal      Country = "Nepal"
	CountryNigeria    Country = "Nigeria"
	CountryRwanda     Country = "Rwanda"
	CountrySenegal    Country = "Senegal"
	CountryTajikistan Country = "Tajikistan"
	CountryTanzania   Country = "Tanzania"
	CountryUganda     Country = "Uganda"
	CountryZambia     Country = "Zambia"
)

var countries = []Country{
	CountryBangladesh, CountryCambodia, CountryEthiopia, CountryGhana, CountryGuatemala,
	CountryHaiti, CountryHonduras, CountryKenya, CountryLiberia, CountryMalawi,
	CountryMali, CountryMozambique, CountryNepal, CountryNigeria, CountryRwanda,
	CountrySenegal, CountryTajikistan, CountryTanzania, CountryUganda, CountryZambia,
}

// Countries returns the canonical country list in alphabetical order.
func Countries() []Country {
	out := make([]Country, len(countries))
	copy(out, countries)
	return out
}

// ParseCountry resolves a case-insensitive country name to its canonical form.
func ParseCountry(raw string) (Country, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, c := range countries {
		if strings.EqualFold(string(c), trimmed) {
			return c, true
		}
	}
	return "", false
}

// SurveyRound is the survey wave a report belongs to.
type SurveyRound string

const (
	SurveyBaseline        SurveyRound = "baseline"
	SurveyInterim         SurveyRound = "interim"
	SurveyMidline         SurveyRound = "midline"
	SurveyEndline         SurveyRound = "endline"
	SurveyBaselineMidline SurveyRound = "baseline_midline"
)

func ParseSurveyRound(raw string) (SurveyRound, bool) {
	switch SurveyRound(strings.ToLower(strings.TrimSpace(raw))) {
	case SurveyBaseline:
		return SurveyBaseline, true
	case SurveyInterim:
		return SurveyInterim, true
	case SurveyMidline:
		return SurveyMidline, true
	case SurveyEndline:
		return SurveyEndline, true
	case SurveyBaselineMidline:
		return SurveyBaselineMidline, true
	default:
		return "", false
	}
}

// Phase is the programme phase, 1 to 4. Zero means unknown.
type Phase int

const (
	MinPhase Phase = 1
	MaxPhase Phase = 4
)

func (p Phase) Valid() bool {
	return p >= MinPhase && p <= MaxPhase
}
