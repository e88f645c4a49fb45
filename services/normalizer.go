package services

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"unicode"

	"png-rentals/models"
)

// maxRawText bounds how much free text is carried on a listing.
const maxRawText = 500

// Monthly conversion factors for each billing-period token.
var periodMultipliers = map[string]float64{
	"day": 30, "daily": 30,
	"week": 4.333, "weekly": 4.333, "wk": 4.333, "w": 4.333,
	"fortnight": 2.1665, "fn": 2.1665,
	"month": 1, "monthly": 1, "mo": 1, "mth": 1, "m": 1,
	"year": 1.0 / 12, "yearly": 1.0 / 12, "annual": 1.0 / 12, "pa": 1.0 / 12, "p.a": 1.0 / 12,
}

// priceRegexp matches an amount with optional kina markers and an optional
// billing period. Text is pre-normalised (lowercased, commas stripped,
// pgk/kina folded to "k") before matching.
var priceRegexp = regexp.MustCompile(
	`(?:k\s*)?(\d+(?:\.\d+)?)\s*k?\s*` +
		`(?:(?:per|a|p|/|-)?\s*` +
		`(daily|day|weekly|week|wk|w|fortnight|fn|monthly|month|mth|mo|m|yearly|year|annual|p\.a|pa)\b)?`)

// Amounts outside this range are treated as noise (phone numbers, years,
// lot sizes) rather than rents.
const (
	minPlausiblePrice = 50
	maxPlausiblePrice = 600_000
)

// Below this amount a period-less price is assumed weekly; above, monthly.
const weeklyHeuristicCeiling = 2000

// suburbAlias maps a lowercase alias to its canonical suburb name. The list
// is ordered: the first alias that matches on a word boundary wins.
type suburbAlias struct {
	alias     string
	canonical string
	re        *regexp.Regexp
}

func mkAlias(alias, canonical string) suburbAlias {
	return suburbAlias{
		alias:     alias,
		canonical: canonical,
		re:        regexp.MustCompile(`\b` + regexp.QuoteMeta(alias) + `\b`),
	}
}

var suburbAliases = []suburbAlias{
	mkAlias("waigani", "Waigani"),
	mkAlias("boroko", "Boroko"),
	mkAlias("gerehu", "Gerehu"),
	mkAlias("gordons", "Gordons"),
	mkAlias("koki", "Koki"),
	mkAlias("hohola", "Hohola"),
	mkAlias("tokarara", "Tokarara"),
	mkAlias("tokerara", "Tokarara"), // common typo
	mkAlias("six-mile", "Six Mile"),
	mkAlias("six mile", "Six Mile"),
	mkAlias("6 mile", "Six Mile"),
	mkAlias("nine mile", "Nine Mile"),
	mkAlias("9 mile", "Nine Mile"),
	mkAlias("8 mile", "Eight Mile"),
	mkAlias("eight mile", "Eight Mile"),
	mkAlias("erima", "Erima"),
	mkAlias("morata", "Morata"),
	mkAlias("badili", "Badili"),
	mkAlias("lawes road", "Lawes Road"),
	mkAlias("port moresby", "Port Moresby"),
	mkAlias("pom", "Port Moresby"),
	mkAlias("ncd", "Port Moresby"), // National Capital District
	mkAlias("lae", "Lae"),
	mkAlias("madang", "Madang"),
	mkAlias("mt hagen", "Mt Hagen"),
	mkAlias("mount hagen", "Mt Hagen"),
	mkAlias("kokopo", "Kokopo"),
	mkAlias("alotau", "Alotau"),
	mkAlias("wewak", "Wewak"),
}

// typeRule pairs a keyword pattern with a property-type label. Rules are
// evaluated in order because terms like "unit" and "room" co-occur; the
// first match wins.
type typeRule struct {
	re    *regexp.Regexp
	label string
}

var typeRules = []typeRule{
	{regexp.MustCompile(`\b(house|home|bungalow|dwelling)\b`), "House"},
	{regexp.MustCompile(`\b(flat|apartment|apt|unit)\b`), "Apartment"},
	{regexp.MustCompile(`\bstudio\b`), "Studio"},
	{regexp.MustCompile(`\b(townhouse|town\s*house|villa)\b`), "Townhouse"},
	{regexp.MustCompile(`\b(room|bedsit|single room)\b`), "Room"},
	{regexp.MustCompile(`\b(land|block|plot|allotment)\b`), "Land"},
	{regexp.MustCompile(`\b(commercial|office|shop|warehouse)\b`), "Commercial"},
	{regexp.MustCompile(`\b(compound|complex)\b`), "Compound"},
}

var bedroomRegexps = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(\d+)\s*(?:bed(?:room)?s?|br\b|bdrm)`),
	regexp.MustCompile(`(?i)(\d+)\s*b/r`),
	regexp.MustCompile(`(?i)(?:bed(?:room)?s?|br|bdrm)\s*[:\-]?\s*(\d+)`),
}

// PNG phone shapes: +675 prefixed, bare 675, 7xxx xxxx mobiles, 3xx xxxx
// landlines.
var phoneRegexps = []*regexp.Regexp{
	regexp.MustCompile(`\+675[\s\-]?\d{3,4}[\s\-]?\d{3,4}`),
	regexp.MustCompile(`\b675[\s\-]?\d{3,4}[\s\-]?\d{3,4}\b`),
	regexp.MustCompile(`\b7\d{3}[\s\-]?\d{4}\b`),
	regexp.MustCompile(`\b3\d{2}[\s\-]?\d{4}\b`),
}

var emailRegexp = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)

var middlemanKeywords = []string{
	"agent", "real estate agent", "commission", "finder", "finder's fee",
	"i can help", "i can arrange", "contact me for details", "middleman",
	"broker", "property manager", "pm me", "message me for info",
}

// Signals is the full set of typed fields extracted from raw listing text.
// Every field degrades to its zero value rather than failing.
type Signals struct {
	PriceMonthly    *int
	PriceRawMatch   string
	PriceConfidence string
	Location        string
	Suburb          string
	PropertyType    string
	Bedrooms        *int
	Contacts        models.ContactInfo
	IsMiddleman     bool
	MiddlemanFlags  []string
}

// Normalize extracts every signal from the given raw texts. It is a pure
// function: same inputs always yield the same signals, and it never fails.
// The price is parsed from rawPrice first, falling back to the free text;
// location-dependent signals use the combined text.
func Normalize(rawText, rawPrice, rawLocation string) Signals {
	combined := rawText + " " + rawLocation

	price, rawMatch, conf := ParsePrice(rawPrice)
	if price == nil {
		price, rawMatch, conf = ParsePrice(combined)
	}

	suburb := DetectSuburb(combined)
	flagged, flags := DetectMiddleman(combined)

	return Signals{
		PriceMonthly:    price,
		PriceRawMatch:   rawMatch,
		PriceConfidence: conf,
		Location:        locationPhrase(combined, suburb),
		Suburb:          suburb,
		PropertyType:    ClassifyType(combined),
		Bedrooms:        ExtractBedrooms(combined),
		Contacts:        ExtractContacts(combined),
		IsMiddleman:     flagged,
		MiddlemanFlags:  flags,
	}
}

// ParsePrice scans text for a rent amount and converts it to a monthly
// figure. Confidence is "high" when an explicit billing period was found,
// "medium" when the period was inferred from the amount's magnitude, and
// "low" when no valid numeric token exists (nil price).
//
// When the text holds several candidates, a match carrying an explicit
// period beats one that does not, even if it appears later; otherwise the
// first valid match by scan order wins.
func ParsePrice(text string) (*int, string, string) {
	t := strings.ToLower(text)
	t = strings.ReplaceAll(t, ",", "")
	t = strings.ReplaceAll(t, "png kina", "k")
	t = strings.ReplaceAll(t, "pgk", "k")
	t = strings.ReplaceAll(t, "kina", "k")

	var (
		best     *int
		bestRaw  string
		bestConf = models.PriceConfidenceLow
	)

	for _, m := range priceRegexp.FindAllStringSubmatch(t, -1) {
		amount, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			continue
		}
		if amount < minPlausiblePrice || amount > maxPlausiblePrice {
			continue
		}

		period := m[2]
		var monthly float64
		var conf string
		switch {
		case period != "":
			monthly = amount * periodMultipliers[period]
			conf = models.PriceConfidenceHigh
		case amount <= weeklyHeuristicCeiling:
			monthly = amount * periodMultipliers["week"]
			conf = models.PriceConfidenceMedium
		default:
			monthly = amount
			conf = models.PriceConfidenceMedium
		}

		if best == nil || (period != "" && bestConf != models.PriceConfidenceHigh) {
			v := int(math.Round(monthly))
			best = &v
			bestRaw = strings.TrimSpace(m[0])
			bestConf = conf
		}
	}

	return best, bestRaw, bestConf
}

// DetectSuburb returns the canonical suburb name for the first alias found
// on a word boundary, or "" when none matches.
func DetectSuburb(text string) string {
	t := strings.ToLower(text)
	for _, a := range suburbAliases {
		if a.re.MatchString(t) {
			return a.canonical
		}
	}
	return ""
}

// locationPhrase extracts a short location phrase around the detected
// suburb ("in boroko, east side"), or falls back to the canonical name.
func locationPhrase(text, suburb string) string {
	if suburb == "" {
		return ""
	}
	t := strings.ToLower(text)
	for _, a := range suburbAliases {
		if a.canonical != suburb {
			continue
		}
		re := regexp.MustCompile(
			`(?:in|at|located|location[:\s]+)?\s*` +
				regexp.QuoteMeta(a.alias) +
				`(?:\s*,\s*[a-z ]+)?`)
		if m := re.FindString(t); m != "" {
			return strings.TrimSpace(m)
		}
	}
	return suburb
}

// ClassifyType returns the property-type label of the first matching rule,
// or "" when nothing matches.
func ClassifyType(text string) string {
	t := strings.ToLower(text)
	for _, rule := range typeRules {
		if rule.re.MatchString(t) {
			return rule.label
		}
	}
	return ""
}

// ExtractBedrooms finds the first bedroom count in the text. Counts outside
// [1,20] are rejected as noise.
func ExtractBedrooms(text string) *int {
	for _, re := range bedroomRegexps {
		m := re.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n >= 1 && n <= 20 {
			return &n
		}
		return nil
	}
	return nil
}

// ExtractContacts pulls phone-like and email-like tokens from the text,
// removing duplicates while preserving first-seen order. Phones are deduped
// on their digits, so "+675 7123 4567" and "71234567" count as one number
// and the first-seen spelling wins.
func ExtractContacts(text string) models.ContactInfo {
	var phones []string
	for _, re := range phoneRegexps {
		phones = append(phones, re.FindAllString(text, -1)...)
	}
	for i := range phones {
		phones[i] = strings.TrimSpace(phones[i])
	}

	seen := make(map[string]bool)
	deduped := phones[:0]
	for _, p := range phones {
		key := phoneKey(p)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		deduped = append(deduped, p)
	}

	return models.ContactInfo{
		Phones: deduped,
		Emails: dedupeOrdered(emailRegexp.FindAllString(text, -1)),
	}
}

// phoneKey reduces a phone match to its bare digits, dropping the 675
// country code when a subscriber number follows it.
func phoneKey(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if len(digits) > 8 && strings.HasPrefix(digits, "675") {
		digits = digits[3:]
	}
	return digits
}

// DetectMiddleman reports whether the text contains middleman indicator
// keywords, along with the matched keywords.
func DetectMiddleman(text string) (bool, []string) {
	t := strings.ToLower(text)
	var flags []string
	for _, kw := range middlemanKeywords {
		if strings.Contains(t, kw) {
			flags = append(flags, kw)
		}
	}
	return len(flags) > 0, flags
}

// BuildListing turns one raw collector record into a canonical Listing by
// running the normalizer over its text fields. The market score is attached
// separately by the scorer.
func BuildListing(rec *models.RawRecord) *models.Listing {
	combined := rec.Title + " " + rec.RawText + " " + rec.RawLocation
	sig := Normalize(combined, rec.RawPrice, rec.RawLocation)

	location := strings.TrimSpace(rec.RawLocation)
	if location == "" {
		location = sig.Location
	}

	rawText := rec.RawText
	if len(rawText) > maxRawText {
		rawText = rawText[:maxRawText]
	}

	return &models.Listing{
		ID:              models.ListingID(rec.URL, rec.RawPrice),
		SourceSite:      rec.SourceSite,
		Title:           CollapseWhitespace(rec.Title),
		PriceRaw:        strings.TrimSpace(rec.RawPrice),
		PriceMonthly:    sig.PriceMonthly,
		PriceConfidence: sig.PriceConfidence,
		Location:        location,
		Suburb:          sig.Suburb,
		PropertyType:    sig.PropertyType,
		Bedrooms:        sig.Bedrooms,
		Contacts:        sig.Contacts,
		IsMiddleman:     sig.IsMiddleman,
		MiddlemanFlags:  sig.MiddlemanFlags,
		URL:             rec.URL,
		IsVerified:      rec.IsVerified,
		ScrapedAt:       rec.ScrapedAt,
		RawText:         rawText,
	}
}

// CollapseWhitespace strips leading/trailing whitespace and collapses
// internal runs to single spaces.
func CollapseWhitespace(s string) string {
	fields := strings.FieldsFunc(strings.TrimSpace(s), func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

func dedupeOrdered(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
