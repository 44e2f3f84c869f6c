package tracker

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// platformNames are site names commonly appended to page titles after a
// separator ("Cool Project - GitHub"). They carry no search signal.
var platformNames = []string{
	"youtube",
	"twitter",
	"x",
	"reddit",
	"github",
	"stack overflow",
	"medium",
	"dev.to",
	"linkedin",
	"facebook",
	"instagram",
	"tiktok",
	"amazon",
	"wikipedia",
}

var (
	platformSuffixes = compilePlatformSuffixes()
	notifCountRe     = regexp.MustCompile(`\(\d+\)\s*`)
	punctuationRe    = regexp.MustCompile(`[^\w\s]+`)
	numericRe        = regexp.MustCompile(`^\d+$`)
)

func compilePlatformSuffixes() []*regexp.Regexp {
	res := make([]*regexp.Regexp, 0, len(platformNames))
	for _, name := range platformNames {
		res = append(res, regexp.MustCompile(`(?i)\s*[-–—|]\s*`+regexp.QuoteMeta(name)+`$`))
	}
	return res
}

// stopWords covers function words plus generic media/engagement terms. The
// set deliberately targets non-technical noise so technical terms survive.
var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	"be": {}, "been": {}, "being": {}, "have": {}, "has": {}, "had": {},
	"do": {}, "does": {}, "did": {}, "will": {}, "would": {}, "could": {},
	"should": {}, "may": {}, "might": {}, "must": {}, "shall": {}, "can": {},
	"need": {}, "dare": {}, "and": {}, "or": {}, "but": {}, "if": {},
	"then": {}, "else": {}, "when": {}, "where": {}, "why": {}, "how": {},
	"what": {}, "which": {}, "who": {}, "whom": {}, "this": {}, "that": {},
	"these": {}, "those": {}, "i": {}, "you": {}, "he": {}, "she": {},
	"it": {}, "we": {}, "they": {}, "me": {}, "him": {}, "her": {},
	"us": {}, "them": {}, "my": {}, "your": {}, "his": {}, "its": {},
	"our": {}, "their": {}, "of": {}, "in": {}, "to": {}, "for": {},
	"with": {}, "on": {}, "at": {}, "by": {}, "from": {}, "up": {},
	"about": {}, "into": {}, "over": {}, "after": {}, "beneath": {},
	"under": {}, "above": {}, "video": {}, "watch": {}, "official": {},
	"full": {}, "new": {}, "latest": {}, "best": {}, "top": {}, "free": {},
	"online": {}, "live": {}, "hd": {}, "4k": {}, "2024": {}, "2025": {},
	"2026": {}, "part": {}, "episode": {}, "ep": {}, "vs": {}, "review": {},
	"reaction": {}, "explained": {}, "music": {}, "song": {}, "lyrics": {},
	"ft": {}, "feat": {}, "remix": {}, "cover": {},
}

// fillerPhrases are stripped from search queries before they are used for
// repository search. Case-insensitive substring removal, not tokenized.
var fillerPhrases = []string{
	"how to",
	"how do i",
	"what is",
	"tutorial",
	"guide",
	"in javascript",
	"in typescript",
	"in python",
}

// ExtractKeywords derives a small set of search-worthy terms from a page
// title using rule-based normalization: platform-name suffixes and
// notification-count badges are stripped, punctuation becomes whitespace,
// and short/numeric/stop-word tokens are dropped. The first four surviving
// tokens are joined in original order. Returns "" when the title carries too
// weak a signal to search on.
func ExtractKeywords(title, domain string) string {
	if title == "" {
		return ""
	}

	text := strings.ToLower(title)
	text = transliterate(text)

	for _, re := range platformSuffixes {
		text = re.ReplaceAllString(text, "")
	}
	text = notifCountRe.ReplaceAllString(text, "")
	text = punctuationRe.ReplaceAllString(text, " ")

	var words []string
	for _, word := range strings.Fields(text) {
		if len(word) <= 2 {
			continue
		}
		if numericRe.MatchString(word) {
			continue
		}
		if _, ok := stopWords[word]; ok {
			continue
		}
		words = append(words, word)
	}

	if len(words) < 2 {
		return ""
	}
	if len(words) > 4 {
		words = words[:4]
	}

	keywords := strings.Join(words, " ")
	if len(keywords) < 4 {
		return ""
	}
	return keywords
}

// CleanQuery strips filler phrases from a raw search query so what remains
// is suitable for repository search.
func CleanQuery(raw string) string {
	if raw == "" {
		return ""
	}
	q := strings.ToLower(raw)
	for _, phrase := range fillerPhrases {
		q = strings.ReplaceAll(q, phrase, "")
	}
	return strings.Join(strings.Fields(q), " ")
}

// extractWithAssist asks the text generator for keywords, falling back to the
// rule-based extractor on provider error. A "NONE"/empty/near-empty response
// means the page affirmatively has no technical content, so no keywords are
// returned at all. AI assistance is never on the critical failure path.
func (t *Tracker) extractWithAssist(ctx context.Context, title, domain, pageURL string) string {
	if title == "" {
		return ""
	}

	prompt := fmt.Sprintf(`You are a keyword extraction assistant. Given a web page title, extract the technical search terms a developer would use to find related code repositories.

Return between 2 and 5 keywords, lowercase, separated by single spaces.
If the page has no technical or programming-related content, return exactly: NONE

Page title: %s
Domain: %s
URL: %s

Return ONLY the keywords or NONE. Do not include any explanation or commentary.`,
		title, domain, pageURL)

	response, err := t.gen.Generate(ctx, prompt)
	if err != nil {
		if err != ErrGeneratorUnavailable {
			log.Printf("AI keyword extraction failed for %q, using rule-based extraction: %v", title, err)
		}
		return ExtractKeywords(title, domain)
	}

	response = strings.TrimSpace(response)
	if response == "" || strings.EqualFold(response, "NONE") || len(response) < 3 {
		return ""
	}
	return truncate(response, 100)
}

// optimizeQuery optionally rewrites extracted keywords into a better
// repository-search query. Errors and empty output fall back to the
// unmodified keywords.
func (t *Tracker) optimizeQuery(ctx context.Context, keywords string) string {
	if keywords == "" {
		return ""
	}

	prompt := fmt.Sprintf(`You are a search query assistant. Rewrite the following keywords into an effective GitHub repository search query.

Keep it short: 2 to 6 terms, most specific terms first. Drop anything generic.

Keywords: %s

Return ONLY the query. Do not include any explanation or commentary.`, keywords)

	response, err := t.gen.Generate(ctx, prompt)
	if err != nil {
		if err != ErrGeneratorUnavailable {
			log.Printf("AI query optimization failed for %q, keeping keywords: %v", keywords, err)
		}
		return keywords
	}

	response = strings.TrimSpace(response)
	if response == "" {
		return keywords
	}
	return truncate(response, 100)
}

// transliterate converts unicode characters to ASCII equivalents by
// decomposing and stripping nonspacing marks (accents, diacritics).
func transliterate(s string) string {
	t := transform.Chain(norm.NFD, transform.RemoveFunc(isMn), norm.NFC)
	result, _, err := transform.String(t, s)
	if err != nil {
		return s
	}
	return result
}

// isMn checks if a rune is a nonspacing mark (accents, diacritics)
func isMn(r rune) bool {
	return unicode.Is(unicode.Mn, r)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return strings.TrimSpace(string(runes[:n]))
}
