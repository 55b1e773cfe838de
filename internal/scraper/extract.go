package scraper

import (
	"io"
	"regexp"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"

	"github.com/apimarket/marketplace/internal/model"
)

const (
	maxExamples     = 10
	maxRequirements = 6
	siblingWindow   = 5

	// NoOverview is used when a page parses but yields no usable overview.
	NoOverview = "No overview found. Please visit the official documentation for details."
)

var (
	overviewSelectors = []string{".description", ".overview", ".intro", ".lead", "p", ".content p"}
	metaSelectors     = []string{`meta[name="description"]`, `meta[property="og:description"]`}

	codeSelectors = []string{
		"pre code", "pre", "code", ".highlight pre", ".code-block",
		".example", ".usage-example", ".code-example", ".api-example",
	}

	sectionKeywords = []string{
		"requirement", "feature", "getting started", "prerequisite",
		"installation", "quick start", "authentication", "api key",
		"usage", "example", "endpoint", "method", "rate limit",
		"password", "breach", "security", "hash", "range",
	}

	restKeywords = []string{"rest api", "restful", "http api", "api endpoint", "get request", "post request"}

	apiPattern   = regexp.MustCompile(`(?i)(GET|POST|PUT|DELETE|PATCH|curl|fetch|axios|http|api|endpoint|request|response|json|xml|range|hash|sha1|pwned)`)
	errorPattern = regexp.MustCompile(`(?i)(access denied|missing|invalid|improperly formed|error|unauthorized|forbidden)`)
	httpMethod   = regexp.MustCompile(`\b(GET|POST|PUT|DELETE|PATCH)\b`)
	whitespace   = regexp.MustCompile(`\s+`)
)

// Canned entries for the Have I Been Pwned documentation, which renders most
// of its examples client-side.
var (
	pwnedExamples = []string{
		"GET https://api.pwnedpasswords.com/range/{first 5 hash chars}",
		`curl -H "hibp-api-key: your-api-key" https://haveibeenpwned.com/api/v3/breachedaccount/test@example.com`,
		"GET https://haveibeenpwned.com/api/v3/breachedaccount/{account}",
		"GET https://haveibeenpwned.com/api/v3/breach/{breachName}",
		"GET https://haveibeenpwned.com/api/v3/breaches",
		"GET https://api.pwnedpasswords.com/range/21BD1",
		"curl https://api.pwnedpasswords.com/range/21BD1",
		"GET https://haveibeenpwned.com/api/v3/breachedaccount/test@example.com",
	}
	pwnedRequirements = []string{
		"Password range API uses first 5 characters of SHA-1 hash",
		"Rate limited to 1 request per 1.5 seconds",
		"No API key needed for password range checking",
		"Supports k-anonymity for password security",
		"Returns breach count for compromised passwords",
	}
)

// Extract parses an HTML document and builds a scrape result. pageURL only
// selects site-specific enrichment; it is never fetched.
func Extract(pageURL string, body io.Reader) (*model.ScrapeResult, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, err
	}

	doc.Find("script, style, nav, footer, header").Remove()

	pwned := isPwnedSite(pageURL)

	examples := extractExamples(doc)
	if pwned {
		examples = appendUnique(examples, pwnedExamples...)
	}
	if len(examples) == 0 {
		examples = extractAnyCode(doc)
	}

	requirements := extractRequirements(doc)
	if pwned {
		requirements = appendUnique(requirements, pwnedRequirements...)
	}

	overview := collapse(extractOverview(doc))
	if overview == "" {
		overview = NoOverview
	}

	return &model.ScrapeResult{
		Overview:     overview,
		Examples:     collapseAll(capped(examples, maxExamples)),
		Requirements: collapseAll(capped(requirements, maxRequirements)),
		IsRestAPI:    detectREST(doc),
	}, nil
}

func extractOverview(doc *goquery.Document) string {
	for _, sel := range metaSelectors {
		if content, ok := doc.Find(sel).Attr("content"); ok {
			if content = strings.TrimSpace(content); content != "" {
				return content
			}
		}
	}

	for _, sel := range overviewSelectors {
		text := strings.TrimSpace(doc.Find(sel).First().Text())
		if within(text, 50, 500) {
			return text
		}
	}

	var overview string
	doc.Find("p").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		text := strings.TrimSpace(s.Text())
		if within(text, 50, 500) {
			overview = text
			return false
		}
		return true
	})
	return overview
}

func extractExamples(doc *goquery.Document) []string {
	var examples []string
	for _, sel := range codeSelectors {
		doc.Find(sel).Each(func(_ int, s *goquery.Selection) {
			text := strings.TrimSpace(s.Text())
			if !within(text, 20, 2000) {
				return
			}
			if apiPattern.MatchString(text) && !errorPattern.MatchString(text) {
				examples = appendUnique(examples, text)
			}
		})
	}
	return examples
}

func extractAnyCode(doc *goquery.Document) []string {
	var examples []string
	doc.Find("pre code, pre, code").Each(func(_ int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if within(text, 20, 2000) {
			examples = appendUnique(examples, text)
		}
	})
	return examples
}

func extractRequirements(doc *goquery.Document) []string {
	var reqs []string
	doc.Find("h1, h2, h3, h4, h5").Each(func(_ int, heading *goquery.Selection) {
		if !containsAny(strings.ToLower(heading.Text()), sectionKeywords) {
			return
		}

		heading.NextAll().EachWithBreak(func(i int, next *goquery.Selection) bool {
			if i >= siblingWindow {
				return false
			}
			switch {
			case next.Is("ul"), next.Is("ol"):
				next.Find("li").Each(func(_ int, li *goquery.Selection) {
					text := strings.TrimSpace(li.Text())
					if within(text, 10, 200) {
						reqs = appendUnique(reqs, text)
					}
				})
			case next.Is("p"):
				text := strings.TrimSpace(next.Text())
				if within(text, 20, 300) {
					reqs = appendUnique(reqs, text)
				}
			}
			return true
		})
	})
	return reqs
}

func detectREST(doc *goquery.Document) bool {
	rawBody := doc.Find("body").Text()
	body := strings.ToLower(rawBody)
	title := strings.ToLower(doc.Find("title").Text())
	h1 := strings.ToLower(doc.Find("h1").Text())

	for _, kw := range restKeywords {
		if strings.Contains(body, kw) || strings.Contains(title, kw) || strings.Contains(h1, kw) {
			return true
		}
	}
	return httpMethod.MatchString(rawBody)
}

func isPwnedSite(pageURL string) bool {
	return strings.Contains(pageURL, "haveibeenpwned") || strings.Contains(pageURL, "pwned")
}

// within reports whether text length lies strictly between lo and hi.
func within(text string, lo, hi int) bool {
	n := utf8.RuneCountInString(text)
	return n > lo && n < hi
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func appendUnique(list []string, items ...string) []string {
	for _, item := range items {
		if !slices.Contains(list, item) {
			list = append(list, item)
		}
	}
	return list
}

func capped(list []string, n int) []string {
	if len(list) > n {
		return list[:n]
	}
	return list
}

func collapse(s string) string {
	return strings.TrimSpace(whitespace.ReplaceAllString(s, " "))
}

func collapseAll(list []string) []string {
	out := make([]string, 0, len(list))
	for _, s := range list {
		out = append(out, collapse(s))
	}
	return out
}
