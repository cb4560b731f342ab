package scan

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/skrblai/percy/internal/domain"
	"github.com/skrblai/percy/internal/logging"
)

var (
	titleRe    = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
	metaDescRe = regexp.MustCompile(`(?is)<meta[^>]+name=["']description["'][^>]+content=["']([^"']*)["']`)
	tagRe      = regexp.MustCompile(`(?s)<[^>]*>`)
)

// industryKeywords maps content keywords to an industry label. First match
// in iteration order wins, so more specific terms come earlier.
var industryKeywords = []struct {
	industry string
	terms    []string
}{
	{"ecommerce", []string{"add to cart", "checkout", "free shipping", "shop now", "store"}},
	{"saas", []string{"free trial", "pricing plan", "api", "dashboard", "integration"}},
	{"agency", []string{"our clients", "case studies", "portfolio", "agency"}},
	{"publishing", []string{"author", "book", "publish", "manuscript"}},
	{"fitness", []string{"workout", "fitness", "training program", "coaching"}},
	{"hospitality", []string{"menu", "reservation", "book a table", "rooms"}},
	{"consulting", []string{"consulting", "advisory", "schedule a call"}},
}

// HeuristicScanner fetches the target page and runs keyword heuristics over
// the HTML. It satisfies Scanner.
type HeuristicScanner struct {
	client  *http.Client
	maxBody int64
	log     *logging.Logger
}

// NewHeuristicScanner creates a scanner with a bounded fetch timeout. The
// timeout should stay in single-digit seconds so a slow site cannot hang the
// conversation.
func NewHeuristicScanner(timeout time.Duration, maxBody int64, log *logging.Logger) *HeuristicScanner {
	if maxBody <= 0 {
		maxBody = 1 << 20
	}
	return &HeuristicScanner{
		client:  &http.Client{Timeout: timeout},
		maxBody: maxBody,
		log:     log.Sub("scan"),
	}
}

// Scan classifies the URL and dispatches the matching heuristic branch.
func (s *HeuristicScanner) Scan(ctx context.Context, rawURL, identity string) (*Result, error) {
	contentType, u, err := Classify(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid scan url: %w", err)
	}

	var analysis Analysis
	switch contentType {
	case ContentProfile:
		analysis = s.analyzeProfile(u)
	case ContentVideo:
		analysis = s.analyzeVideo(u)
	default:
		analysis, err = s.analyzeWebsite(ctx, u)
		if err != nil {
			return nil, err
		}
	}

	result := &Result{
		ContentType:     contentType,
		Analysis:        analysis,
		Recommendations: recommendFor(analysis, contentType),
		ScanID:          uuid.New().String(),
		Timestamp:       time.Now(),
	}

	s.log.Info().
		Str("identity", identity).
		Str("contentType", string(contentType)).
		Str("industry", analysis.Industry).
		Int("recommendations", len(result.Recommendations)).
		Msg("scan complete")

	return result, nil
}

// analyzeWebsite fetches the page and extracts title, description, and
// keyword-driven structure.
func (s *HeuristicScanner) analyzeWebsite(ctx context.Context, u *url.URL) (Analysis, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return Analysis{}, fmt.Errorf("building scan request: %w", err)
	}
	req.Header.Set("User-Agent", "PercyScan/1.0")
	req.Header.Set("Accept", "text/html")

	resp, err := s.client.Do(req)
	if err != nil {
		return Analysis{}, fmt.Errorf("fetching %s: %w", u.Host, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return Analysis{}, fmt.Errorf("fetching %s: status %d", u.Host, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBody))
	if err != nil {
		return Analysis{}, fmt.Errorf("reading %s: %w", u.Host, err)
	}

	html := string(body)
	lower := strings.ToLower(html)

	a := Analysis{
		Title:       extractFirst(titleRe, html),
		Description: extractFirst(metaDescRe, html),
	}
	if a.Title == "" {
		a.Title = u.Host
	}

	for _, group := range industryKeywords {
		for _, term := range group.terms {
			if strings.Contains(lower, term) {
				a.Industry = group.industry
				break
			}
		}
		if a.Industry != "" {
			break
		}
	}
	if a.Industry == "" {
		a.Industry = "general"
	}

	switch a.Industry {
	case "ecommerce":
		a.BusinessType = "online store"
	case "saas":
		a.BusinessType = "software product"
	case "agency", "consulting":
		a.BusinessType = "services business"
	default:
		a.BusinessType = "website"
	}

	type featureCheck struct {
		term    string
		feature string
		missing string // challenge when absent; empty means no challenge
	}
	checks := []featureCheck{
		{"blog", "publishes content", "no content engine driving organic traffic"},
		{"newsletter", "captures email signups", "no email capture on the page"},
		{"testimonial", "shows social proof", "no visible social proof"},
		{"contact", "has a contact path", ""},
	}
	for _, c := range checks {
		if strings.Contains(lower, c.term) {
			a.KeyFeatures = append(a.KeyFeatures, c.feature)
		} else if c.missing != "" {
			a.Challenges = append(a.Challenges, c.missing)
		}
	}

	if a.Description == "" {
		a.Challenges = append(a.Challenges, "missing meta description hurts search visibility")
		a.QuickWins = append(a.QuickWins, "add a meta description to the homepage")
	}
	if !strings.Contains(lower, "newsletter") {
		a.Opportunities = append(a.Opportunities, "start an email list from existing traffic")
	}
	if !strings.Contains(lower, "blog") {
		a.Opportunities = append(a.Opportunities, "publish content targeting buyer keywords")
		a.QuickWins = append(a.QuickWins, "publish one cornerstone article this week")
	}
	if len(a.Opportunities) == 0 {
		a.Opportunities = append(a.Opportunities, "scale what already works with automation")
	}

	return a, nil
}

// analyzeProfile handles professional-network links without fetching; the
// networks block scrapers, so the branch works from the URL shape alone.
func (s *HeuristicScanner) analyzeProfile(u *url.URL) Analysis {
	name := strings.Trim(strings.TrimPrefix(u.Path, "/in/"), "/")
	name = strings.ReplaceAll(name, "-", " ")

	return Analysis{
		Title:        strings.TrimSpace("Professional profile " + name),
		Industry:     "personal-brand",
		BusinessType: "professional profile",
		KeyFeatures:  []string{"established professional presence"},
		Challenges:   []string{"profile reach is limited without owned content"},
		Opportunities: []string{
			"turn profile expertise into published content",
			"build a personal site that converts profile visitors",
		},
		QuickWins: []string{"repost one insight per week as an article"},
	}
}

// analyzeVideo handles video-platform links from the URL shape alone.
func (s *HeuristicScanner) analyzeVideo(u *url.URL) Analysis {
	return Analysis{
		Title:        "Video channel on " + strings.TrimPrefix(u.Hostname(), "www."),
		Industry:     "creator",
		BusinessType: "video creator",
		KeyFeatures:  []string{"existing video audience"},
		Challenges:   []string{"audience lives on a rented platform"},
		Opportunities: []string{
			"repurpose video content into posts and email",
			"route viewers to an owned destination",
		},
		QuickWins: []string{"add a link-in-bio destination to every video"},
	}
}

// recommendFor ranks 1-4 agents for the analysis.
func recommendFor(a Analysis, contentType ContentType) []domain.AgentRecommendation {
	type pick struct {
		agentID    string
		reason     string
		confidence int
	}
	var picks []pick

	switch contentType {
	case ContentProfile:
		picks = []pick{
			{"branding", "a sharper personal brand multiplies profile reach", 85},
			{"content-creator", "published articles convert profile visitors", 80},
			{"sitegen", "an owned site captures the audience you build", 70},
		}
	case ContentVideo:
		picks = []pick{
			{"social", "cross-posting grows the channel beyond one platform", 85},
			{"content-creator", "repurposing videos into articles compounds reach", 80},
			{"adcreative", "promote top-performing videos as ads", 65},
		}
	default:
		switch a.Industry {
		case "ecommerce":
			picks = []pick{
				{"adcreative", "paid creatives drive store traffic fastest", 88},
				{"sitegen", "conversion tuning lifts revenue on existing traffic", 80},
				{"social", "product content keeps the brand in feeds", 70},
			}
		case "saas":
			picks = []pick{
				{"content-creator", "search content compounds for product keywords", 85},
				{"analytics", "funnel analysis shows where signups drop", 80},
				{"biz", "positioning and automation sharpen the pitch", 70},
			}
		case "publishing":
			picks = []pick{
				{"publishing", "end-to-end help from manuscript to launch", 90},
				{"branding", "author brand sells the next book", 75},
			}
		default:
			picks = []pick{
				{"branding", "a cohesive brand lifts everything downstream", 75},
				{"content-creator", "content is the cheapest growth channel here", 72},
				{"social", "consistent social presence builds trust", 68},
			}
		}
	}

	var out []domain.AgentRecommendation
	for _, p := range picks {
		profile := domain.AgentByID(p.agentID)
		if profile == nil {
			continue
		}
		out = append(out, domain.AgentRecommendation{
			AgentID:      profile.ID,
			DisplayName:  profile.Name,
			Tagline:      profile.Tagline,
			Reason:       p.reason,
			Confidence:   p.confidence,
			Capabilities: profile.Capabilities,
		})
		if len(out) == 4 {
			break
		}
	}
	return out
}

func extractFirst(re *regexp.Regexp, html string) string {
	m := re.FindStringSubmatch(html)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(tagRe.ReplaceAllString(m[1], ""))
}
