package scan

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skrblai/percy/internal/logging"
)

func newTestScanner() *HeuristicScanner {
	return NewHeuristicScanner(2*time.Second, 1<<20, logging.New(nil, "silent"))
}

func serveHTML(t *testing.T, html string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(html))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestScan_WebsiteExtractsTitleAndIndustry(t *testing.T) {
	srv := serveHTML(t, `<html><head>
		<title>Iron Temple Gym</title>
		<meta name="description" content="Strength training programs and coaching">
		</head><body>Our workout plans and training program options.</body></html>`)

	result, err := newTestScanner().Scan(context.Background(), srv.URL, "visitor-1")
	require.NoError(t, err)

	assert.Equal(t, ContentWebsite, result.ContentType)
	assert.Equal(t, "Iron Temple Gym", result.Analysis.Title)
	assert.Equal(t, "Strength training programs and coaching", result.Analysis.Description)
	assert.Equal(t, "fitness", result.Analysis.Industry)
	assert.NotEmpty(t, result.ScanID)
	assert.NotEmpty(t, result.Recommendations)
}

func TestScan_EcommerceKeywordsRankAdCreative(t *testing.T) {
	srv := serveHTML(t, `<html><head><title>Candle Shop</title></head>
		<body>Add to cart and enjoy free shipping on all orders.</body></html>`)

	result, err := newTestScanner().Scan(context.Background(), srv.URL, "visitor-1")
	require.NoError(t, err)

	assert.Equal(t, "ecommerce", result.Analysis.Industry)
	assert.Equal(t, "online store", result.Analysis.BusinessType)
	require.NotEmpty(t, result.Recommendations)
	assert.Equal(t, "adcreative", result.Recommendations[0].AgentID)
}

func TestScan_MissingSignalsBecomeChallenges(t *testing.T) {
	srv := serveHTML(t, `<html><head><title>Bare Page</title></head><body>hello</body></html>`)

	result, err := newTestScanner().Scan(context.Background(), srv.URL, "visitor-1")
	require.NoError(t, err)

	a := result.Analysis
	assert.Equal(t, "general", a.Industry)
	assert.Contains(t, a.Challenges, "no content engine driving organic traffic")
	assert.Contains(t, a.Challenges, "missing meta description hurts search visibility")
	assert.NotEmpty(t, a.Opportunities)
	assert.NotEmpty(t, a.QuickWins)
}

func TestScan_ServerErrorFailsFast(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)

	_, err := newTestScanner().Scan(context.Background(), srv.URL, "visitor-1")
	assert.Error(t, err)
}

func TestScan_InvalidURLRejected(t *testing.T) {
	_, err := newTestScanner().Scan(context.Background(), "not a url", "visitor-1")
	assert.Error(t, err)
}

func TestScan_ProfileSkipsFetch(t *testing.T) {
	// No server behind this URL; the profile branch never fetches.
	result, err := newTestScanner().Scan(context.Background(), "https://linkedin.com/in/jane-doe", "visitor-1")
	require.NoError(t, err)

	assert.Equal(t, ContentProfile, result.ContentType)
	assert.Equal(t, "personal-brand", result.Analysis.Industry)
	assert.Contains(t, result.Analysis.Title, "jane doe")

	require.NotEmpty(t, result.Recommendations)
	assert.Equal(t, "branding", result.Recommendations[0].AgentID)
}

func TestScan_VideoSkipsFetch(t *testing.T) {
	result, err := newTestScanner().Scan(context.Background(), "https://youtu.be/abc123", "visitor-1")
	require.NoError(t, err)

	assert.Equal(t, ContentVideo, result.ContentType)
	assert.Equal(t, "creator", result.Analysis.Industry)
	require.NotEmpty(t, result.Recommendations)
	assert.Equal(t, "social", result.Recommendations[0].AgentID)
}

func TestScan_BodyCapRespected(t *testing.T) {
	big := make([]byte, 1<<16)
	for i := range big {
		big[i] = 'x'
	}
	srv := serveHTML(t, "<html><head><title>Huge</title></head><body>"+string(big)+"</body></html>")

	s := NewHeuristicScanner(2*time.Second, 128, logging.New(nil, "silent"))
	result, err := s.Scan(context.Background(), srv.URL, "visitor-1")
	require.NoError(t, err)

	// Only the first 128 bytes are read, which still covers the title.
	assert.Equal(t, "Huge", result.Analysis.Title)
}

func TestRateLimitError_Message(t *testing.T) {
	err := &RateLimitError{Reason: "daily_limit_reached", Remaining: 0, UpgradePrompt: "Upgrade now"}
	assert.Contains(t, err.Error(), "daily_limit_reached")
}
