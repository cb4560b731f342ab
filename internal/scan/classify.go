package scan

import (
	"net/url"
	"strings"
)

// professional-network and video-platform hosts the classifier recognizes.
var (
	profileHosts = []string{"linkedin.com", "xing.com"}
	videoHosts   = []string{"youtube.com", "youtu.be", "vimeo.com", "tiktok.com"}
)

// Classify parses the URL and assigns it a content type. The error is
// non-nil only when the URL is not a well-formed absolute http(s) URL.
func Classify(rawURL string) (ContentType, *url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", nil, &url.Error{Op: "classify", URL: rawURL, Err: url.InvalidHostError("unsupported scheme")}
	}
	if u.Host == "" {
		return "", nil, &url.Error{Op: "classify", URL: rawURL, Err: url.InvalidHostError("missing host")}
	}

	host := strings.ToLower(strings.TrimPrefix(u.Hostname(), "www."))
	for _, h := range profileHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return ContentProfile, u, nil
		}
	}
	for _, h := range videoHosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return ContentVideo, u, nil
		}
	}
	return ContentWebsite, u, nil
}

// IsLikelyURL reports whether free-form text pasted into the conversation
// should be treated as a scannable URL.
func IsLikelyURL(text string) bool {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "http://") && !strings.HasPrefix(text, "https://") {
		return false
	}
	if strings.ContainsAny(text, " \t\n") {
		return false
	}
	_, _, err := Classify(text)
	return err == nil
}
