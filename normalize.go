package tracker

import "net/url"

// trackingParams are advertising/analytics query parameters stripped during
// normalization; they never change what page a URL points at.
var trackingParams = []string{
	"utm_source",
	"utm_medium",
	"utm_campaign",
	"utm_content",
	"utm_term",
	"ref",
	"fbclid",
	"gclid",
}

// NormalizeURL canonicalizes a URL for equality comparison: the fragment and
// known tracking parameters are removed and the URL is reserialized. Two URLs
// differing only by fragment or tracking parameters normalize identically;
// this is the equality basis for deduplication. Unparsable input is returned
// unchanged.
func NormalizeURL(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}

	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		values := u.Query()
		for _, param := range trackingParams {
			values.Del(param)
		}
		u.RawQuery = values.Encode()
	}

	return u.String()
}
