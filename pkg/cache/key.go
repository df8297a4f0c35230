package cache

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/affiliatekit/smartsearch/pkg/marketplace"
)

// SearchKey generates a deterministic cache key for a search request.
// The request is normalized first, keywords are lower-cased with inner
// whitespace collapsed, fields appear in a fixed order, and absent optional
// fields render as "-". Equivalent requests therefore always map to the
// same key regardless of spelling or field spacing.
//
// Example:
//
//	kw=phone case:page=1:size=20:min=1.5:max=-:sort=-
func SearchKey(req marketplace.SearchRequest) string {
	req = req.Normalize()

	keywords := strings.ToLower(req.Keywords)

	sort := req.Sort
	if sort == "" {
		sort = "-"
	}

	parts := []string{
		"kw=" + keywords,
		fmt.Sprintf("page=%d", req.PageNo),
		fmt.Sprintf("size=%d", req.PageSize),
		"min=" + formatPriceBound(req.MinSalePrice),
		"max=" + formatPriceBound(req.MaxSalePrice),
		"sort=" + sort,
	}
	return strings.Join(parts, ":")
}

func formatPriceBound(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

// NormalizeLinkURL canonicalizes a destination URL for use as a link cache
// key. Scheme and host are lower-cased, the fragment is dropped, query
// parameters are sorted, and a trailing slash is stripped from non-root
// paths. Input that does not parse as an absolute URL is returned trimmed,
// so callers still get a usable (if weaker) key.
func NormalizeLinkURL(raw string) string {
	raw = strings.TrimSpace(raw)

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""

	if u.RawQuery != "" {
		// url.Values.Encode sorts by key.
		u.RawQuery = u.Query().Encode()
	}

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimRight(u.Path, "/")
		if u.Path == "" {
			u.Path = "/"
		}
		u.RawPath = ""
	}

	return u.String()
}
