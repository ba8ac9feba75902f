package provider

import (
	"net/url"
	"regexp"
	"strings"

	"dyfetch/internal/media"
)

// Route is the resolution path for a share URL.
type Route int

const (
	// RoutePCDirect URLs already carry the content identifier.
	RoutePCDirect Route = iota + 1
	// RouteAppRedirect URLs are short links that redirect to the identifier.
	RouteAppRedirect
)

func (r Route) String() string {
	switch r {
	case RoutePCDirect:
		return "pc-direct"
	case RouteAppRedirect:
		return "app-redirect"
	default:
		return "unknown"
	}
}

// Classify picks the route for rawURL from its host alone. It never performs I/O.
func Classify(rawURL string) (Route, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return 0, media.Wrap(media.KindInvalidURL, err, "invalid share URL")
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return 0, media.Errorf(media.KindInvalidURL, "share URL %q has no host", rawURL)
	}

	switch host {
	case hostShareDirect, hostWebDirect:
		return RoutePCDirect, nil
	case hostShortLink:
		return RouteAppRedirect, nil
	default:
		return 0, media.Errorf(media.KindUnsupportedHost, "unsupported host").WithHost(host)
	}
}

// ContentIDFromURL returns the modal_id query value if present, else the
// last non-empty path segment.
func ContentIDFromURL(u *url.URL) (string, error) {
	if id := u.Query().Get("modal_id"); id != "" {
		return id, nil
	}
	if id := lastPathSegment(u.Path); id != "" {
		return id, nil
	}
	return "", media.Errorf(media.KindInvalidURL, "no content identifier in %q", u.String())
}

func lastPathSegment(path string) string {
	segments := strings.Split(path, "/")
	for i := len(segments) - 1; i >= 0; i-- {
		if segments[i] != "" {
			return segments[i]
		}
	}
	return ""
}

// shareURLPattern matches an ASCII URL embedded in share text. Share text
// mixes the link with CJK prose and full-width punctuation, which ends the match.
var shareURLPattern = regexp.MustCompile(`https?://[A-Za-z0-9\-._~:/?#\[\]@!$&'*+,;=%]+`)

// FindShareURL pulls the first http(s) URL out of pasted share text, such as
// "7.43 复制打开抖音，看看【作品】 https://v.douyin.com/iRNBho6u/ a@b.cn 08/21".
// Text without a URL is returned trimmed so the classifier can reject it.
func FindShareURL(text string) string {
	text = strings.TrimSpace(text)
	if m := shareURLPattern.FindString(text); m != "" {
		return m
	}
	return text
}
