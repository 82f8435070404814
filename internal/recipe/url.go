package recipe

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// trackingParams are stripped from canonical URLs. Entries ending in "_" are prefixes.
var trackingParams = []string{
	"utm_", "fbclid", "gclid", "igshid", "igsh", "mc_cid", "mc_eid",
	"ref", "ref_src", "si", "_ga", "yclid", "msclkid", "share",
}

// CanonicalURL reduces a URL to scheme+host+path with tracking params removed.
// It lowercases the scheme and host, drops default ports, a leading "www.",
// the fragment, and any trailing slash, and sorts the remaining query.
func CanonicalURL(rawURL string) (string, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	if u.Scheme == "http" {
		u.Host = strings.TrimSuffix(u.Host, ":80")
	}
	if u.Scheme == "https" {
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	u.User = nil
	if len(u.Path) > 1 {
		u.Path = strings.TrimRight(u.Path, "/")
	}
	if u.Path == "/" {
		u.Path = ""
	}
	u.RawPath = ""

	q := u.Query()
	for key := range q {
		if isTrackingParam(key) {
			q.Del(key)
		}
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Hostname returns the lowercased host of rawURL without "www." and port.
func Hostname(rawURL string) (string, error) {
	u, err := parseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}
	return strings.TrimPrefix(strings.ToLower(u.Hostname()), "www."), nil
}

func parseHTTPURL(rawURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(rawURL)
	if trimmed == "" {
		return nil, errors.New("empty url")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "https://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
	if u.Hostname() == "" || !strings.Contains(u.Hostname(), ".") {
		return nil, fmt.Errorf("url %q has no usable host", rawURL)
	}
	return u, nil
}

func isTrackingParam(key string) bool {
	lower := strings.ToLower(key)
	for _, p := range trackingParams {
		if strings.HasSuffix(p, "_") {
			if strings.HasPrefix(lower, p) {
				return true
			}
			continue
		}
		if lower == p {
			return true
		}
	}
	return false
}
