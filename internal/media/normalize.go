// Package media derives display and download forms of image links stored
// against providers, cultivars and reports.
package media

import (
	"net/url"
	"strings"
)

// DefaultHost is the file host whose links get rewritten.
const DefaultHost = "tmpfiles.org"

// Links holds the two canonical forms of a media reference.
// Preview is for inline display, Direct for the original file.
type Links struct {
	Direct  string `json:"direct"`
	Preview string `json:"preview"`
}

type Normalizer struct {
	Host string
}

var std = Normalizer{Host: DefaultHost}

func Normalize(value string) Links { return std.Normalize(value) }

func NormalizePtr(value *string) Links { return std.NormalizePtr(value) }

func (n Normalizer) NormalizePtr(value *string) Links {
	if value == nil {
		return Links{}
	}
	return n.Normalize(*value)
}

// Normalize never fails. Input that does not parse, or parses without a
// scheme, gets a best-effort text substitution instead.
func (n Normalizer) Normalize(value string) Links {
	if value == "" {
		return Links{}
	}
	if strings.HasPrefix(value, "http://") {
		value = "https://" + strings.TrimPrefix(value, "http://")
	}

	u, err := url.Parse(value)
	if err != nil || u.Scheme == "" {
		return fallback(value)
	}
	// a hostless absolute URL (file:///x) is simply not the recognized host
	if !strings.EqualFold(u.Hostname(), n.host()) {
		return Links{Direct: value, Preview: value}
	}

	segs := splitPath(u.EscapedPath())
	query := ""
	if u.RawQuery != "" {
		query = "?" + u.RawQuery
	}
	origin := u.Scheme + "://" + u.Host

	var out Links
	switch {
	case len(segs) == 0:
		out.Direct = origin + u.EscapedPath() + query
	case segs[0] == "dl":
		out.Direct = join(origin, segs, query)
	case segs[0] == "d":
		out.Direct = join(origin, append([]string{"dl"}, segs[1:]...), query)
	default:
		out.Direct = join(origin, append([]string{"dl"}, segs...), query)
	}

	preview := segs
	if len(preview) > 0 && preview[0] == "dl" {
		preview = preview[1:]
	}
	if len(preview) == 0 {
		out.Preview = origin + query
	} else {
		out.Preview = join(origin, preview, query)
	}
	return out
}

func (n Normalizer) host() string {
	if n.Host == "" {
		return DefaultHost
	}
	return n.Host
}

// fallback is best-effort only; the result may still not be a valid URL.
func fallback(value string) Links {
	return Links{
		Direct:  strings.Replace(value, "/d/", "/dl/", 1),
		Preview: strings.Replace(value, "/dl/", "/", 1),
	}
}

func splitPath(p string) []string {
	parts := strings.Split(p, "/")
	out := make([]string, 0, len(parts))
	for _, s := range parts {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}

func join(origin string, segs []string, query string) string {
	return origin + "/" + strings.Join(segs, "/") + query
}
