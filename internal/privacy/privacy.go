// Package privacy redacts credentials from URLs and from text that embeds
// them, such as errors returned by notification services.
package privacy

import (
	"regexp"
	"strings"
)

// Redacted replaces the sensitive part of a URL.
const Redacted = "[REDACTED]"

// any scheme: shoutrrr service URLs carry tokens in custom schemes
var urlPattern = regexp.MustCompile(`[a-zA-Z][a-zA-Z0-9+.\-]*://[^\s"'<>]+`)

// RedactURL keeps the scheme and host of raw and replaces credentials,
// path and query with a single marker. Service tokens often live in the
// path, so nothing after the host survives.
func RedactURL(raw string) string {
	scheme, authority, tail, hadUser, ok := split(raw)
	if !ok {
		return raw
	}
	if !hadUser && (tail == "" || tail == "/") {
		return scheme + "://" + authority
	}
	return scheme + "://" + authority + "/" + Redacted
}

// StripQuery drops credentials, query and fragment but keeps the path, for
// logging calls to known endpoints.
func StripQuery(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	scheme, authority, path, _, ok := split(raw)
	if !ok {
		return raw
	}
	return scheme + "://" + authority + path
}

// ScrubMessage redacts every URL found in message. Punctuation that ends
// a sentence or clause after the URL is kept.
func ScrubMessage(message string) string {
	return urlPattern.ReplaceAllStringFunc(message, func(match string) string {
		trimmed := strings.TrimRight(match, trailingPunct)
		return RedactURL(trimmed) + match[len(trimmed):]
	})
}

// trailingPunct is not part of a URL when it ends the match
const trailingPunct = ":,.;)"

// split separates raw into scheme, host[:port] and everything after the
// host. Userinfo is removed from the authority.
func split(raw string) (scheme, authority, tail string, hadUser, ok bool) {
	scheme, rest, ok := strings.Cut(raw, "://")
	if !ok {
		return "", "", "", false, false
	}
	authority = rest
	if i := strings.IndexAny(rest, "/?#"); i >= 0 {
		authority, tail = rest[:i], rest[i:]
	}
	if at := strings.LastIndex(authority, "@"); at >= 0 {
		authority = authority[at+1:]
		hadUser = true
	}
	return scheme, authority, tail, hadUser, true
}
