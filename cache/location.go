package cache

import (
	"net/url"
	"regexp"
	"strings"
)

// FileSuffix terminates every mapped location. It keeps a cached entry for
// example.com from clashing with the directory holding entries for paths
// below example.com.
const FileSuffix = ".cache"

// DefaultIgnoredQueries matches the cache-busting timestamp parameter many
// sites append to requests.
var DefaultIgnoredQueries = []string{`^_$`}

// Mapper derives cache locations from URLs. The zero value maps without
// ignoring any query parameters.
type Mapper struct {
	ignoreQueries []*regexp.Regexp
}

// NewMapper compiles the given ignore patterns. Query parameters whose key
// matches any pattern are excluded from the mapped location.
func NewMapper(ignoreQueries ...string) (Mapper, error) {
	var m Mapper
	for _, pattern := range ignoreQueries {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return Mapper{}, err
		}
		m.ignoreQueries = append(m.ignoreQueries, re)
	}
	return m, nil
}

// Map derives the location for a URL. The mapping is a pure function of the
// URL and the mapper's ignore set: host[:port], then one segment per path
// element, then one segment per kept query pair. The first query segment is
// prefixed with '?' so the query remains recognizable in the path.
func (m Mapper) Map(u *url.URL) Location {
	host := u.Hostname()
	if port := u.Port(); port != "" {
		host += ":" + port
	}
	segments := []string{host}
	for _, part := range strings.Split(strings.Trim(u.EscapedPath(), "/"), "/") {
		if part != "" {
			segments = append(segments, part)
		}
	}
	kept := 0
	for _, pair := range parseQueryOrdered(u.RawQuery) {
		if m.ignored(pair[0]) {
			continue
		}
		segment := url.QueryEscape(pair[0]) + "=" + url.QueryEscape(pair[1])
		if kept == 0 {
			segment = "?" + segment
		}
		kept++
		segments = append(segments, segment)
	}
	return Location(strings.Join(segments, "/") + FileSuffix)
}

func (m Mapper) ignored(key string) bool {
	for _, re := range m.ignoreQueries {
		if re.MatchString(key) {
			return true
		}
	}
	return false
}

// parseQueryOrdered splits a raw query into key/value pairs without losing
// their order, which url.Values would.
func parseQueryOrdered(rawQuery string) [][2]string {
	var pairs [][2]string
	for _, part := range strings.Split(rawQuery, "&") {
		if part == "" {
			continue
		}
		key, value, _ := strings.Cut(part, "=")
		if k, err := url.QueryUnescape(key); err == nil {
			key = k
		}
		if v, err := url.QueryUnescape(value); err == nil {
			value = v
		}
		pairs = append(pairs, [2]string{key, value})
	}
	return pairs
}
