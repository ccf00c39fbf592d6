package spoofbot

// Config configures the file-backed cache transport. The three mode flags
// are independent booleans and stay mutable at runtime through the transport
// setters; collapsing them into one mode would lose valid combinations such
// as offline with active disabled.
type Config struct {
	// Active checks incoming requests against the cache and serves hits
	// without touching the network.
	Active bool
	// Passive stores received responses in the cache, overwriting any
	// existing entry at the same location.
	Passive bool
	// Offline fails any request that would otherwise go out to the network
	// with ErrNetworkDisabled.
	Offline bool

	// CacheOnStatus lists the response status codes stored in passive mode.
	CacheOnStatus []int

	// StrictDelete makes Delete and DeleteLast fail with
	// cache.ErrEntryNotFound when there is no entry to delete. By default a
	// missing entry is a no-op.
	StrictDelete bool

	// IgnoreQueries holds regular expressions for query parameter keys to
	// exclude when mapping a URL to a cache location.
	IgnoreQueries []string
}

// DefaultConfig returns a configuration with sensible defaults: record and
// serve, online, cache the usual success and redirect statuses, and ignore
// the cache-busting underscore query parameter.
func DefaultConfig() Config {
	return Config{
		Active:        true,
		Passive:       true,
		Offline:       false,
		CacheOnStatus: []int{200, 201, 300, 301, 302, 303, 307, 308},
		IgnoreQueries: []string{`^_$`},
	}
}
