package mdict

// Option configures a Dict at Open time (spec.md §6 "Options").
type Option func(*options)

type options struct {
	cachePayloads  bool
	cacheResources bool
	normalize      Normalizer
}

func defaultOptions() *options {
	return &options{
		cachePayloads:  true,
		cacheResources: true,
		normalize:      defaultNormalizer,
	}
}

// WithPayloadCache enables or disables the decoded MDX record-block
// cache (spec.md §5, §9 "Block cache"). Enabled by default.
func WithPayloadCache(enabled bool) Option {
	return func(o *options) { o.cachePayloads = enabled }
}

// WithResourceCache enables or disables the decoded MDD record-block
// cache for each loaded resource sibling. Enabled by default.
func WithResourceCache(enabled bool) Option {
	return func(o *options) { o.cacheResources = enabled }
}

// WithKeyNormalizer injects the single comparator source function
// applied uniformly at key-block build time and at every query
// (spec.md §4.7). The default folds to lowercase and keeps only
// lowercase letters, matching the Rust original's comparator, and
// leaves MDD resource paths unchanged.
func WithKeyNormalizer(fn Normalizer) Option {
	return func(o *options) { o.normalize = fn }
}
