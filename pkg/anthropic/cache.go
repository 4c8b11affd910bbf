package anthropic

// BuildCachedSystemBlocks puts the stable part of a system prompt behind a
// cache breakpoint. Each stage sends the same persona, instructions and
// response schema for every message, so consecutive items hit the cache.
func BuildCachedSystemBlocks(text string, ttl string) []SystemBlock {
	if ttl == "" {
		ttl = "5m"
	}
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: ttl,
			},
		},
	}
}
