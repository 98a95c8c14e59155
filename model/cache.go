package model

// CacheEntry is the record persisted for one account after a successful aggregation
// its freshness is the modification time of the record, no timestamp is stored inside
type CacheEntry struct {
	Stats     LanguageStats `json:"stats"`
	RateLimit RateLimitInfo `json:"rateLimit"`
}
