package cache

// SchemaStats counts schema cache outcomes.
type SchemaStats struct {
	Hits   int64 `json:"hits"`
	Misses int64 `json:"misses"`
}

// QueryStats counts query cache outcomes. Expired counts entries found
// expired on read and removed lazily.
type QueryStats struct {
	Hits    int64 `json:"hits"`
	Misses  int64 `json:"misses"`
	Expired int64 `json:"expired"`
}

// Stats is a point-in-time snapshot of cache counters.
type Stats struct {
	Schema SchemaStats `json:"schema"`
	Query  QueryStats  `json:"query"`
}
