package api

import "errors"

// ErrorFixRetry returned by Fix2 when the collector needs to refill
// its relocation space before the enclosing area can be scanned. The
// scanner aborts, the collector retries. Never escapes the collector.
var ErrorFixRetry = errors.New("api.fixretry")
