package mem

import "errors"
import "fmt"

// ErrorOutofMemory allocation beyond the configured arena capacity.
// Allocation failure after retry is fatal, the arena panics with this
// error.
var ErrorOutofMemory = errors.New("mem.outofmemory")

// ErrorCommitRetry a collection flip invalidated an in-progress
// reservation, repeat reserve/init/commit.
var ErrorCommitRetry = errors.New("mem.commitretry")

func panicerr(fmsg string, args ...interface{}) {
	panic(fmt.Errorf(fmsg, args...))
}
