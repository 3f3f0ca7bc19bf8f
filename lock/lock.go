/*
Package lock provides the per-key mutual exclusion used around every
reconciliation write.

IMPLEMENTATIONS:
  - Local: in-process, one channel per key. Enough for a single replica and
    for tests.
  - Redis: bsm/redislock over go-redis. Required once more than one replica
    writes to the same database.

Both hand back a release func that is safe to call more than once.
*/
package lock

import "errors"

// ErrNotObtained is returned when the lock stays busy until the retry
// budget or the context runs out.
var ErrNotObtained = errors.New("lock not obtained")
