package storefs

import "time"

// timeNow is a seam so tests can observe monotonically increasing
// mtimes/ctimes without depending on wall-clock resolution.
var timeNow = time.Now
