package cmd

import "time"

// DefaultServeLockWait is how long a webhook run waits for a target held
// by another run.
var DefaultServeLockWait = 15 * time.Minute
