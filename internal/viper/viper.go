// Package viper holds the shipit-wide Viper instance so that commands
// never touch Viper's global state.
package viper

import (
	"sync"

	spfviper "github.com/spf13/viper"
)

// EnvPrefix is prepended to every configuration key looked up in the environment.
const EnvPrefix = "shipit"

var (
	instance *spfviper.Viper
	mu       = sync.Mutex{}
)

// Instance returns the shipit Viper instance, creating it on first use.
func Instance() *spfviper.Viper {
	mu.Lock()
	defer mu.Unlock()
	if instance == nil {
		instance = spfviper.New()
	}
	return instance
}

// Reset discards the current instance. The next call to Instance starts
// from an empty configuration.
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	instance = nil
}
