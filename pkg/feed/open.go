package feed

import (
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Driver names accepted by Open.
const (
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// Open builds the bus named by driver. redisURL and namespace are only used
// by the redis driver.
func Open(driver, redisURL, namespace string) (Bus, error) {
	switch driver {
	case DriverMemory:
		return NewMemoryBus(), nil
	case DriverRedis:
		opts, err := redis.ParseURL(redisURL)
		if err != nil {
			return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
		}
		bus, err := NewRedisBus(opts, namespace)
		if err != nil {
			return nil, err
		}
		return bus, nil
	default:
		return nil, fmt.Errorf("unknown feed driver %q (valid: %s, %s)", driver, DriverMemory, DriverRedis)
	}
}
