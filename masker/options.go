// options.go - Optionen fuer die Maskengenerierung

package masker

import (
	randv2 "math/rand/v2"

	"golang.org/x/exp/rand"

	"github.com/umbra-ml/umbra/envconfig"
)

// Option konfiguriert einen Generierungsaufruf.
type Option func(*genConfig)

// genConfig sammelt die angewandten Optionen.
type genConfig struct {
	src rand.Source
}

// WithSource setzt die Zufallsquelle. Der Aufrufer behaelt die Hoheit
// ueber die Quelle; Aufrufe mit derselben Quelle sind sequenziell
// deterministisch, aber nicht nebenlaeufig sicher.
func WithSource(src rand.Source) Option {
	return func(c *genConfig) {
		if src != nil {
			c.src = src
		}
	}
}

// WithSeed fixiert den Seed. Identische Seeds, Formen und Parameter
// liefern identische Maskenstapel.
func WithSeed(seed uint64) Option {
	return func(c *genConfig) {
		c.src = rand.NewSource(seed)
	}
}

// newGenConfig wendet die Optionen an. Ohne Quelle und ohne UMBRA_SEED
// erhaelt jeder Aufruf einen frischen Seed.
func newGenConfig(opts ...Option) *genConfig {
	c := &genConfig{}
	for _, opt := range opts {
		opt(c)
	}
	if c.src == nil {
		if seed, ok := envconfig.Seed(); ok {
			c.src = rand.NewSource(seed)
		} else {
			c.src = rand.NewSource(randv2.Uint64())
		}
	}
	return c
}
