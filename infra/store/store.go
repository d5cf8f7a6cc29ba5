// Package store selects a persistence backend from configuration.
package store

import (
	"context"

	"github.com/kilianp07/fuelq/core/factory"
	corestore "github.com/kilianp07/fuelq/core/store"
	"github.com/kilianp07/fuelq/infra/store/memory"
	"github.com/kilianp07/fuelq/infra/store/sqlite"
)

var backends = factory.NewRegistry[corestore.Store]()

func init() {
	backends.MustRegister("memory", func(map[string]any) (corestore.Store, error) {
		return memory.New(), nil
	})
	backends.MustRegister("sqlite", func(conf map[string]any) (corestore.Store, error) {
		var c sqlite.Config
		if err := factory.Decode(conf, &c); err != nil {
			return nil, err
		}
		return sqlite.Open(context.Background(), c)
	})
}

// Open creates the backend described by cfg. An empty type means memory.
func Open(cfg factory.ModuleConfig) (corestore.Store, error) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	return backends.Create(cfg)
}

// Backends lists the available backend names.
func Backends() []string { return backends.Names() }
