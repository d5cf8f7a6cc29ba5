// Package factory instantiates pluggable modules (store backends, metrics
// sinks, notifiers) from configuration. A module is named by a type string
// and carries a map of raw settings that its factory decodes into a typed
// struct.
//
//	reg := factory.NewRegistry[store.Store]()
//	reg.MustRegister("sqlite", func(conf map[string]any) (store.Store, error) {
//	    var c sqlite.Config
//	    if err := factory.Decode(conf, &c); err != nil {
//	        return nil, err
//	    }
//	    return sqlite.Open(context.Background(), c)
//	})
//	s, err := reg.Create(factory.ModuleConfig{Type: "sqlite", Conf: map[string]any{"path": "fuelq.db"}})
package factory
