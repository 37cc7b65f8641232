// Package registry provides a generic thread-safe registry for values indexed
// by key, iterated in registration order.
//
// The queue worker keeps its named timers in a registry, and the scenario
// simulator uses registries as catalogs of events and behaviors.
//
// # Basic Usage
//
//	timers := registry.New[string, *queue.Timer]()
//	if err := timers.Add("game", t); err != nil {
//	    // errors.Is(err, registry.ErrDuplicate)
//	}
//
//	t, ok := timers.Get("game")
//
// # Ordering
//
// Keys, Values and Range always report entries in the order they were first
// registered. Replacing a value with Register keeps its position; deleting
// and re-registering moves it to the end.
package registry
