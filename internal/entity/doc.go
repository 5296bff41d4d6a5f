// Package entity defines the printer entity model: the catalog of
// sensors and binary sensors derived from Moonraker printer objects,
// the registry that tracks their live state, and the SQLite-backed
// repositories that persist entities, state history and print jobs.
//
// # Catalog
//
// The catalog is a static list of entity definitions. Each definition
// names the printer objects and fields it needs (its subscription) and
// carries an extractor that computes the entity value from a decoded
// status snapshot. The bridge merges all subscriptions into a single
// printer.objects.subscribe call.
//
// # Registry
//
// The registry caches entities in memory and evaluates the catalog
// against incoming snapshots. ApplySnapshot returns only the entities
// whose state actually changed, which drives MQTT publishing and
// history recording downstream. Reads return deep copies so callers
// can never mutate the cache.
package entity
