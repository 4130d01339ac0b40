// Package settings is the read-through cache for hot bot configuration:
// the welcome settings and the active menu buttons.
//
// Reads go cache first, then the store. Writers call Invalidate after
// persisting so the next read sees the new value even before the TTL ends.
// A cache outage degrades to store reads; it never fails a read.
package settings
