// Package maintenance runs the periodic queue upkeep: recovering expired
// leases, promoting due delayed jobs and reporting queue depth.
package maintenance
