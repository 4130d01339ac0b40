// Package broadcast fans one admin message out to every eligible user.
//
// The Producer streams recipients from the store into the job queue, one
// job per user. The Dispatcher is the queue handler: it sends one message
// per job, reuses uploaded media through FileRefs, and turns permanent
// platform errors into a blocked flag on the user instead of a retry.
package broadcast
