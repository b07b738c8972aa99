// Package redis persists per-source snapshot documents so a restarted
// process can seed its in-memory store instead of reporting every active
// incident as new on the first cycle.
package redis
