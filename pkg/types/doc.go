// Package types defines Go types shared by the agent, the server and the
// report tool: the canonical in-memory representation of one progress
// sample and of the per-source snapshot the server publishes.
package types
