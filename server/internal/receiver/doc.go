// Package receiver turns progress logs into stored snapshots. It watches the
// directory of every configured log with fsnotify, re-analyzes a log each
// time the agent appends to it, and also re-analyzes all logs on a fixed
// resync interval so quiet sources stay within the store's TTL.
//
// Every stored snapshot is passed to the alert engine.
package receiver
