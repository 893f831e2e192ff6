// Package ws streams progress snapshots to browsers over WebSocket.
//
// The server mounts a Hub at /ws/stream. On connect a client receives the
// current snapshot at once, then one frame per broadcast tick (5s):
//
//	{"event": "snapshot", "data": { /* GET /api/v1/snapshot body */ }}
//
// Connecting with ?source=<id> narrows every frame to that source and its
// alerts. With API key auth enabled, browsers pass the key as ?api_key=.
//
// Frames are queued per client; a client whose queue is full is dropped.
// Origins are not checked, so restrict them at the reverse proxy.
package ws
