// Package ws streams GUI session snapshots to viewers over WebSocket.
//
// Each viewer receives a system greeting, then the current snapshot, then
// one snapshot per session change. Viewers may send:
//
//	{"type":"ping"}
//	{"type":"get_state"}
//	{"type":"connect","projectName":"foo"}
//	{"type":"reload","url":"http://host/gui/?project=foo"}
package ws
