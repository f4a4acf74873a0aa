// Package storageid defines the value type identifying a storage
// node: a pair of remote endpoints (spec §3 "Storage-node registry").
package storageid

import "fmt"

// ID identifies a storage node by its two TCP endpoints. Identity
// equality is by endpoint pair (spec §3), which falls directly out of
// ID being a comparable struct usable as a map key.
type ID struct {
	// Data is the host:port of the storage node's data endpoint
	// (size/read/write).
	Data string
	// Command is the host:port of the storage node's command
	// endpoint (create/delete/copy).
	Command string
}

// String renders an ID for logging.
func (id ID) String() string {
	return fmt.Sprintf("data=%s,command=%s", id.Data, id.Command)
}

// Zero reports whether id is the zero value (unset).
func (id ID) Zero() bool { return id == ID{} }
