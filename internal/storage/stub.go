// Package storage implements the storage node of spec §4.4: a local
// file root served over two RPC interfaces (data: size/read/write;
// command: create/delete/copy), plus the client-side stubs every
// other component (the coordinator's replication worker, dfsctl's
// cat command, a peer storage node's copy implementation) uses to
// reach a storage node.
package storage

import (
	"context"
	"encoding/gob"

	"github.com/distfs/distfs/internal/rpc"
	"github.com/distfs/distfs/internal/storageid"
)

func init() {
	gob.Register(sizeArgs{})
	gob.Register(readArgs{})
	gob.Register(writeArgs{})
	gob.Register(createArgs{})
	gob.Register(deleteArgs{})
	gob.Register(copyArgs{})
}

type sizeArgs struct{ Path string }
type readArgs struct {
	Path          string
	Offset, Length int64
}
type writeArgs struct {
	Path   string
	Offset int64
	Bytes  []byte
}
type createArgs struct{ Path string }
type deleteArgs struct{ Path string }
type copyArgs struct {
	Path       string
	SourceData string
}

// DataInterface names the storage node's data-endpoint method set
// (spec §4.4: size/read/write).
var DataInterface = []string{"Size", "Read", "Write"}

// CommandInterface names the storage node's command-endpoint method
// set (spec §4.4: create/delete/copy).
var CommandInterface = []string{"Create", "Delete", "Copy"}

// DataStub is the client side of a storage node's data endpoint.
type DataStub struct{ s rpc.Stub }

// NewDataStub builds a DataStub targeting endpoint.
func NewDataStub(endpoint string) DataStub {
	return DataStub{s: rpc.NewStub("storage.Data", endpoint)}
}

// Size returns the byte length of the file at path.
func (d DataStub) Size(ctx context.Context, path string) (int64, error) {
	v, err := d.s.Call(ctx, "Size", []any{sizeArgs{Path: path}})
	if err != nil {
		return 0, err
	}
	return v.(int64), nil
}

// Read returns length bytes of the file at path starting at offset.
func (d DataStub) Read(ctx context.Context, path string, offset, length int64) ([]byte, error) {
	v, err := d.s.Call(ctx, "Read", []any{readArgs{Path: path, Offset: offset, Length: length}})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

// Write writes bytes at offset into the file at path.
func (d DataStub) Write(ctx context.Context, path string, offset int64, b []byte) error {
	_, err := d.s.Call(ctx, "Write", []any{writeArgs{Path: path, Offset: offset, Bytes: b}})
	return err
}

// CommandStub is the client side of a storage node's command
// endpoint.
type CommandStub struct{ s rpc.Stub }

// NewCommandStub builds a CommandStub targeting endpoint.
func NewCommandStub(endpoint string) CommandStub {
	return CommandStub{s: rpc.NewStub("storage.Command", endpoint)}
}

// Create creates an empty file at path, returning false if it already
// exists.
func (c CommandStub) Create(ctx context.Context, path string) (bool, error) {
	v, err := c.s.Call(ctx, "Create", []any{createArgs{Path: path}})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Delete removes path (recursively, if a directory), returning false
// for root.
func (c CommandStub) Delete(ctx context.Context, path string) (bool, error) {
	v, err := c.s.Call(ctx, "Delete", []any{deleteArgs{Path: path}})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

// Copy instructs the storage node to pull path from sourceData's data
// endpoint, overwriting any local copy.
func (c CommandStub) Copy(ctx context.Context, path, sourceData string) error {
	_, err := c.s.Call(ctx, "Copy", []any{copyArgs{Path: path, SourceData: sourceData}})
	return err
}

// Identity pairs a CommandStub's and DataStub's endpoints into the
// storageid.ID spec §3 requires for registry membership.
func Identity(dataEndpoint, commandEndpoint string) storageid.ID {
	return storageid.ID{Data: dataEndpoint, Command: commandEndpoint}
}
