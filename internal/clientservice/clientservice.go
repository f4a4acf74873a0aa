// Package clientservice defines the wire contract of the naming
// coordinator's client-facing service (spec §4.3 "Client service
// operations") and the client-side stub any caller (dfsctl, a storage
// driver) uses to reach it. Split out from internal/coordinator for
// the same reason as internal/registration: the stub side must not
// import the package that implements the server side.
package clientservice

import (
	"context"
	"encoding/gob"

	"github.com/distfs/distfs/internal/rpc"
)

func init() {
	gob.Register(LockArgs{})
	gob.Register(PathArgs{})
	gob.Register(StorageIdentity{})
}

// Interface names the client service's method set.
var Interface = []string{
	"Lock", "Unlock", "IsDirectory", "List",
	"CreateFile", "CreateDirectory", "Delete", "GetStorage",
}

// LockArgs is shared by Lock and Unlock.
type LockArgs struct {
	Path      string
	Exclusive bool
}

// PathArgs is shared by every other client-service method.
type PathArgs struct{ Path string }

// StorageIdentity is the wire form of a storage node's endpoint pair,
// mirroring storageid.ID without internal/clientservice importing
// internal/storageid — the two packages are kept independent so
// either can change shape without rippling into the other.
type StorageIdentity struct{ Data, Command string }

// Stub is the client side of the client service.
type Stub struct{ s rpc.Stub }

// NewStub builds a client-service Stub targeting endpoint.
func NewStub(endpoint string) Stub {
	return Stub{s: rpc.NewStub("coordinator.ClientService", endpoint)}
}

func (s Stub) Lock(ctx context.Context, path string, exclusive bool) error {
	_, err := s.s.Call(ctx, "Lock", []any{LockArgs{Path: path, Exclusive: exclusive}})
	return err
}

func (s Stub) Unlock(ctx context.Context, path string, exclusive bool) error {
	_, err := s.s.Call(ctx, "Unlock", []any{LockArgs{Path: path, Exclusive: exclusive}})
	return err
}

func (s Stub) IsDirectory(ctx context.Context, path string) (bool, error) {
	v, err := s.s.Call(ctx, "IsDirectory", []any{PathArgs{Path: path}})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s Stub) List(ctx context.Context, dir string) ([]string, error) {
	v, err := s.s.Call(ctx, "List", []any{PathArgs{Path: dir}})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

func (s Stub) CreateFile(ctx context.Context, path string) (bool, error) {
	v, err := s.s.Call(ctx, "CreateFile", []any{PathArgs{Path: path}})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s Stub) CreateDirectory(ctx context.Context, path string) (bool, error) {
	v, err := s.s.Call(ctx, "CreateDirectory", []any{PathArgs{Path: path}})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s Stub) Delete(ctx context.Context, path string) (bool, error) {
	v, err := s.s.Call(ctx, "Delete", []any{PathArgs{Path: path}})
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (s Stub) GetStorage(ctx context.Context, path string) (StorageIdentity, error) {
	v, err := s.s.Call(ctx, "GetStorage", []any{PathArgs{Path: path}})
	if err != nil {
		return StorageIdentity{}, err
	}
	return v.(StorageIdentity), nil
}
