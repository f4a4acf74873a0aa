// Package registration defines the wire contract of the naming
// coordinator's storage registration interface (spec §4.3
// "Registration operation") and the client-side stub a storage node
// uses to call it. It is split out from internal/coordinator (which
// implements the server side) and internal/storage (which calls it at
// startup) purely to avoid those two packages importing each other.
package registration

import (
	"context"
	"encoding/gob"

	"github.com/distfs/distfs/internal/rpc"
)

func init() {
	gob.Register(RegisterArgs{})
	gob.Register(RegisterReply{})
}

// Interface names the registration endpoint's method set.
var Interface = []string{"Register"}

// RegisterArgs is the wire request for Register: a storage node's two
// endpoints plus the set of file paths it already holds locally.
type RegisterArgs struct {
	DataEndpoint    string
	CommandEndpoint string
	Files           []string
}

// RegisterReply is the wire reply: the duplicate list spec §4.3
// describes — paths the caller must delete from local storage.
type RegisterReply struct {
	Duplicates []string
}

// Stub is the client side of the registration endpoint, used by a
// storage node at startup.
type Stub struct{ s rpc.Stub }

// NewStub builds a registration Stub targeting endpoint.
func NewStub(endpoint string) Stub {
	return Stub{s: rpc.NewStub("coordinator.Registration", endpoint)}
}

// Register announces dataEndpoint/commandEndpoint and files to the
// naming coordinator, returning the duplicate list.
func (s Stub) Register(ctx context.Context, dataEndpoint, commandEndpoint string, files []string) ([]string, error) {
	v, err := s.s.Call(ctx, "Register", []any{RegisterArgs{
		DataEndpoint:    dataEndpoint,
		CommandEndpoint: commandEndpoint,
		Files:           files,
	}})
	if err != nil {
		return nil, err
	}
	return v.(RegisterReply).Duplicates, nil
}
