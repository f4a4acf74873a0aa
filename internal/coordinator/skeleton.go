package coordinator

import (
	"context"

	"github.com/distfs/distfs/internal/clientservice"
	"github.com/distfs/distfs/internal/registration"
	"github.com/distfs/distfs/internal/rpc"
	"github.com/distfs/distfs/path"
)

// ClientServiceSkeleton builds the rpc.Skeleton serving spec §4.3's
// client-service operations at the naming server's well-known client
// endpoint.
func (c *Coordinator) ClientServiceSkeleton() *rpc.Skeleton {
	return rpc.NewSkeleton("coordinator.ClientService", clientservice.Interface, map[string]rpc.Handler{
		"Lock": func(ctx context.Context, args []any) (any, error) {
			a := args[0].(clientservice.LockArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			return nil, c.Lock(ctx, p, a.Exclusive)
		},
		"Unlock": func(_ context.Context, args []any) (any, error) {
			a := args[0].(clientservice.LockArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			return nil, c.Unlock(p, a.Exclusive)
		},
		"IsDirectory": func(_ context.Context, args []any) (any, error) {
			a := args[0].(clientservice.PathArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			return c.IsDirectory(p)
		},
		"List": func(ctx context.Context, args []any) (any, error) {
			a := args[0].(clientservice.PathArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			return c.List(ctx, p)
		},
		"CreateFile": func(ctx context.Context, args []any) (any, error) {
			a := args[0].(clientservice.PathArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			return c.CreateFile(ctx, p)
		},
		"CreateDirectory": func(ctx context.Context, args []any) (any, error) {
			a := args[0].(clientservice.PathArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			return c.CreateDirectory(ctx, p)
		},
		"Delete": func(ctx context.Context, args []any) (any, error) {
			a := args[0].(clientservice.PathArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			return c.Delete(ctx, p)
		},
		"GetStorage": func(_ context.Context, args []any) (any, error) {
			a := args[0].(clientservice.PathArgs)
			p, err := path.Parse(a.Path)
			if err != nil {
				return nil, err
			}
			id, err := c.GetStorage(p)
			if err != nil {
				return nil, err
			}
			return clientservice.StorageIdentity{Data: id.Data, Command: id.Command}, nil
		},
	})
}

// RegistrationSkeleton builds the rpc.Skeleton serving spec §4.3's
// registration operation at the naming server's well-known
// registration endpoint.
func (c *Coordinator) RegistrationSkeleton() *rpc.Skeleton {
	return rpc.NewSkeleton("coordinator.Registration", registration.Interface, map[string]rpc.Handler{
		"Register": func(_ context.Context, args []any) (any, error) {
			a := args[0].(registration.RegisterArgs)
			dups, err := c.Register(a.DataEndpoint, a.CommandEndpoint, a.Files)
			if err != nil {
				return nil, err
			}
			return registration.RegisterReply{Duplicates: dups}, nil
		},
	})
}
