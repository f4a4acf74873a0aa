// Command dfsctl is the filesystem-level command surface spec §6
// names as "out of scope" for the core but expected of a complete
// system: mkdir, touch, ls, cat, rm against a running naming
// coordinator, built as a spf13/cobra CLI in the layout
// kubernetes-sigs/kind's cmd tree demonstrates.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/distfs/distfs/internal/clientservice"
	"github.com/distfs/distfs/internal/storage"
)

var namingAddr string

func main() {
	root := &cobra.Command{
		Use:   "dfsctl",
		Short: "Interact with a running distfs naming coordinator",
	}
	root.PersistentFlags().StringVar(&namingAddr, "naming", "127.0.0.1:9100", "naming coordinator client-service address")

	root.AddCommand(mkdirCmd(), touchCmd(), lsCmd(), catCmd(), rmCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func client() clientservice.Stub { return clientservice.NewStub(namingAddr) }

// withParentLock wraps fn with the exclusive lock/unlock pair spec §6
// requires of every external-CLI mutation: "wrapped by an exclusive
// lock on the parent directory for mutations."
func withParentLock(ctx context.Context, parent string, fn func() error) error {
	c := client()
	if err := c.Lock(ctx, parent, true); err != nil {
		return err
	}
	defer c.Unlock(ctx, parent, true)
	return fn()
}

// withSharedLock wraps fn with the shared lock/unlock pair spec §6
// requires of every external-CLI query.
func withSharedLock(ctx context.Context, p string, fn func() error) error {
	c := client()
	if err := c.Lock(ctx, p, false); err != nil {
		return err
	}
	defer c.Unlock(ctx, p, false)
	return fn()
}

func mkdirCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mkdir PATH",
		Short: "Create a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, parent := args[0], parentOf(args[0])
			return withParentLock(ctx, parent, func() error {
				ok, err := client().CreateDirectory(ctx, p)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("mkdir %s: already exists", p)
				}
				return nil
			})
		},
	}
}

func touchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "touch PATH",
		Short: "Create an empty file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, parent := args[0], parentOf(args[0])
			return withParentLock(ctx, parent, func() error {
				ok, err := client().CreateFile(ctx, p)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("touch %s: already exists", p)
				}
				return nil
			})
		},
	}
}

func lsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ls PATH",
		Short: "List a directory's children",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := args[0]
			return withSharedLock(ctx, p, func() error {
				names, err := client().List(ctx, p)
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Println(n)
				}
				return nil
			})
		},
	}
}

func catCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat PATH",
		Short: "Print a file's contents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p := args[0]
			return withSharedLock(ctx, p, func() error {
				id, err := client().GetStorage(ctx, p)
				if err != nil {
					return err
				}
				data := storage.NewDataStub(id.Data)
				size, err := data.Size(ctx, p)
				if err != nil {
					return err
				}
				b, err := data.Read(ctx, p, 0, size)
				if err != nil {
					return err
				}
				os.Stdout.Write(b)
				return nil
			})
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm PATH",
		Short: "Delete a file or directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			p, parent := args[0], parentOf(args[0])
			return withParentLock(ctx, parent, func() error {
				ok, err := client().Delete(ctx, p)
				if err != nil {
					return err
				}
				if !ok {
					return fmt.Errorf("rm %s: one or more storage nodes failed to delete", p)
				}
				return nil
			})
		},
	}
}

func parentOf(p string) string {
	i := len(p) - 1
	for i > 0 && p[i] != '/' {
		i--
	}
	if i == 0 {
		return "/"
	}
	return p[:i]
}
