package coordinator

import (
	"log/slog"

	"github.com/google/uuid"

	"github.com/distfs/distfs/internal/storageid"
	"github.com/distfs/distfs/path"
)

// Register implements spec §4.3's registration operation: it rejects
// an already-registered identity with InvalidState, then for each
// proposed file either adds it to the duplicate list (if already
// known) or creates it — along with any missing intermediate
// directories — in the tree.
func (c *Coordinator) Register(dataEndpoint, commandEndpoint string, files []string) ([]string, error) {
	id := storageid.ID{Data: dataEndpoint, Command: commandEndpoint}
	if err := c.registerIdentity(id); err != nil {
		return nil, err
	}
	// A registration token is not part of identity (equality stays
	// endpoint-pair only, per spec §3), only a stable log/trace
	// attribute for correlating this node's subsequent RPCs across
	// an operator's log stream.
	token := uuid.NewString()

	var duplicates []string
	for _, raw := range files {
		p, err := path.Parse(raw)
		if err != nil {
			c.Log.Warn("registration: skipping malformed path", slog.String("path", raw), slog.Any("err", err))
			continue
		}
		dup, err := c.Tree.RegisterFile(p, id)
		if err != nil {
			c.Log.Warn("registration: failed to register file", slog.String("path", raw), slog.Any("err", err))
			continue
		}
		if dup {
			duplicates = append(duplicates, raw)
		}
	}
	c.Log.Info("storage node registered",
		slog.String("token", token),
		slog.String("data", dataEndpoint),
		slog.String("command", commandEndpoint),
		slog.Int("files", len(files)),
		slog.Int("duplicates", len(duplicates)),
	)
	return duplicates, nil
}
