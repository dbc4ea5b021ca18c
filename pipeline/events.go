package pipeline

import (
	"context"

	"github.com/relabs-ai/agentchain/types"
)

// Listener receives a run snapshot after every state transition. Listeners
// are invoked outside the controller's lock and may call back into the
// controller.
type Listener func(Snapshot)

// HistorySink durably records committed history entries. The controller
// reports to the sink in commit order; it does not own storage. A reviewed
// entry is delivered again with its updated status.
type HistorySink interface {
	Append(ctx context.Context, entry types.HistoryEntry) error
}
