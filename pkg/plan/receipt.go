package plan

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"basecamp/pkg/actions"
	"basecamp/pkg/log"
	"basecamp/pkg/system"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/spf13/afero"
)

// DefaultReceiptPath is the well-known location of the install receipt.
const DefaultReceiptPath = "/opt/basecamp/receipt.json"

// Receipt is the durable record of successfully completed actions, in
// execution order. It is append-only during install, read-only after,
// and carries everything a later process needs to revert the install
// without re-planning against live host state.
type Receipt struct {
	ID        uuid.UUID                 `json:"id"`
	CreatedAt time.Time                 `json:"created_at"`
	Actions   []*actions.StatefulAction `json:"actions"`
}

func NewReceipt() *Receipt {
	return &Receipt{
		ID:        uuid.New(),
		CreatedAt: time.Now().UTC(),
	}
}

// Save serializes the receipt to its durable location.
func (r *Receipt) Save(fs afero.Fs, path string) error {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding receipt: %w", err)
	}
	if err := fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating receipt directory: %w", err)
	}
	if err := afero.WriteFile(fs, path, append(data, '\n'), 0o600); err != nil {
		return fmt.Errorf("writing receipt %s: %w", path, err)
	}
	return nil
}

// LoadReceipt reads a receipt back. Unknown action tags or states fail
// the load; a receipt that cannot be fully decoded cannot be safely
// reverted.
func LoadReceipt(fs afero.Fs, path string) (*Receipt, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading receipt %s: %w", path, err)
	}
	var r Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decoding receipt %s: %w", path, err)
	}
	return &r, nil
}

// Revert walks the recorded actions backward and reverts each one that
// completed. Best-effort: a failing revert does not stop the walk, and
// every failure ends up in the returned aggregate.
func (r *Receipt) Revert(host *system.Host, logger log.Logger) error {
	var errs *multierror.Error
	for i := len(r.Actions) - 1; i >= 0; i-- {
		sa := r.Actions[i]
		if sa.State() != actions.StateCompleted {
			logger.Debug("Skipping action not recorded as completed", "action", sa.Action.Tag())
			continue
		}
		logger.Info("<= " + sa.Action.DescribeRevert().Synopsis)
		if err := sa.Revert(host, logger); err != nil {
			logger.Error("Revert failed", "action", sa.Action.Tag(), "error", err)
			errs = multierror.Append(errs, err)
		}
	}
	return errs.ErrorOrNil()
}

// Describe renders what a revert of this receipt will do.
func (r *Receipt) Describe(explain bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Reverting install %s from %s.\n\n", r.ID, r.CreatedAt.Format(time.RFC3339))
	b.WriteString("The following actions will be reverted:\n")
	for i := len(r.Actions) - 1; i >= 0; i-- {
		sa := r.Actions[i]
		if sa.State() != actions.StateCompleted {
			continue
		}
		renderDescription(&b, sa.Action.DescribeRevert(), explain)
	}
	return b.String()
}
