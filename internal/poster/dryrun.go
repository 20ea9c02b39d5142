package poster

import (
	"context"
	"log/slog"
)

type DryRunLog interface {
	AppendDryRun(ctx context.Context, text string) error
}

// DryRun records what would have been posted instead of posting it.
type DryRun struct {
	log DryRunLog
}

func NewDryRun(log DryRunLog) *DryRun {
	return &DryRun{log: log}
}

func (d *DryRun) Authenticate(context.Context) error {
	return nil
}

func (d *DryRun) Post(ctx context.Context, text string) (string, error) {
	slog.Info("[DRY RUN] would post", "text", text)
	if err := d.log.AppendDryRun(ctx, text); err != nil {
		slog.Warn("failed to write dry-run log", "err", err)
	}
	return DryRunID, nil
}
