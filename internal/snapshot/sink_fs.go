package snapshot

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileSink writes artifacts to the local filesystem, truncating any
// previous artifact of the same name.
type FileSink struct{}

// Write creates parent directories as needed and overwrites name.
func (FileSink) Write(ctx context.Context, name string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context canceled: %w", err)
	}
	if dir := filepath.Dir(name); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create snapshot dir %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(name, data, 0o600); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
