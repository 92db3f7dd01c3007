//go:build windows

package fsstore

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// Windows has no flock; O_CREATE|O_EXCL on a sentinel file is the closest
// portable exclusive primitive.
func withLockFile(ctx context.Context, lockPath string, fn func() error) error {
	for {
		file, err := os.OpenFile(lockPath+".held", os.O_CREATE|os.O_EXCL|os.O_RDWR, filePerm)
		if err == nil {
			defer func() {
				_ = file.Close()
				_ = os.Remove(lockPath + ".held")
			}()
			return fn()
		}
		if !errors.Is(err, os.ErrExist) {
			return fmt.Errorf("%w: open %s: %v", ErrLockUnavailable, lockPath, err)
		}
		if waitErr := waitForLockRetry(ctx, lockPath); waitErr != nil {
			return waitErr
		}
	}
}
