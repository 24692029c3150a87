package health

import (
	"context"
	"fmt"
	"os"
	"os/exec"
)

// WritableDir returns a checker that passes when a file can be created in dir.
func WritableDir(name, dir string) Checker {
	return Checker{
		Name: name,
		Check: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			f, err := os.CreateTemp(dir, ".readyz-*")
			if err != nil {
				return fmt.Errorf("directory %q not writable: %w", dir, err)
			}
			path := f.Name()
			f.Close()
			return os.Remove(path)
		},
	}
}

// Executable returns a checker that passes when bin resolves on PATH (or is an
// executable path).
func Executable(name, bin string) Checker {
	return Checker{
		Name: name,
		Check: func(context.Context) error {
			if _, err := exec.LookPath(bin); err != nil {
				return fmt.Errorf("%s not found: %w", bin, err)
			}
			return nil
		},
	}
}
