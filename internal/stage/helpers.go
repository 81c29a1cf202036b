package stage

import (
	"os"
	"strings"

	"binder/internal/queue"
	"binder/internal/services"
)

// RequireScanImage resolves the scan image path for a queue item and verifies
// the file is present on disk. On failure it returns a services.ErrValidation
// suitable for stage Prepare and Execute methods.
func RequireScanImage(item *queue.Item) (string, error) {
	path := strings.TrimSpace(item.ImagePath())
	if path == "" {
		return "", services.Wrap(
			services.ErrValidation, "stage", "resolve scan image",
			"Scan image path missing; re-stage the source file", nil)
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", services.Wrap(
			services.ErrValidation, "stage", "resolve scan image",
			"Scan image not found on disk; re-stage the source file", err)
	}
	if info.IsDir() {
		return "", services.Wrap(
			services.ErrValidation, "stage", "resolve scan image",
			"Scan image path is a directory; re-stage the source file", nil)
	}
	return path, nil
}
