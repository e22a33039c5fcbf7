package outbox

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// stageMedia copies the source file into the session's media staging
// directory under the entry's temp id, so the original can be moved or
// deleted while the send is in flight.
func stageMedia(srcPath, stageDir, tempID string) (string, error) {
	src, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer src.Close()

	if err := os.MkdirAll(stageDir, 0700); err != nil {
		return "", err
	}

	ext := filepath.Ext(srcPath)
	staged := filepath.Join(stageDir, tempID+ext)
	dst, err := os.OpenFile(staged, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(staged)
		return "", fmt.Errorf("copying %s: %w", srcPath, err)
	}
	if err := dst.Close(); err != nil {
		_ = os.Remove(staged)
		return "", err
	}
	return staged, nil
}
