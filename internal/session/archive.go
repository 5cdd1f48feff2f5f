package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/MrWong99/rpgnotes/internal/atomicfile"
)

// ArchivePath returns where the chat log of session n is archived.
func ArchivePath(dir string, n int) string {
	return filepath.Join(dir, "session"+strconv.Itoa(n)+".json")
}

// ArchiveChatLog stores a pretty-printed copy of info.ChatLog in dir. It
// does nothing when the session has no chat log or the archive already
// exists, and reports whether a file was written.
func ArchiveChatLog(info Info, dir string) (string, bool, error) {
	if info.ChatLog == "" {
		return "", false, nil
	}
	dest := ArchivePath(dir, info.Number)
	exists, err := atomicfile.Exists(dest)
	if err != nil {
		return dest, false, fmt.Errorf("session: stat %q: %w", dest, err)
	}
	if exists {
		return dest, false, nil
	}

	raw, err := os.ReadFile(info.ChatLog)
	if err != nil {
		return dest, false, fmt.Errorf("session: read chat log: %w", err)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, raw, "", "  "); err != nil {
		return dest, false, fmt.Errorf("session: chat log %q is not JSON: %w", info.ChatLog, err)
	}
	pretty.WriteByte('\n')
	if err := atomicfile.WriteFile(dest, pretty.Bytes(), 0o644); err != nil {
		return dest, false, fmt.Errorf("session: %w", err)
	}
	return dest, true, nil
}
