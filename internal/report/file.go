package report

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// FileName builds a display file name such as "PW_B1_notes.txt". It is only
// the name the user sees; uniqueness comes from the directory WriteTemp picks.
func FileName(parts ...string) string {
	clean := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(unsafeName.ReplaceAllString(p, "_"), "_.")
		if p != "" {
			clean = append(clean, p)
		}
	}
	if len(clean) == 0 {
		return "report.txt"
	}
	return strings.Join(clean, "_") + ".txt"
}

// WriteTemp writes data to <dir>/<sessionID>-<random>/<name>. The returned
// cleanup removes the whole directory and is safe to call more than once.
func WriteTemp(dir, sessionID, name string, data []byte) (string, func(), error) {
	if dir == "" {
		dir = os.TempDir()
	}
	if sessionID == "" {
		sessionID = "session"
	}

	sub := filepath.Join(dir, "batchtxt-"+sessionID+"-"+uuid.NewString())
	if err := os.MkdirAll(sub, 0o700); err != nil {
		return "", func() {}, goerr.Wrap(err, "failed to create report directory", goerr.V("dir", sub))
	}
	cleanup := func() { _ = os.RemoveAll(sub) }

	path := filepath.Join(sub, filepath.Base(name))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		cleanup()
		return "", func() {}, goerr.Wrap(err, "failed to write report", goerr.V("path", path))
	}
	return path, cleanup, nil
}
