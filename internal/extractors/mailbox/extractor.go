// Package mailbox streams parsed mail messages from an Apple Mail style
// archive: a directory tree of .mbox folders holding .emlx files. Folders
// are filtered by name before any file is read, and files are parsed one
// at a time.
package mailbox

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
	"github.com/recall-labs/recall-cli/internal/core/ports/driven"
	"github.com/recall-labs/recall-cli/internal/logger"
)

// Ensure Extractor implements the interface.
var _ driven.MailExtractor = (*Extractor)(nil)

// DefaultMailDir is the standard mail archive location.
const DefaultMailDir = "~/Library/Mail/V10"

// allowedFolders are substrings a folder name must contain to be read
// (case-insensitive).
var allowedFolders = []string{"inbox", "sent", "archive", "all mail"}

// blockedFolders always exclude a folder, taking precedence over the
// allow list.
var blockedFolders = []string{"spam", "junk", "trash", "drafts", "deleted"}

// mtimeSlack widens the mtime prefilter window. The prefilter may only
// produce false positives: a file is skipped unscanned only when its
// mtime is this far before the cutoff, so nothing the parsed-date filter
// would keep is ever dropped.
const mtimeSlack = 24 * time.Hour

// Extractor reads an emlx mail archive.
type Extractor struct {
	mailDir string
}

// New creates an extractor for the archive at dir.
// An empty dir uses the default location.
func New(dir string) *Extractor {
	if dir == "" {
		dir = DefaultMailDir
	}
	if home, err := os.UserHomeDir(); err == nil && len(dir) > 1 && dir[:2] == "~/" {
		dir = filepath.Join(home, dir[2:])
	}
	return &Extractor{mailDir: dir}
}

// Extract streams parsed mail, optionally bounded by an inclusive since
// cutoff. Unreadable and text-less messages are skipped silently; the
// mail channel closes on exhaustion.
func (e *Extractor) Extract(ctx context.Context, since *time.Time) (<-chan domain.RawEmail, <-chan error) {
	out := make(chan domain.RawEmail)
	errs := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errs)

		if _, err := os.Stat(e.mailDir); err != nil {
			logger.Warn("mail directory does not exist: %s", e.mailDir)
			return
		}

		mboxes := findAllowedMailboxes(e.mailDir)
		logger.Info("found %d allowed mailboxes", len(mboxes))

		for _, mbox := range mboxes {
			if !e.walkMailbox(ctx, mbox, since, out) {
				return
			}
		}
	}()

	return out, errs
}

// walkMailbox streams every usable message under one .mbox directory.
// Returns false when the context was cancelled.
func (e *Extractor) walkMailbox(ctx context.Context, mbox string, since *time.Time, out chan<- domain.RawEmail) bool {
	cancelled := false

	_ = filepath.WalkDir(mbox, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".emlx") {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if ctx.Err() != nil {
			cancelled = true
			return fs.SkipAll
		}

		// Cheap mtime prefilter before the expensive parse. Only an
		// optimisation: the window is widened by mtimeSlack so the
		// parsed-date filter below remains the source of truth.
		if since != nil {
			info, statErr := d.Info()
			if statErr != nil {
				return nil
			}
			if info.ModTime().Before(since.Add(-mtimeSlack)) {
				return nil
			}
		}

		raw, readErr := os.ReadFile(path)
		if readErr != nil {
			logger.Warn("cannot read %s: %v", path, readErr)
			return nil
		}

		em, ok := parseEmlx(path, raw)
		if !ok {
			return nil
		}
		if since != nil && em.Date.Before(*since) {
			return nil
		}

		select {
		case out <- em:
		case <-ctx.Done():
			cancelled = true
			return fs.SkipAll
		}
		return nil
	})

	return !cancelled
}

// findAllowedMailboxes returns every .mbox directory whose name passes
// the folder filter.
func findAllowedMailboxes(mailDir string) []string {
	var allowed []string
	_ = filepath.WalkDir(mailDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if d.IsDir() && strings.HasSuffix(d.Name(), ".mbox") && allowedFolder(d.Name()) {
			allowed = append(allowed, path)
		}
		return nil
	})
	return allowed
}

// allowedFolder checks a .mbox folder name against the filters.
// The block list wins over the allow list.
func allowedFolder(name string) bool {
	lower := strings.ToLower(name)
	for _, blocked := range blockedFolders {
		if strings.Contains(lower, blocked) {
			return false
		}
	}
	for _, allowed := range allowedFolders {
		if strings.Contains(lower, allowed) {
			return true
		}
	}
	return false
}
