package ingest

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/retain-srs/retain/internal/domain"
	"github.com/retain-srs/retain/internal/gitsource"
	"github.com/retain-srs/retain/internal/storage"
)

// Importer loads parsed cards into an owner's deck. Cards are identified by
// their content hash: re-importing the same source only adds what is new and
// never touches the retention state of cards already under review.
type Importer struct {
	db       *storage.DB
	reposDir string
	now      func() time.Time
}

// NewImporter creates an importer. reposDir is where git sources are kept
// checked out. A nil clock means time.Now.
func NewImporter(db *storage.DB, reposDir string, now func() time.Time) *Importer {
	if now == nil {
		now = time.Now
	}
	return &Importer{db: db, reposDir: reposDir, now: now}
}

// Summary reports the outcome of one import run.
type Summary struct {
	Parsed   int      `json:"parsed"`
	Imported int      `json:"imported"`
	Skipped  int      `json:"skipped"`
	Errors   []string `json:"errors,omitempty"`
}

// ImportDir walks dir for .md files and imports every card found into the
// owner's deck under the given scope. Parse failures for individual files are
// collected in the summary rather than aborting the run.
func (im *Importer) ImportDir(ctx context.Context, ownerID, scope, dir string) (*Summary, error) {
	sum := &Summary{}

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(strings.ToLower(d.Name()), ".md") {
			return nil
		}
		cards, parseErr := ParseFile(path)
		if parseErr != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("parsing %s: %v", path, parseErr))
			return nil
		}
		for _, pc := range cards {
			sum.Parsed++
			if err := im.importCard(ctx, ownerID, scope, pc, sum); err != nil {
				return err
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("failed to walk %s: %w", dir, walkErr)
	}

	slog.Info("deck import complete",
		"owner", ownerID,
		"scope", scope,
		"parsed", sum.Parsed,
		"imported", sum.Imported,
		"skipped", sum.Skipped,
		"errors", len(sum.Errors),
	)
	return sum, nil
}

// ImportGit clones or updates the repository at repoURL under the importer's
// repos directory, then imports its markdown decks.
func (im *Importer) ImportGit(ctx context.Context, ownerID, scope, repoURL string) (*Summary, error) {
	localPath, err := repoLocalPath(im.reposDir, repoURL)
	if err != nil {
		return nil, err
	}
	if err := gitsource.Sync(ctx, repoURL, localPath); err != nil {
		return nil, err
	}
	return im.ImportDir(ctx, ownerID, scope, localPath)
}

func (im *Importer) importCard(ctx context.Context, ownerID, scope string, pc ParsedCard, sum *Summary) error {
	hash := domain.ContentHash(pc.Question, pc.Answer, pc.Context)
	existing, err := im.db.FindCardIDByHash(ctx, ownerID, hash)
	if err != nil {
		return err
	}
	if existing != "" {
		sum.Skipped++
		return nil
	}

	now := im.now()
	card := &domain.Flashcard{
		ID:        im.db.NewID(),
		OwnerID:   ownerID,
		Scope:     scope,
		Question:  pc.Question,
		Answer:    pc.Answer,
		Context:   pc.Context,
		Hash:      hash,
		Retention: domain.NewRetentionState(now),
		CreatedAt: now,
	}
	if err := im.db.InsertCard(ctx, card); err != nil {
		return err
	}
	sum.Imported++
	return nil
}

// repoLocalPath maps a git URL to a stable checkout path under baseDir,
// e.g. https://host/user/deck.git -> baseDir/host/user/deck. SSH-style
// git@host:user/deck.git addresses are handled as well.
func repoLocalPath(baseDir, repoURL string) (string, error) {
	parsed, err := url.Parse(repoURL)
	if err == nil && (parsed.Scheme == "https" || parsed.Scheme == "http") {
		p := strings.TrimSuffix(parsed.Path, ".git")
		return filepath.Join(baseDir, parsed.Host, p), nil
	}

	if at := strings.Index(repoURL, "@"); at >= 0 {
		rest := repoURL[at+1:]
		if host, repoPath, ok := strings.Cut(rest, ":"); ok {
			return filepath.Join(baseDir, host, strings.TrimSuffix(repoPath, ".git")), nil
		}
	}
	return "", fmt.Errorf("could not parse git URL: %s", repoURL)
}
