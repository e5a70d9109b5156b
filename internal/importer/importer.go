package importer

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/ziadkadry99/mailmatch/internal/emailstore"
	"github.com/ziadkadry99/mailmatch/internal/progress"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

// Stats summarizes one import run.
type Stats struct {
	Files    int
	Imported int
	Skipped  int
	Failed   int
}

// Importer loads mbox and eml files into the email store and vector index.
type Importer struct {
	store    *emailstore.Store
	index    vectordb.VectorStore
	reporter progress.Reporter
}

// New creates an Importer. reporter may be nil to disable progress output.
func New(store *emailstore.Store, index vectordb.VectorStore, reporter progress.Reporter) *Importer {
	return &Importer{store: store, index: index, reporter: reporter}
}

// ImportGlob imports every mbox and eml file matching the pattern. Patterns
// support ** for recursive matching. Duplicate message ids and unparseable
// files are skipped, not fatal.
func (im *Importer) ImportGlob(ctx context.Context, pattern string) (*Stats, error) {
	paths, err := doublestar.FilepathGlob(pattern)
	if err != nil {
		return nil, fmt.Errorf("expanding glob %q: %w", pattern, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files match %q", pattern)
	}

	var parsed []*ParsedEmail
	stats := &Stats{}
	for _, path := range paths {
		emails, err := parseFile(path)
		if err != nil {
			log.Printf("parsing %s: %v", path, err)
			stats.Failed++
			continue
		}
		stats.Files++
		parsed = append(parsed, emails...)
	}

	if im.reporter != nil {
		im.reporter.Start(len(parsed), "Importing emails")
		defer im.reporter.Finish()
	}

	for i, p := range parsed {
		if err := im.importOne(ctx, p, stats); err != nil {
			return nil, err
		}
		if im.reporter != nil {
			im.reporter.Update(i+1, truncate(p.Email.Subject, 40))
		}
	}

	im.resolveParents(ctx, parsed)
	return stats, nil
}

// importOne stores and indexes one message, skipping known message ids.
func (im *Importer) importOne(ctx context.Context, p *ParsedEmail, stats *Stats) error {
	existing, err := im.store.GetByMessageID(ctx, p.Email.MessageID)
	if err != nil {
		return err
	}
	if existing != nil {
		stats.Skipped++
		return nil
	}

	email := p.Email
	created, err := im.store.Create(ctx, &email)
	if err != nil {
		return err
	}
	if err := emailstore.IndexEmail(ctx, im.index, im.store, created); err != nil {
		// The email stays unprocessed; a later reindex picks it up.
		log.Printf("indexing imported email %s: %v", created.ID, err)
	}
	stats.Imported++
	return nil
}

// resolveParents links replies to their parents once the whole batch is
// stored, since mbox files carry no ordering guarantee.
func (im *Importer) resolveParents(ctx context.Context, parsed []*ParsedEmail) {
	for _, p := range parsed {
		if p.InReplyTo == "" {
			continue
		}
		child, err := im.store.GetByMessageID(ctx, p.Email.MessageID)
		if err != nil || child == nil || child.ParentID != "" {
			continue
		}
		parent, err := im.store.GetByMessageID(ctx, p.InReplyTo)
		if err != nil || parent == nil {
			continue
		}
		if err := im.store.SetParentID(ctx, child.ID, parent.ID); err != nil {
			log.Printf("linking reply %s to %s: %v", child.ID, parent.ID, err)
		}
	}
}

func parseFile(path string) ([]*ParsedEmail, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".mbox") {
		return ParseMbox(f)
	}
	parsed, err := ParseMessage(f)
	if err != nil {
		return nil, err
	}
	return []*ParsedEmail{parsed}, nil
}

// truncate shortens s to at most n runes, never splitting a multi-byte rune.
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
