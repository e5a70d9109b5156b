package importer

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ziadkadry99/mailmatch/internal/db"
	"github.com/ziadkadry99/mailmatch/internal/emailstore"
	"github.com/ziadkadry99/mailmatch/internal/vectordb"
)

const sampleEML = `From: alice@example.com
To: bob@example.com
Subject: Lunch plans
Message-ID: <lunch-1@example.com>
Date: Mon, 03 Mar 2025 12:00:00 +0000

Pizza at noon?
`

const sampleMbox = `From alice@example.com Mon Mar  3 12:00:00 2025
From: alice@example.com
To: bob@example.com
Subject: Lunch plans
Message-ID: <lunch-1@example.com>
Date: Mon, 03 Mar 2025 12:00:00 +0000

Pizza at noon?
>From my side, anything works.
From bob@example.com Mon Mar  3 12:05:00 2025
From: bob@example.com
To: alice@example.com
Subject: Re: Lunch plans
Message-ID: <lunch-2@example.com>
In-Reply-To: <lunch-1@example.com>
Date: Mon, 03 Mar 2025 12:05:00 +0000

Sounds good.
`

// nullIndex satisfies VectorStore without doing anything; import tests care
// about the relational side.
type nullIndex struct{ upserts int }

func (n *nullIndex) Upsert(_ context.Context, docs []vectordb.Document) error {
	n.upserts += len(docs)
	return nil
}

func (n *nullIndex) Query(context.Context, string, int, *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	return nil, nil
}

func (n *nullIndex) QueryEmbedding(context.Context, []float32, int, *vectordb.SearchFilter) ([]vectordb.Hit, error) {
	return nil, nil
}

func (n *nullIndex) Delete(context.Context, string) error  { return nil }
func (n *nullIndex) Reset(context.Context) error           { return nil }
func (n *nullIndex) Persist(context.Context, string) error { return nil }
func (n *nullIndex) Load(context.Context, string) error    { return nil }
func (n *nullIndex) Count() int                            { return 0 }

func newTestImporter(t *testing.T) (*Importer, *emailstore.Store, *nullIndex) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := emailstore.NewStore(database)
	index := &nullIndex{}
	return New(store, index, nil), store, index
}

func TestParseMessage(t *testing.T) {
	parsed, err := ParseMessage(strings.NewReader(sampleEML))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	e := parsed.Email
	if e.MessageID != "lunch-1@example.com" {
		t.Errorf("unexpected message id %q", e.MessageID)
	}
	if e.Subject != "Lunch plans" || e.Sender != "alice@example.com" {
		t.Errorf("unexpected headers: %+v", e)
	}
	if e.Content != "Pizza at noon?" {
		t.Errorf("unexpected body %q", e.Content)
	}
	if e.ReceivedDate.Year() != 2025 {
		t.Errorf("unexpected date %v", e.ReceivedDate)
	}
}

func TestParseMessageSynthesizesID(t *testing.T) {
	raw := "From: a@x\nSubject: no id here\nDate: Mon, 03 Mar 2025 12:00:00 +0000\n\nbody\n"
	first, err := ParseMessage(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("ParseMessage: %v", err)
	}
	if first.Email.MessageID == "" {
		t.Fatal("expected synthetic message id")
	}
	second, _ := ParseMessage(strings.NewReader(raw))
	if first.Email.MessageID != second.Email.MessageID {
		t.Error("synthetic ids must be stable across parses")
	}
}

func TestParseMbox(t *testing.T) {
	emails, err := ParseMbox(strings.NewReader(sampleMbox))
	if err != nil {
		t.Fatalf("ParseMbox: %v", err)
	}
	if len(emails) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(emails))
	}
	if !strings.Contains(emails[0].Email.Content, "From my side") {
		t.Errorf("expected >From unescaped, got %q", emails[0].Email.Content)
	}
	if emails[1].InReplyTo != "lunch-1@example.com" {
		t.Errorf("unexpected in-reply-to %q", emails[1].InReplyTo)
	}
}

func TestImportGlob(t *testing.T) {
	im, store, index := newTestImporter(t)
	ctx := context.Background()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "inbox.mbox"), []byte(sampleMbox), 0o644); err != nil {
		t.Fatalf("writing mbox: %v", err)
	}

	stats, err := im.ImportGlob(ctx, filepath.Join(dir, "**", "*.mbox"))
	if err != nil {
		t.Fatalf("ImportGlob: %v", err)
	}
	if stats.Files != 1 || stats.Imported != 2 || stats.Skipped != 0 {
		t.Fatalf("unexpected stats: %+v", stats)
	}
	if index.upserts != 2 {
		t.Errorf("expected 2 index writes, got %d", index.upserts)
	}

	// Replies are linked after the batch lands.
	reply, err := store.GetByMessageID(ctx, "lunch-2@example.com")
	if err != nil || reply == nil {
		t.Fatalf("GetByMessageID: %v, %v", reply, err)
	}
	parent, _ := store.GetByMessageID(ctx, "lunch-1@example.com")
	if reply.ParentID != parent.ID {
		t.Errorf("expected reply linked to parent, got %q", reply.ParentID)
	}

	// Re-importing the same file skips every message.
	stats, err = im.ImportGlob(ctx, filepath.Join(dir, "*.mbox"))
	if err != nil {
		t.Fatalf("ImportGlob rerun: %v", err)
	}
	if stats.Imported != 0 || stats.Skipped != 2 {
		t.Fatalf("expected idempotent rerun, got %+v", stats)
	}
}

func TestTruncateRespectsRuneBoundaries(t *testing.T) {
	if got := truncate("héllo wörld", 4); got != "héll" {
		t.Errorf("expected %q, got %q", "héll", got)
	}
	if got := truncate("short", 40); got != "short" {
		t.Errorf("expected %q unchanged, got %q", "short", got)
	}
	// The truncated prefix must stay valid UTF-8 even when the cut lands
	// on a multi-byte rune.
	if got := truncate("日本語のメール", 3); got != "日本語" {
		t.Errorf("expected %q, got %q", "日本語", got)
	}
}

func TestImportGlobNoMatches(t *testing.T) {
	im, _, _ := newTestImporter(t)
	if _, err := im.ImportGlob(context.Background(), filepath.Join(t.TempDir(), "*.mbox")); err == nil {
		t.Error("expected error for empty glob")
	}
}
