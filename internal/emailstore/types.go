package emailstore

import (
	"crypto/md5"
	"encoding/hex"
	"strings"
	"time"
	"unicode"
)

// Email is one stored message.
type Email struct {
	ID              string    `json:"id"`
	MessageID       string    `json:"message_id"`
	Subject         string    `json:"subject"`
	Sender          string    `json:"sender"`
	Recipient       string    `json:"recipient"`
	Content         string    `json:"content"`
	HTMLContent     string    `json:"html_content,omitempty"`
	ReceivedDate    time.Time `json:"received_date"`
	ThreadID        string    `json:"thread_id"`
	EmbeddingID     string    `json:"embedding_id,omitempty"`
	ParentID        string    `json:"parent_id,omitempty"`
	ImportanceScore float64   `json:"importance_score"`
	IsProcessed     bool      `json:"is_processed"`
	Category        string    `json:"category,omitempty"`
}

// EmailThread groups emails sharing a canonical subject.
type EmailThread struct {
	ID               string    `json:"id"`
	ThreadID         string    `json:"thread_id"`
	Subject          string    `json:"subject"`
	LastUpdated      time.Time `json:"last_updated"`
	ParticipantCount int       `json:"participant_count"`
	EmailCount       int       `json:"email_count"`
}

// ThreadKey derives the canonical thread identifier from a subject line.
// The subject is lowercased and stripped to letters and digits before
// hashing, so "Hello, World!" and "hello world" land in the same thread.
func ThreadKey(subject string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(subject) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}
