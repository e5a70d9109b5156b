package importer

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"net/mail"
	"strings"
	"time"

	"github.com/ziadkadry99/mailmatch/internal/emailstore"
)

// ParsedEmail is one message lifted out of an mbox or eml file. InReplyTo
// carries the raw header so threading can be resolved after all messages in
// a batch are stored.
type ParsedEmail struct {
	Email     emailstore.Email
	InReplyTo string
}

// ParseMessage reads a single RFC 5322 message. Messages without a
// Message-ID get a synthetic one derived from sender, subject and date so
// re-imports stay idempotent.
func ParseMessage(r io.Reader) (*ParsedEmail, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("reading message: %w", err)
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("reading message body: %w", err)
	}

	subject := msg.Header.Get("Subject")
	sender := msg.Header.Get("From")
	received := time.Now().UTC()
	if date, err := msg.Header.Date(); err == nil {
		received = date.UTC()
	}

	messageID := strings.Trim(msg.Header.Get("Message-ID"), " <>")
	if messageID == "" {
		messageID = syntheticMessageID(sender, subject, received)
	}

	return &ParsedEmail{
		Email: emailstore.Email{
			MessageID:    messageID,
			Subject:      subject,
			Sender:       sender,
			Recipient:    msg.Header.Get("To"),
			Content:      strings.TrimSpace(string(body)),
			ReceivedDate: received,
		},
		InReplyTo: strings.Trim(msg.Header.Get("In-Reply-To"), " <>"),
	}, nil
}

// ParseMbox splits an mbox file into messages. A new message starts at a
// "From " separator line in column zero; ">From " escapes inside bodies are
// unescaped.
func ParseMbox(r io.Reader) ([]*ParsedEmail, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	var emails []*ParsedEmail
	var current strings.Builder
	flush := func() error {
		if current.Len() == 0 {
			return nil
		}
		parsed, err := ParseMessage(strings.NewReader(current.String()))
		if err != nil {
			return err
		}
		emails = append(emails, parsed)
		current.Reset()
		return nil
	}

	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "From ") {
			if err := flush(); err != nil {
				return nil, err
			}
			continue
		}
		if strings.HasPrefix(line, ">From ") {
			line = line[1:]
		}
		current.WriteString(line)
		current.WriteString("\n")
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scanning mbox: %w", err)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return emails, nil
}

func syntheticMessageID(sender, subject string, received time.Time) string {
	sum := md5.Sum([]byte(sender + "|" + subject + "|" + received.Format(time.RFC3339)))
	return hex.EncodeToString(sum[:]) + "@mailmatch.generated"
}
