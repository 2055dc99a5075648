package mailbox

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// writeEmlx writes a message in emlx layout: byte count line, RFC822
// content, plist trailer.
func writeEmlx(t *testing.T, dir, name, rfc822 string) string {
	t.Helper()
	content := fmt.Sprintf("%d\n%s<?xml plist trailer?>", len(rfc822), rfc822)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

const plainMessage = "From: alice@example.com\r\n" +
	"To: me@example.com\r\n" +
	"Date: Mon, 04 Mar 2024 10:30:00 +0000\r\n" +
	"Subject: Lunch\r\n" +
	"Message-ID: <m1@example.com>\r\n" +
	"\r\n" +
	"Tacos at noon?\r\n"

func extractAll(t *testing.T, dir string, since *time.Time) []domain.RawEmail {
	t.Helper()
	emails, errs := New(dir).Extract(context.Background(), since)
	var out []domain.RawEmail
	for em := range emails {
		out = append(out, em)
	}
	require.NoError(t, <-errs)
	return out
}

func TestExtractParsesEmlx(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "INBOX.mbox")
	require.NoError(t, os.MkdirAll(inbox, 0755))
	writeEmlx(t, inbox, "1.emlx", plainMessage)

	emails := extractAll(t, root, nil)
	require.Len(t, emails, 1)

	em := emails[0]
	assert.Equal(t, "alice@example.com", em.Sender)
	assert.Equal(t, "me@example.com", em.Recipients)
	assert.Equal(t, "Lunch", em.Subject)
	assert.Equal(t, "Tacos at noon?", em.Body)
	assert.Equal(t, "<m1@example.com>", em.MessageID)
	assert.Equal(t, time.Date(2024, 3, 4, 10, 30, 0, 0, time.UTC), em.Date)
}

func TestExtractFolderFilter(t *testing.T) {
	root := t.TempDir()
	for _, folder := range []string{"INBOX.mbox", "Sent Messages.mbox", "Junk.mbox", "Newsletters.mbox", "Archive Junk.mbox"} {
		dir := filepath.Join(root, folder)
		require.NoError(t, os.MkdirAll(dir, 0755))
		writeEmlx(t, dir, "1.emlx", plainMessage)
	}

	// INBOX and Sent pass; Junk is blocked; Newsletters matches nothing;
	// "Archive Junk" is blocked even though it matches the allow list.
	emails := extractAll(t, root, nil)
	assert.Len(t, emails, 2)
}

func TestExtractSkipsMessagesWithoutText(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "INBOX.mbox")
	require.NoError(t, os.MkdirAll(inbox, 0755))

	empty := "From: a@b.c\r\nDate: Mon, 04 Mar 2024 10:30:00 +0000\r\n\r\n   \r\n"
	writeEmlx(t, inbox, "1.emlx", empty)
	writeEmlx(t, inbox, "2.emlx", plainMessage)

	emails := extractAll(t, root, nil)
	require.Len(t, emails, 1)
	assert.Equal(t, "Lunch", emails[0].Subject)
}

func TestExtractSkipsMalformedFiles(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "INBOX.mbox")
	require.NoError(t, os.MkdirAll(inbox, 0755))

	require.NoError(t, os.WriteFile(filepath.Join(inbox, "bad.emlx"), []byte("not a byte count"), 0600))
	writeEmlx(t, inbox, "good.emlx", plainMessage)

	emails := extractAll(t, root, nil)
	assert.Len(t, emails, 1)
}

func TestExtractSinceUsesParsedDate(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "INBOX.mbox")
	require.NoError(t, os.MkdirAll(inbox, 0755))
	writeEmlx(t, inbox, "1.emlx", plainMessage)

	// Message dated 2024-03-04; cutoff after it excludes, before includes.
	after := time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
	assert.Empty(t, extractAll(t, root, &after))

	before := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	assert.Len(t, extractAll(t, root, &before), 1)
}

func TestExtractHTMLFallback(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "Archive.mbox")
	require.NoError(t, os.MkdirAll(inbox, 0755))

	htmlMsg := "From: shop@example.com\r\n" +
		"Date: Mon, 04 Mar 2024 10:30:00 +0000\r\n" +
		"Subject: Receipt\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<html><body><p>Order <b>confirmed</b></p><p>Total: $5</p></body></html>\r\n"
	writeEmlx(t, inbox, "1.emlx", htmlMsg)

	emails := extractAll(t, root, nil)
	require.Len(t, emails, 1)
	assert.Equal(t, "Order confirmed\nTotal: $5", emails[0].Body)
}

func TestExtractMultipartPrefersPlainText(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "INBOX.mbox")
	require.NoError(t, os.MkdirAll(inbox, 0755))

	multi := "From: a@b.c\r\n" +
		"Date: Mon, 04 Mar 2024 10:30:00 +0000\r\n" +
		"Subject: Multi\r\n" +
		"Content-Type: multipart/alternative; boundary=XYZ\r\n" +
		"\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/plain\r\n" +
		"\r\n" +
		"the plain part\r\n" +
		"--XYZ\r\n" +
		"Content-Type: text/html\r\n" +
		"\r\n" +
		"<p>the html part</p>\r\n" +
		"--XYZ--\r\n"
	writeEmlx(t, inbox, "1.emlx", multi)

	emails := extractAll(t, root, nil)
	require.Len(t, emails, 1)
	assert.Equal(t, "the plain part", emails[0].Body)
}

func TestExtractMissingDirectoryYieldsNothing(t *testing.T) {
	emails := extractAll(t, filepath.Join(t.TempDir(), "nope"), nil)
	assert.Empty(t, emails)
}

func TestAllowedFolder(t *testing.T) {
	assert.True(t, allowedFolder("INBOX.mbox"))
	assert.True(t, allowedFolder("All Mail.mbox"))
	assert.False(t, allowedFolder("Deleted Messages.mbox"))
	assert.False(t, allowedFolder("Spam Inbox.mbox")) // block wins
	assert.False(t, allowedFolder("Random.mbox"))
}
