package mailbox

import (
	"bytes"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"strconv"
	"strings"
	"time"

	"github.com/recall-labs/recall-cli/internal/core/domain"
)

// parseEmlx parses a single emlx file into a RawEmail.
//
// The emlx layout is a line holding a byte count, a newline, exactly that
// many bytes of RFC822 message, then a property-list trailer we ignore.
// Returns false for any malformed file or a message without usable text.
func parseEmlx(path string, raw []byte) (domain.RawEmail, bool) {
	newlineIdx := bytes.IndexByte(raw, '\n')
	if newlineIdx < 0 {
		return domain.RawEmail{}, false
	}

	byteCount, err := strconv.Atoi(strings.TrimSpace(string(raw[:newlineIdx])))
	if err != nil || byteCount < 0 {
		return domain.RawEmail{}, false
	}

	start := newlineIdx + 1
	end := start + byteCount
	if end > len(raw) {
		end = len(raw)
	}

	msg, err := mail.ReadMessage(bytes.NewReader(raw[start:end]))
	if err != nil {
		return domain.RawEmail{}, false
	}

	body := extractBody(msg)
	body = strings.TrimSpace(body)
	if body == "" {
		return domain.RawEmail{}, false
	}

	date, err := mail.ParseDate(msg.Header.Get("Date"))
	if err != nil {
		date = time.Now().UTC()
	}

	return domain.RawEmail{
		Filepath:   path,
		Subject:    decodeHeader(msg.Header.Get("Subject")),
		Sender:     decodeHeader(msg.Header.Get("From")),
		Recipients: decodeHeader(msg.Header.Get("To")),
		Date:       date.UTC(),
		Body:       body,
		MessageID:  msg.Header.Get("Message-ID"),
	}, true
}

// decodeHeader decodes RFC 2047 encoded headers.
func decodeHeader(header string) string {
	if header == "" {
		return ""
	}
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(header)
	if err != nil {
		return header // Return original if decoding fails
	}
	return decoded
}

// extractBody extracts plain text from a mail message, preferring
// text/plain parts and falling back to stripped text/html.
func extractBody(msg *mail.Message) string {
	contentType := msg.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "text/plain"
	}

	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		body, readErr := io.ReadAll(msg.Body)
		if readErr != nil {
			return ""
		}
		return string(body)
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		return extractMultipartBody(msg.Body, params["boundary"])
	}

	body, err := io.ReadAll(msg.Body)
	if err != nil {
		return ""
	}

	switch mediaType {
	case "text/plain":
		return string(body)
	case "text/html":
		return stripHTML(string(body))
	default:
		return ""
	}
}

// extractMultipartBody collects text parts from a multipart message.
// Plain text parts win over HTML; nested multiparts are handled
// recursively.
func extractMultipartBody(r io.Reader, boundary string) string {
	if boundary == "" {
		return ""
	}

	mr := multipart.NewReader(r, boundary)
	var textParts []string
	var htmlParts []string

	for {
		part, err := mr.NextPart()
		if err != nil {
			break // io.EOF or malformed part; use what we have
		}

		partType := part.Header.Get("Content-Type")
		mediaType, params, parseErr := mime.ParseMediaType(partType)
		if parseErr != nil {
			mediaType = "application/octet-stream"
		}

		content, readErr := io.ReadAll(part)
		part.Close()
		if readErr != nil {
			continue
		}

		switch {
		case mediaType == "text/plain":
			textParts = append(textParts, string(content))
		case mediaType == "text/html":
			htmlParts = append(htmlParts, stripHTML(string(content)))
		case strings.HasPrefix(mediaType, "multipart/"):
			nested := extractMultipartBody(bytes.NewReader(content), params["boundary"])
			if nested != "" {
				textParts = append(textParts, nested)
			}
		}
	}

	if len(textParts) > 0 {
		return strings.Join(textParts, "\n")
	}
	return strings.Join(htmlParts, "\n")
}
