// Package mail reads RFC 822 messages and sends notification and reply mail
// over SMTP.
package mail

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"mime/quotedprintable"
	"net/mail"
	"regexp"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/google/uuid"
	"golang.org/x/text/encoding/htmlindex"

	"github.com/mikey/inbox-triage/internal/core"
)

const snippetChars = 200

var (
	whitespace = regexp.MustCompile(`\s+`)

	wordDecoder = &mime.WordDecoder{CharsetReader: charsetReader}
)

// ParseMessage reads a raw message into an Email. The body prefers
// text/plain parts and falls back to HTML converted to markdown.
func ParseMessage(r io.Reader) (*core.Email, error) {
	msg, err := mail.ReadMessage(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse email message: %w", err)
	}

	plain, html, err := extractText(msg.Header.Get("Content-Type"), msg.Header.Get("Content-Transfer-Encoding"), msg.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to extract text content: %w", err)
	}

	body := strings.TrimSpace(plain)
	if body == "" && html != "" {
		body, err = htmlToText(html)
		if err != nil {
			return nil, err
		}
	}

	receivedAt, err := msg.Header.Date()
	if err != nil {
		receivedAt = time.Now()
	}

	email := &core.Email{
		ID:         uuid.NewString(),
		MessageID:  strings.TrimSpace(msg.Header.Get("Message-Id")),
		ThreadID:   threadID(msg.Header),
		From:       decodeHeader(msg.Header.Get("From")),
		Subject:    decodeHeader(msg.Header.Get("Subject")),
		Body:       body,
		Snippet:    snippet(body),
		ReceivedAt: receivedAt.UTC(),
	}
	return email, nil
}

// extractText walks a MIME tree and returns the concatenated text/plain and
// text/html content. Attachments are skipped.
func extractText(contentType, encoding string, body io.Reader) (plain, html string, err error) {
	mediaType, params, parseErr := mime.ParseMediaType(contentType)
	if contentType == "" || parseErr != nil {
		mediaType, params = "text/plain", map[string]string{}
	}

	if strings.HasPrefix(mediaType, "multipart/") {
		boundary, ok := params["boundary"]
		if !ok {
			data, err := io.ReadAll(body)
			return string(data), "", err
		}
		return extractMultipart(multipart.NewReader(body, boundary))
	}

	if mediaType != "text/plain" && mediaType != "text/html" {
		return "", "", nil
	}

	reader := transferDecoder(encoding, body)
	if cs := strings.ToLower(params["charset"]); cs != "" && cs != "utf-8" && cs != "us-ascii" {
		if reader, err = charsetReader(cs, reader); err != nil {
			return "", "", err
		}
	}

	data, err := io.ReadAll(reader)
	if err != nil {
		return "", "", err
	}
	if mediaType == "text/html" {
		return "", string(data), nil
	}
	return string(data), "", nil
}

func extractMultipart(mr *multipart.Reader) (string, string, error) {
	var plain, html bytes.Buffer
	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			// keep what was read before a malformed part
			if plain.Len() > 0 || html.Len() > 0 {
				break
			}
			return "", "", err
		}

		if disposition, _, _ := mime.ParseMediaType(part.Header.Get("Content-Disposition")); disposition == "attachment" {
			continue
		}

		p, h, err := extractText(part.Header.Get("Content-Type"), part.Header.Get("Content-Transfer-Encoding"), part)
		if err != nil {
			continue
		}
		if p != "" {
			plain.WriteString(p)
			plain.WriteString("\n")
		}
		if h != "" {
			html.WriteString(h)
			html.WriteString("\n")
		}
	}
	return plain.String(), html.String(), nil
}

// transferDecoder undoes the content transfer encoding. multipart.Reader
// already strips quoted-printable from parts, leaving base64 to decode here.
func transferDecoder(encoding string, r io.Reader) io.Reader {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "base64":
		return base64.NewDecoder(base64.StdEncoding, r)
	case "quoted-printable":
		return quotedprintable.NewReader(r)
	default:
		return r
	}
}

func charsetReader(charset string, input io.Reader) (io.Reader, error) {
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unsupported charset %q: %w", charset, err)
	}
	return enc.NewDecoder().Reader(input), nil
}

func decodeHeader(value string) string {
	decoded, err := wordDecoder.DecodeHeader(value)
	if err != nil {
		return strings.TrimSpace(value)
	}
	return strings.TrimSpace(decoded)
}

func htmlToText(html string) (string, error) {
	converter := md.NewConverter("", true, nil)
	text, err := converter.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("failed to convert HTML body: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// threadID uses the root of the References chain, then In-Reply-To
func threadID(h mail.Header) string {
	if refs := strings.Fields(h.Get("References")); len(refs) > 0 {
		return refs[0]
	}
	return strings.TrimSpace(h.Get("In-Reply-To"))
}

func snippet(body string) string {
	s := strings.TrimSpace(whitespace.ReplaceAllString(body, " "))
	runes := []rune(s)
	if len(runes) <= snippetChars {
		return s
	}
	return string(runes[:snippetChars])
}
