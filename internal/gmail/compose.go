package gmail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/emersion/go-message/mail"
)

// MaxAttachmentSize is the largest attachment Gmail accepts (25 MiB).
const MaxAttachmentSize = 25 * 1024 * 1024

// ErrAttachmentTooLarge is returned when the attachment exceeds MaxAttachmentSize.
var ErrAttachmentTooLarge = errors.New("attachment exceeds the 25 MiB limit")

const octetStream = "application/octet-stream"

// compressedExtensions mark content encodings rather than content types;
// such files are sent as opaque binary.
var compressedExtensions = map[string]bool{
	".gz":  true,
	".bz2": true,
	".xz":  true,
	".br":  true,
	".z":   true,
}

// OutgoingMessage describes a message to send.
type OutgoingMessage struct {
	// From may be empty.
	From    string
	To      string
	Subject string
	HTML    string
	Plain   string

	// AttachmentPath optionally names a file to attach.
	AttachmentPath string

	// Date defaults to the current time.
	Date time.Time
}

// BuildMessage renders m as an RFC 5322 message. Without an attachment the
// body is multipart/alternative with a plain and an HTML part; with one it is
// multipart/mixed holding that alternative part followed by the attachment.
func BuildMessage(m OutgoingMessage) ([]byte, error) {
	h, err := messageHeader(m)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if m.AttachmentPath == "" {
		iw, err := mail.CreateInlineWriter(&buf, h)
		if err != nil {
			return nil, fmt.Errorf("failed to create message: %w", err)
		}
		if err := writeAlternatives(iw, m); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	}

	att, err := loadAttachment(m.AttachmentPath)
	if err != nil {
		return nil, err
	}

	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	iw, err := mw.CreateInline()
	if err != nil {
		return nil, fmt.Errorf("failed to create message body: %w", err)
	}
	if err := writeAlternatives(iw, m); err != nil {
		return nil, err
	}

	var ah mail.AttachmentHeader
	ah.SetContentType(att.ContentType, nil)
	ah.SetFilename(att.Filename)
	aw, err := mw.CreateAttachment(ah)
	if err != nil {
		return nil, fmt.Errorf("failed to create attachment part: %w", err)
	}
	if _, err := aw.Write(att.Content); err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}
	if err := aw.Close(); err != nil {
		return nil, fmt.Errorf("failed to write attachment: %w", err)
	}

	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish message: %w", err)
	}
	return buf.Bytes(), nil
}

func messageHeader(m OutgoingMessage) (mail.Header, error) {
	var h mail.Header

	if strings.TrimSpace(m.To) == "" {
		return h, errors.New("no recipient given")
	}
	to, err := mail.ParseAddressList(m.To)
	if err != nil {
		return h, fmt.Errorf("invalid recipient %q: %w", m.To, err)
	}

	date := m.Date
	if date.IsZero() {
		date = time.Now()
	}

	h.SetDate(date)
	// Gmail fills in the authenticated user when From is missing.
	if m.From != "" {
		from, err := mail.ParseAddress(m.From)
		if err != nil {
			return h, fmt.Errorf("invalid sender %q: %w", m.From, err)
		}
		h.SetAddressList("From", []*mail.Address{from})
	}
	h.SetAddressList("To", to)
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return h, fmt.Errorf("failed to generate Message-ID: %w", err)
	}
	return h, nil
}

func writeAlternatives(iw *mail.InlineWriter, m OutgoingMessage) error {
	if err := writeTextPart(iw, "text/plain", m.Plain); err != nil {
		return err
	}
	if err := writeTextPart(iw, "text/html", m.HTML); err != nil {
		return err
	}
	if err := iw.Close(); err != nil {
		return fmt.Errorf("failed to finish message body: %w", err)
	}
	return nil
}

func writeTextPart(iw *mail.InlineWriter, contentType, body string) error {
	var h mail.InlineHeader
	h.SetContentType(contentType, map[string]string{"charset": "utf-8"})

	w, err := iw.CreatePart(h)
	if err != nil {
		return fmt.Errorf("failed to create %s part: %w", contentType, err)
	}
	if _, err := io.WriteString(w, body); err != nil {
		return fmt.Errorf("failed to write %s part: %w", contentType, err)
	}
	return w.Close()
}

// loadAttachment reads the file at path and infers its content type.
func loadAttachment(path string) (*Attachment, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("attachment %s is a directory", path)
	}
	if info.Size() > MaxAttachmentSize {
		return nil, fmt.Errorf("%w: %s is %d bytes", ErrAttachmentTooLarge, path, info.Size())
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read attachment: %w", err)
	}

	return &Attachment{
		Filename:    filepath.Base(path),
		ContentType: ContentTypeFor(path),
		Content:     content,
	}, nil
}

// ContentTypeFor infers the media type of a file from its extension.
// Unknown extensions and compressed files yield application/octet-stream.
func ContentTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" || compressedExtensions[ext] {
		return octetStream
	}

	mediaType, _, err := mime.ParseMediaType(mime.TypeByExtension(ext))
	if err != nil || !strings.Contains(mediaType, "/") {
		return octetStream
	}
	return mediaType
}
