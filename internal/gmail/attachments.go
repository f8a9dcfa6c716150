package gmail

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SanitizeFilename makes an attachment filename safe to use as a path
// component.
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "/", "_")
	filename = strings.ReplaceAll(filename, "\\", "_")
	filename = strings.ReplaceAll(filename, "..", "_")
	filename = strings.TrimSpace(filename)
	if filename == "" || filename == "." {
		return "attachment"
	}
	return filename
}

// SaveAttachment writes a to dir as <messageID>_<filename> and returns the
// path written.
func SaveAttachment(dir, messageID string, a Attachment) (string, error) {
	if len(a.Content) > MaxAttachmentSize {
		return "", fmt.Errorf("%w: %s", ErrAttachmentTooLarge, a.Filename)
	}
	if err := os.MkdirAll(dir, 0750); err != nil {
		return "", fmt.Errorf("failed to create attachments directory: %w", err)
	}

	path := filepath.Join(dir, SanitizeFilename(messageID)+"_"+SanitizeFilename(a.Filename))
	if err := os.WriteFile(path, a.Content, 0640); err != nil {
		return "", fmt.Errorf("failed to save attachment: %w", err)
	}
	return path, nil
}
