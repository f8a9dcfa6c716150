package gmail

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "invoice.pdf", want: "invoice.pdf"},
		{in: "../../etc/passwd", want: "____etc_passwd"},
		{in: `C:\temp\x.txt`, want: "C:_temp_x.txt"},
		{in: "  ", want: "attachment"},
		{in: "", want: "attachment"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, SanitizeFilename(tt.in), "input %q", tt.in)
	}
}

func TestSaveAttachment(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "attachments")

	path, err := SaveAttachment(dir, "m1", Attachment{Filename: "../bill.pdf", Content: []byte("%PDF")})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "m1___bill.pdf"), path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(data))
}
