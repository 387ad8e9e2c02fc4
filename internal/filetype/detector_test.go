package filetype

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectByContent(t *testing.T) {
	dir := t.TempDir()
	pdf := filepath.Join(dir, "renamed.bin")
	require.NoError(t, os.WriteFile(pdf, []byte("%PDF-1.4\n1 0 obj\n<<>>\nendobj\n"), 0o644))
	txt := filepath.Join(dir, "fake.pdf")
	require.NoError(t, os.WriteFile(txt, []byte("just some notes\n"), 0o644))

	d := New()
	info, err := d.Detect(pdf)
	require.NoError(t, err)
	assert.True(t, info.IsPDF)
	assert.Equal(t, ".pdf", info.Extension)

	info, err = d.Detect(txt)
	require.NoError(t, err)
	assert.False(t, info.IsPDF)

	assert.NoError(t, d.RequirePDF(pdf))
	assert.Error(t, d.RequirePDF(txt))
	assert.Error(t, d.RequirePDF(filepath.Join(dir, "missing.pdf")))
}
