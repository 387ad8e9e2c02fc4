package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseURI(t *testing.T) {
	obj, err := ParseURI("s3://scans/2024/batch 7.pdf")
	require.NoError(t, err)
	assert.Equal(t, Object{Bucket: "scans", Key: "2024/batch 7.pdf"}, obj)
	assert.Equal(t, "s3://scans/2024/batch 7.pdf", obj.String())

	for _, bad := range []string{"scans/x.pdf", "s3://", "s3://bucket", "s3://bucket/", "s3:///key"} {
		_, err := ParseURI(bad)
		assert.Error(t, err, bad)
	}
}
