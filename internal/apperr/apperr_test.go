package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("report: %w", Wrap(CodeDataUnavailable, "fetch work items", errors.New("disk I/O error")))
	assert.True(t, errors.Is(err, ErrDataUnavailable))
	assert.False(t, errors.Is(err, ErrInvalidFilter))
	assert.Equal(t, CodeDataUnavailable, CodeOf(err))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
}

func TestMetadataOf(t *testing.T) {
	err := WithMetadata(CodeInvalidFilter, "start after end", map[string]string{"field": "start_date"})
	assert.Equal(t, "start_date", MetadataOf(err)["field"])
	assert.Nil(t, MetadataOf(errors.New("plain")))
}
