package ffmpeg

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
	assert.Equal(t, KindMissingOutput, KindOf(NewError(KindMissingOutput, MissingOutputDetail, nil)))

	wrapped := fmt.Errorf("task abc: %w", NewError(KindResourceError, "could not create scope", errors.New("disk full")))
	assert.Equal(t, KindResourceError, KindOf(wrapped))
}

func TestDetailOf(t *testing.T) {
	assert.Equal(t, "internal server error", DetailOf(errors.New("secret path /var/x")))
	assert.Equal(t, "internal server error", DetailOf(NewError(KindInternal, "leaky detail", nil)))
	assert.Equal(t, "bad codec", DetailOf(NewError(KindInvalidDirective, "bad codec", nil)))
	assert.Equal(t, "underlying", DetailOf(NewError(KindProcessFailure, "", errors.New("underlying"))))
}
