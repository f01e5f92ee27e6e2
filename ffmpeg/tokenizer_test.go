package ffmpeg

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"empty", "", nil},
		{"whitespace only", "  \t\n ", nil},
		{"plain", "-vf scale=720:-1 -c:v libx264", []string{"-vf", "scale=720:-1", "-c:v", "libx264"}},
		{"collapses runs of whitespace", "-vf   rotate=45\t-an", []string{"-vf", "rotate=45", "-an"}},
		{"quoted whitespace preserved", "drawtext=text='Hello World'", []string{"drawtext=text=Hello World"}},
		{"double quotes", `-vf "scale=1280:-1"`, []string{"-vf", "scale=1280:-1"}},
		{"either quote toggles", `"it's here" next`, []string{"its", "here next"}},
		{"unterminated quote swallows the rest", `-vf 'scale=720 -c:v libx264`, []string{"-vf", "scale=720 -c:v libx264"}},
		{"empty quotes emit nothing", `a '' b`, []string{"a", "b"}},
		{"quotes glue adjacent text", `pre"mid dle"post`, []string{"premid dlepost"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tokenize(tt.raw))
		})
	}
}

func TestSplitCommand(t *testing.T) {
	args, err := SplitCommand(`-vf "scale=1280:-1" -c:v libx264 -metadata title=a\ b`)
	require.NoError(t, err)
	assert.Equal(t, []string{"-vf", "scale=1280:-1", "-c:v", "libx264", "-metadata", "title=a b"}, args)

	_, err = SplitCommand(`-vf 'scale=1280:-1`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid directive syntax")
}
