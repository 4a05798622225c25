package scriptcheck

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheck(t *testing.T) {
	tests := []struct {
		name     string
		src      string
		wantLine int
	}{
		{
			name: "no script",
			src:  "# Title\n",
		},
		{
			name: "valid javascript",
			src:  "<script setup>\nconst a = 1\n</script>\n",
		},
		{
			name: "valid typescript",
			src:  "<script setup lang=\"ts\">\nconst a: number = 1\n</script>\n",
		},
		{
			name:     "syntax error",
			src:      "# T\n\n<script setup>\nconst ok = 1\nconst a = ;\n</script>\n",
			wantLine: 5,
		},
		{
			name:     "lines account for frontmatter",
			src:      "---\ntitle: x\n---\n<script setup>\nconst a = ;\n</script>\n",
			wantLine: 5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Check(tt.src)
			if tt.wantLine == 0 {
				require.NoError(t, err)
				return
			}

			var serr *Error
			require.True(t, errors.As(err, &serr))
			require.NotEmpty(t, serr.Issues)
			assert.Equal(t, tt.wantLine, serr.Issues[0].Line)
			assert.Contains(t, err.Error(), "script errors")
		})
	}
}
