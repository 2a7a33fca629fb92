package tokens

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedact(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"empty", "", ""},
		{"short token is fully masked", "abcd", "****"},
		{"shorter than mask", "ab", "**"},
		{"long token keeps last four", "IGQVJexample-token-9f3c", "****9f3c"},
		{"five characters", "abcde", "****bcde"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Redact(tt.token))
		})
	}
}
