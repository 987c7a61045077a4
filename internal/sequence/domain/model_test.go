package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatCode(t *testing.T) {
	cases := map[int64]string{
		1:          "00000001",
		42:         "00000042",
		99999999:   "99999999",
		100000000:  "100000000",
		1234567890: "1234567890",
	}
	for value, want := range cases {
		assert.Equal(t, want, FormatCode(value))
	}
}
