package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAddressIsZero(t *testing.T) {
	tests := []struct {
		name string
		addr Address
		zero bool
	}{
		{"empty string", Address(""), true},
		{"canonical zero", ZeroAddress, true},
		{"zero without prefix", Address("0000000000000000000000000000000000000000"), true},
		{"zero in upper case", Address("0X0000000000000000000000000000000000000000"), true},
		{"real address", Address("0x1111000000000000000000000000000000000001"), false},
		{"bare prefix", Address("0x"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.zero, tt.addr.IsZero())
		})
	}
}
