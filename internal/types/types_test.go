package types

import (
	"testing"
)

func TestParseAddress(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:  "lowercase hex",
			input: "0x1234567890123456789012345678901234567890",
		},
		{
			name:  "checksummed hex with surrounding spaces",
			input: "  0xAbCdEf0123456789aBcDeF0123456789AbCdEf01 ",
		},
		{
			name:    "missing prefix",
			input:   "1234567890123456789012345678901234567890",
			wantErr: true,
		},
		{
			name:    "too short",
			input:   "0x1234",
			wantErr: true,
		},
		{
			name:    "non hex characters",
			input:   "0xZZ34567890123456789012345678901234567890",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr, err := ParseAddress(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseAddress(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				if addr != ZeroAddress {
					t.Errorf("ParseAddress(%q) = %s, want zero address on error", tt.input, addr.Hex())
				}
				svcErr, ok := err.(*ServiceError)
				if !ok {
					t.Fatalf("ParseAddress(%q) error type = %T, want *ServiceError", tt.input, err)
				}
				if svcErr.Code != "INVALID_ADDRESS_FORMAT" {
					t.Errorf("error code = %s, want INVALID_ADDRESS_FORMAT", svcErr.Code)
				}
			}
		})
	}
}

func TestParseAddress_CaseInsensitive(t *testing.T) {
	lower, err := ParseAddress("0xabcdef0123456789abcdef0123456789abcdef01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	upper, err := ParseAddress("0xABCDEF0123456789ABCDEF0123456789ABCDEF01")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lower != upper {
		t.Errorf("addresses differ by case: %s vs %s", lower.Hex(), upper.Hex())
	}
}
