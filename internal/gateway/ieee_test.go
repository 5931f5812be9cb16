package gateway

import "testing"

func TestNormalizeIEEE(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"hex string no colons", "a4c1380123456789", "A4C1380123456789", false},
		{"hex string with colons", "A4:C1:38:01:23:45:67:89", "A4C1380123456789", false},
		{"0x prefix", "0xa4c1380123456789", "A4C1380123456789", false},
		{"all zeros", "0000000000000000", "0000000000000000", false},
		{"too short", "A4C138", "", true},
		{"too long", "A4C138012345678900", "", true},
		{"invalid hex", "ZZZZZZZZZZZZZZZZ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeIEEE(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("NormalizeIEEE(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if got != tt.want {
				t.Errorf("NormalizeIEEE(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
