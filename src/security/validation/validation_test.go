package validation

import (
	"bytes"
	"strings"
	"testing"
)

func TestSanitizeForFormulaInjection(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"=SUM(A1:A3)", "'=SUM(A1:A3)"},
		{"+123", "'+123"},
		{"-456", "'-456"},
		{"@cmd", "'@cmd"},
		{"  =SUM(A1)", "'  =SUM(A1)"},
		{"btc", "btc"},
		{"0.5 BTC sold", "0.5 BTC sold"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := SanitizeForFormulaInjection(tt.input); got != tt.want {
			t.Errorf("SanitizeForFormulaInjection(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestStripUnprintable(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"plain text", "plain text"},
		{"tabs\tand\nnewlines\r", "tabs\tand\nnewlines\r"},
		{"nul\x00byte", "nulbyte"},
		{"bell\x07escape\x1b", "bellescape"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := StripUnprintable(tt.input); got != tt.want {
			t.Errorf("StripUnprintable(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestValidateClientContentType(t *testing.T) {
	for _, allowed := range []string{"text/csv", "application/csv", "TEXT/PLAIN", "application/octet-stream"} {
		if err := ValidateClientContentType(allowed); err != nil {
			t.Errorf("ValidateClientContentType(%q) = %v, want nil", allowed, err)
		}
	}
	for _, denied := range []string{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "image/png", ""} {
		if err := ValidateClientContentType(denied); err == nil {
			t.Errorf("ValidateClientContentType(%q) accepted", denied)
		}
	}
}

func TestValidateFileContentByMagicBytes(t *testing.T) {
	csv := bytes.NewReader([]byte("UTC_Time,Operation,Coin,Change\n2024-01-01 00:00:00,Deposit,BTC,1\n"))
	detected, err := ValidateFileContentByMagicBytes(csv)
	if err != nil {
		t.Fatalf("CSV content rejected: %v (detected %q)", err, detected)
	}
	if pos, _ := csv.Seek(0, 1); pos != 0 {
		t.Errorf("read pointer not reset, at %d", pos)
	}

	png := bytes.NewReader([]byte("\x89PNG\r\n\x1a\n" + strings.Repeat("\x00", 32)))
	if _, err := ValidateFileContentByMagicBytes(png); err == nil {
		t.Error("PNG content accepted as CSV")
	}

	if _, err := ValidateFileContentByMagicBytes(nil); err == nil {
		t.Error("nil file accepted")
	}
}
