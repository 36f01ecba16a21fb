package utils

import "testing"

func TestMaskToken(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  string
	}{
		{"short token", "abc", "****"},
		{"boundary length", "12345678", "****"},
		{"uuid token", "9f86d081-884c-7d65-9a2f-eaa0c55ad015", "9f86...d015"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := MaskToken(tt.token); got != tt.want {
				t.Errorf("MaskToken(%q) = %q, want %q", tt.token, got, tt.want)
			}
		})
	}
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain name", "sample.bam", "sample.bam"},
		{"path traversal", "../../etc/passwd", "passwd"},
		{"windows path", `C:\data\run7\sample.bam`, "sample.bam"},
		{"spaces and specials", "my run #7.vcf", "my_run__7.vcf"},
		{"hidden file", ".hidden", "hidden"},
		{"only specials", "###", "___"},
		{"empty", "", "unnamed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestPasswordHashing(t *testing.T) {
	hash, err := HashPassword("secret")
	if err != nil {
		t.Fatalf("HashPassword() error: %v", err)
	}
	if hash == "secret" {
		t.Error("hash must differ from the password")
	}
	if !VerifyPassword("secret", hash) {
		t.Error("correct password must verify")
	}
	if VerifyPassword("wrong", hash) {
		t.Error("wrong password must not verify")
	}
}
