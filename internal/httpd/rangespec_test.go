package httpd

import (
	"errors"
	"testing"
)

func TestParseRanges(t *testing.T) {
	tests := []struct {
		name        string
		rangeHeader string
		fileSize    int64
		want        []ByteRange
		wantErr     bool
	}{
		{
			name:        "basic range",
			rangeHeader: "bytes=0-1023",
			fileSize:    2048,
			want:        []ByteRange{{0, 1023}},
		},
		{
			name:        "range from middle",
			rangeHeader: "bytes=1024-2047",
			fileSize:    4096,
			want:        []ByteRange{{1024, 2047}},
		},
		{
			name:        "open-ended range",
			rangeHeader: "bytes=1024-",
			fileSize:    2048,
			want:        []ByteRange{{1024, 2047}},
		},
		{
			name:        "suffix range is the last N bytes",
			rangeHeader: "bytes=-500",
			fileSize:    2048,
			want:        []ByteRange{{1548, 2047}},
		},
		{
			name:        "suffix equal to file size",
			rangeHeader: "bytes=-2048",
			fileSize:    2048,
			want:        []ByteRange{{0, 2047}},
		},
		{
			name:        "single byte",
			rangeHeader: "bytes=0-0",
			fileSize:    2048,
			want:        []ByteRange{{0, 0}},
		},
		{
			name:        "end clamped to file size",
			rangeHeader: "bytes=1024-9999",
			fileSize:    2048,
			want:        []ByteRange{{1024, 2047}},
		},
		{
			name:        "multiple disjoint ranges",
			rangeHeader: "bytes=0-99, 200-299, 400-",
			fileSize:    500,
			want:        []ByteRange{{0, 99}, {200, 299}, {400, 499}},
		},
		{
			name:        "without bytes prefix",
			rangeHeader: "0-9",
			fileSize:    100,
			want:        []ByteRange{{0, 9}},
		},
		{
			name:        "suffix larger than file",
			rangeHeader: "bytes=-5000",
			fileSize:    2048,
			wantErr:     true,
		},
		{
			name:        "bare dash",
			rangeHeader: "bytes=-",
			fileSize:    2048,
			wantErr:     true,
		},
		{
			name:        "start beyond end",
			rangeHeader: "bytes=500-100",
			fileSize:    2048,
			wantErr:     true,
		},
		{
			name:        "start beyond file size",
			rangeHeader: "bytes=2048-",
			fileSize:    2048,
			wantErr:     true,
		},
		{
			name:        "zero suffix",
			rangeHeader: "bytes=-0",
			fileSize:    2048,
			wantErr:     true,
		},
		{
			name:        "non-numeric bound",
			rangeHeader: "bytes=abc-def",
			fileSize:    2048,
			wantErr:     true,
		},
		{
			name:        "overlapping ranges",
			rangeHeader: "bytes=0-100, 50-200",
			fileSize:    500,
			wantErr:     true,
		},
		{
			name:        "contained range",
			rangeHeader: "bytes=0-400, 100-200",
			fileSize:    500,
			wantErr:     true,
		},
		{
			name:        "touching ranges",
			rangeHeader: "bytes=0-100, 100-200",
			fileSize:    500,
			wantErr:     true,
		},
		{
			name:        "unordered disjoint ranges",
			rangeHeader: "bytes=200-299, 0-99",
			fileSize:    500,
			want:        []ByteRange{{200, 299}, {0, 99}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseRanges(tt.rangeHeader, tt.fileSize)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("ParseRanges() expected error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseRanges() unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseRanges() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("range %d = %v, want %v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseRangesErrorCarriesFileSize(t *testing.T) {
	_, err := ParseRanges("bytes=9999-", 2048)
	if err == nil {
		t.Fatal("expected error")
	}
	var rangeErr *RangeError
	if !errors.As(err, &rangeErr) {
		t.Fatalf("expected RangeError, got %T", err)
	}
	if rangeErr.FileSize != 2048 {
		t.Errorf("FileSize = %d, want 2048", rangeErr.FileSize)
	}
	if StatusFor(err) != StatusRangeNotSatisfiable {
		t.Errorf("StatusFor() = %d, want 416", StatusFor(err))
	}
}

func TestByteRangeLength(t *testing.T) {
	if got := (ByteRange{Start: 0, End: 0}).Length(); got != 1 {
		t.Errorf("Length() = %d, want 1", got)
	}
	if got := (ByteRange{Start: 100, End: 199}).Length(); got != 100 {
		t.Errorf("Length() = %d, want 100", got)
	}
}
