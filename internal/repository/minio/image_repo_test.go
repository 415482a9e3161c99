package minio

import (
	"bytes"
	"testing"
)

func TestReadLimited(t *testing.T) {
	cases := []struct {
		name      string
		size      int
		limit     int64
		wantFound bool
	}{
		{"under limit", 10, 16, true},
		{"exactly limit", 16, 16, true},
		{"over limit", 17, 16, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			data, found, err := readLimited(bytes.NewReader(make([]byte, tc.size)), tc.limit)
			if err != nil {
				t.Fatalf("readLimited() error: %v", err)
			}
			if found != tc.wantFound {
				t.Fatalf("found = %t, want %t", found, tc.wantFound)
			}
			if found && len(data) != tc.size {
				t.Fatalf("len = %d, want %d", len(data), tc.size)
			}
		})
	}
}
