package asset

import "testing"

func TestExtractStoragePath(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name    string
		locator string
		want    string
	}{
		{"full public url", "https://cdn.example.com/storage/v1/object/public/bands/42/poster.png", "bands/42/poster.png"},
		{"short public url", "https://cdn.example.com/public/bands/42/poster.png", "bands/42/poster.png"},
		{"plain url", "https://cdn.example.com/bands/42/poster.png", "bands/42/poster.png"},
		{"url with query", "https://cdn.example.com/bands/42/poster.png?token=abc", "bands/42/poster.png"},
		{"escaped path", "https://cdn.example.com/bands/42/band%20photo.png", "bands/42/band photo.png"},
		{"bare path", "bands/42/poster.png", "bands/42/poster.png"},
		{"bare path with leading slash", "/bands/42/poster.png", "bands/42/poster.png"},
		{"bare path with query", "bands/42/poster.png?v=2", "bands/42/poster.png"},
		{"empty", "", ""},
		{"whitespace", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractStoragePath(tc.locator); got != tc.want {
				t.Fatalf("ExtractStoragePath(%q) = %q, want %q", tc.locator, got, tc.want)
			}
		})
	}
}
