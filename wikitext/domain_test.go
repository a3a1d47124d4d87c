package wikitext

import (
	"testing"
)

func TestExtractDomain(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		want   string
		wantOK bool
	}{
		{
			name:   "https with www and port",
			input:  "https://www.example.com:443",
			want:   "example.com",
			wantOK: true,
		},
		{
			name:   "plain http",
			input:  "http://example.org/page?x=1",
			want:   "example.org",
			wantOK: true,
		},
		{
			name:   "subdomain kept",
			input:  "https://en.wikipedia.org/wiki/Go",
			want:   "en.wikipedia.org",
			wantOK: true,
		},
		{
			name:   "uppercase host lowercased",
			input:  "https://WWW.Example.COM/path",
			want:   "example.com",
			wantOK: true,
		},
		{
			name:   "protocol-relative",
			input:  "//cdn.example.net/asset.js",
			want:   "cdn.example.net",
			wantOK: true,
		},
		{
			name:   "schemeless",
			input:  "example.com/page",
			want:   "example.com",
			wantOK: true,
		},
		{
			name:   "garbage",
			input:  "gkskdgds",
			wantOK: false,
		},
		{
			name:   "empty",
			input:  "",
			wantOK: false,
		},
		{
			name:   "bare www",
			input:  "https://www.",
			wantOK: false,
		},
		{
			name:   "single label host",
			input:  "http://localhost:8080",
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractDomain(tt.input)
			if ok != tt.wantOK {
				t.Fatalf("ExtractDomain(%q) ok = %v, want %v", tt.input, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("ExtractDomain(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
