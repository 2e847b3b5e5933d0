package capture

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func TestGridURL(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		want string
	}{
		{"section", Options{BaseURL: "http://127.0.0.1:8080", Section: 3}, "http://127.0.0.1:8080/grid?section=3"},
		{"displayed", Options{BaseURL: "http://localhost:8080/", Section: -1}, "http://localhost:8080/grid"},
		{"prefix", Options{BaseURL: "https://cal.example.com/app", Section: 0}, "https://cal.example.com/app/grid?section=0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := GridURL(tc.opts)
			if err != nil {
				t.Fatal(err)
			}
			if got != tc.want {
				t.Errorf("GridURL = %q, want %q", got, tc.want)
			}
		})
	}

	for _, bad := range []string{"", "ftp://host", "://"} {
		if _, err := GridURL(Options{BaseURL: bad}); err == nil {
			t.Errorf("GridURL(%q) succeeded", bad)
		}
	}
}

func TestCaptureValidatesBeforeLaunching(t *testing.T) {
	if err := CaptureGridPNG(context.Background(), Options{BaseURL: "http://x"}); err == nil {
		t.Error("missing OutputPath accepted")
	}
	out := filepath.Join(t.TempDir(), "p.png")
	if err := CaptureGridPNG(context.Background(), Options{OutputPath: out}); err == nil {
		t.Error("missing BaseURL accepted")
	}
}

func TestApplyDefaults(t *testing.T) {
	o := Options{OutputPath: "x.png"}
	if err := o.applyDefaults(); err != nil {
		t.Fatal(err)
	}
	if o.Width != DefaultWidth || o.Height != DefaultHeight || o.Timeout != DefaultTimeout {
		t.Errorf("defaults = %+v", o)
	}
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "preview.png")
	if err := writeFileAtomic(path, []byte("png")); err != nil {
		t.Fatal(err)
	}
	got, err := os.ReadFile(path)
	if err != nil || string(got) != "png" {
		t.Errorf("read back %q, %v", got, err)
	}
}
