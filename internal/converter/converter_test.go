package converter

import (
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"testing"
)

// writePNG writes a w x h gradient PNG and returns its path.
func writePNG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x * 8), G: uint8(y * 8), B: 128, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

// writeJPEG writes a solid w x h JPEG and returns its path.
func writeJPEG(t *testing.T, dir, name string, w, h int) string {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("failed to create %s: %v", path, err)
	}
	defer f.Close()
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: 90}); err != nil {
		t.Fatalf("failed to encode %s: %v", path, err)
	}
	return path
}

func TestNewImageConverter(t *testing.T) {
	conv := NewImageConverter()
	if conv == nil {
		t.Fatal("NewImageConverter returned nil")
	}
	if conv.Quality != 85 {
		t.Errorf("Expected default quality 85, got %d", conv.Quality)
	}
	if conv.Speed != DefaultSpeed {
		t.Errorf("Expected default speed %d, got %d", DefaultSpeed, conv.Speed)
	}
}

func TestSetQuality(t *testing.T) {
	conv := NewImageConverter()

	tests := []struct {
		in   int
		want int
	}{
		{75, 75},
		{-10, 1},
		{150, 100},
		{1, 1},
		{100, 100},
		{0, 1},
	}
	for _, tt := range tests {
		conv.SetQuality(tt.in)
		if conv.Quality != tt.want {
			t.Errorf("SetQuality(%d): got %d, want %d", tt.in, conv.Quality, tt.want)
		}
	}
}

func TestSetSpeed(t *testing.T) {
	conv := NewImageConverter()
	conv.SetSpeed(-1)
	if conv.Speed != 0 {
		t.Errorf("SetSpeed(-1) = %d, want 0", conv.Speed)
	}
	conv.SetSpeed(42)
	if conv.Speed != 10 {
		t.Errorf("SetSpeed(42) = %d, want 10", conv.Speed)
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"webp", WebP, false},
		{"WEBP", WebP, false},
		{"avif", AVIF, false},
		{"jpeg", JPEG, false},
		{"jpg", JPEG, false},
		{"png", PNG, false},
		{" png ", PNG, false},
		{"gif", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedFormat) {
				t.Errorf("ParseFormat(%q) error = %v, want ErrUnsupportedFormat", tt.in, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseFormat(%q) unexpected error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestIsSupportedInput(t *testing.T) {
	tests := map[string]bool{
		"a.jpg":     true,
		"a.JPEG":    true,
		"dir/b.png": true,
		"c.webp":    false,
		"d.gif":     false,
		"noext":     false,
	}
	for path, want := range tests {
		if got := IsSupportedInput(path); got != want {
			t.Errorf("IsSupportedInput(%q) = %v, want %v", path, got, want)
		}
	}
}

func TestConvertImage_PNGToJPEG(t *testing.T) {
	dir := t.TempDir()
	in := writePNG(t, dir, "in.png", 16, 8)
	out := filepath.Join(dir, "out.jpg")

	conv := NewImageConverter()
	conv.SetQuality(70)
	res, err := conv.ConvertImage(in, out, "jpg")
	if err != nil {
		t.Fatalf("ConvertImage() error = %v", err)
	}

	if res.SourceFormat != "png" {
		t.Errorf("SourceFormat = %q, want png", res.SourceFormat)
	}
	if res.TargetFormat != JPEG {
		t.Errorf("TargetFormat = %q, want jpeg", res.TargetFormat)
	}
	if res.Quality != 70 {
		t.Errorf("Quality = %d, want 70", res.Quality)
	}
	if res.InputBytes == 0 || res.OutputBytes == 0 {
		t.Errorf("expected non-zero sizes, got in=%d out=%d", res.InputBytes, res.OutputBytes)
	}

	w, h, format, err := GetImageInfo(out)
	if err != nil {
		t.Fatalf("GetImageInfo() error = %v", err)
	}
	if w != 16 || h != 8 || format != "jpeg" {
		t.Errorf("GetImageInfo() = %dx%d %s, want 16x8 jpeg", w, h, format)
	}
}

func TestConvertImage_JPEGToPNG(t *testing.T) {
	dir := t.TempDir()
	in := writeJPEG(t, dir, "in.jpeg", 10, 10)
	out := filepath.Join(dir, "out.png")

	res, err := NewImageConverter().ConvertImage(in, out, "png")
	if err != nil {
		t.Fatalf("ConvertImage() error = %v", err)
	}
	if res.SourceFormat != "jpeg" {
		t.Errorf("SourceFormat = %q, want jpeg", res.SourceFormat)
	}

	_, _, format, err := GetImageInfo(out)
	if err != nil {
		t.Fatalf("GetImageInfo() error = %v", err)
	}
	if format != "png" {
		t.Errorf("output format = %q, want png", format)
	}
}

func TestConvertImage_WebPAndAVIF(t *testing.T) {
	dir := t.TempDir()
	in := writePNG(t, dir, "in.png", 8, 8)

	for _, target := range []string{"webp", "avif"} {
		t.Run(target, func(t *testing.T) {
			out := filepath.Join(dir, "out."+target)
			res, err := NewImageConverter().ConvertImage(in, out, target)
			if err != nil {
				t.Fatalf("ConvertImage(%s) error = %v", target, err)
			}
			if res.OutputBytes == 0 {
				t.Error("expected non-empty output")
			}

			w, h, format, err := GetImageInfo(out)
			if err != nil {
				t.Fatalf("GetImageInfo() error = %v", err)
			}
			if w != 8 || h != 8 {
				t.Errorf("dimensions = %dx%d, want 8x8", w, h)
			}
			if format != target {
				t.Errorf("format = %q, want %q", format, target)
			}
		})
	}
}

func TestConvertImage_UnsupportedTarget(t *testing.T) {
	dir := t.TempDir()
	in := writePNG(t, dir, "in.png", 4, 4)
	out := filepath.Join(dir, "out.gif")

	res, err := NewImageConverter().ConvertImage(in, out, "gif")
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("ConvertImage() error = %v, want ErrUnsupportedFormat", err)
	}
	if res == nil || res.InputPath != in || res.OutputPath != out {
		t.Errorf("failed conversion should still describe its paths, got %+v", res)
	}
	if res != nil && res.TargetFormat != "" {
		t.Errorf("TargetFormat = %q, want empty for an unparsed format", res.TargetFormat)
	}
	if _, err := os.Stat(out); !os.IsNotExist(err) {
		t.Error("no output file should be created for an unsupported target")
	}
}

func TestConvertImage_UndecodableInputLeavesNoFiles(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "broken.png")
	if err := os.WriteFile(in, []byte("not an image"), 0644); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}
	outDir := filepath.Join(dir, "out")
	if err := os.Mkdir(outDir, 0755); err != nil {
		t.Fatalf("failed to create out dir: %v", err)
	}

	_, err := NewImageConverter().ConvertImage(in, filepath.Join(outDir, "broken.jpeg"), "jpeg")
	if err == nil {
		t.Fatal("expected decode error")
	}

	entries, _ := os.ReadDir(outDir)
	if len(entries) != 0 {
		t.Errorf("expected empty output dir, found %d entries", len(entries))
	}
}

func TestGetImageInfo_Missing(t *testing.T) {
	if _, _, _, err := GetImageInfo(filepath.Join(t.TempDir(), "nope.png")); err == nil {
		t.Error("GetImageInfo() on missing file should fail")
	}
}

func TestResultSaved(t *testing.T) {
	r := &Result{InputBytes: 1000, OutputBytes: 400}
	if r.Saved() != 600 {
		t.Errorf("Saved() = %d, want 600", r.Saved())
	}
}
