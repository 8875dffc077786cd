package library

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/kozaktomas/photo-dedupe/internal/fingerprint"
)

func TestNewIdentity(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want Identity
	}{
		{"plain", "2023/IMG_0001.jpg", "2023/IMG_0001.jpg"},
		{"leading dot slash", "./a/b.png", "a/b.png"},
		{"redundant segments", "a//b/../c.jpg", "a/c.jpg"},
		{"nfd becomes nfc", "Jir\u030ci.jpg", "Ji\u0159i.jpg"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := NewIdentity(tc.in); got != tc.want {
				t.Errorf("NewIdentity(%q) = %q; want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestRelOutsideRoot(t *testing.T) {
	root := t.TempDir()
	if _, err := Rel(root, filepath.Join(filepath.Dir(root), "other.jpg")); err == nil {
		t.Error("expected error for path outside root")
	}
}

func TestScan(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "b.jpg", []byte("x"))
	writeFile(t, root, "a.PNG", []byte("x"))
	writeFile(t, root, "notes.txt", []byte("x"))
	writeFile(t, root, "sub/c.webp", []byte("x"))
	writeFile(t, root, ".hidden/d.jpg", []byte("x"))
	writeFile(t, root, "cache.yaml", []byte("x"))

	lib, err := New(root, []string{"jpg", ".png", ".WEBP"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	lib.Skip(filepath.Join(root, "cache.yaml"))

	ids, err := lib.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}

	want := []Identity{"a.PNG", "b.jpg", "sub/c.webp"}
	if len(ids) != len(want) {
		t.Fatalf("Scan = %v; want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Scan[%d] = %q; want %q", i, ids[i], want[i])
		}
	}
}

func TestScanCanceled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", []byte("x"))
	lib, err := New(root, []string{".jpg"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := lib.Scan(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestNewRejectsFile(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", []byte("x"))
	if _, err := New(filepath.Join(root, "a.jpg"), nil); err == nil {
		t.Error("expected error for non-directory root")
	}
}

func TestPathRejectsTraversal(t *testing.T) {
	lib, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for _, id := range []Identity{"../etc/passwd", "a/../../b", "/abs.jpg", "."} {
		if _, err := lib.Path(id); !errors.Is(err, ErrOutsideRoot) {
			t.Errorf("Path(%q) error = %v; want ErrOutsideRoot", id, err)
		}
	}
}

func TestDecode(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "good.png", encodePNG(t, 16, 16))
	writeFile(t, root, "bad.jpg", []byte("not an image"))

	lib, err := New(root, []string{".png", ".jpg"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx := context.Background()

	img, err := lib.Decode(ctx, "good.png")
	if err != nil {
		t.Fatalf("Decode good: %v", err)
	}
	if img.Bounds().Dx() != 16 {
		t.Errorf("width = %d; want 16", img.Bounds().Dx())
	}

	for _, id := range []Identity{"bad.jpg", "missing.jpg"} {
		_, err := lib.Decode(ctx, id)
		var decErr *fingerprint.DecodeError
		if !errors.As(err, &decErr) {
			t.Fatalf("Decode(%s) error = %v; want *DecodeError", id, err)
		}
		if decErr.Path != id.String() {
			t.Errorf("DecodeError.Path = %q; want %q", decErr.Path, id)
		}
	}
}

func TestDecodeMatchesComputeHashes(t *testing.T) {
	root := t.TempDir()
	data := jpegWithOrientation(t, 64, 48, 6)
	writeFile(t, root, "rotated.jpg", data)

	lib, err := New(root, []string{".jpg"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	img, err := lib.Decode(context.Background(), "rotated.jpg")
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 48 || b.Dy() != 64 {
		t.Fatalf("decoded %dx%d; want 48x64", b.Dx(), b.Dy())
	}

	hashes, err := fingerprint.ComputeHashes(data)
	if err != nil {
		t.Fatalf("ComputeHashes: %v", err)
	}
	if hashes.Width != 48 || hashes.Height != 64 {
		t.Errorf("ComputeHashes saw %dx%d; want 48x64", hashes.Width, hashes.Height)
	}
	if want := fingerprint.FromImage(img, fingerprint.Frequency); hashes.Frequency != want {
		t.Errorf("frequency = %s; scan computes %s", hashes.Frequency, want)
	}
	if want := fingerprint.FromImage(img, fingerprint.Gradient); hashes.Gradient != want {
		t.Errorf("gradient = %s; scan computes %s", hashes.Gradient, want)
	}
}

func TestDeleteRemovesSidecars(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "2023/IMG_1.JPG", []byte("x"))
	writeFile(t, root, "2023/IMG_1.JPG.xmp", []byte("x"))
	writeFile(t, root, "2023/IMG_10.JPG", []byte("x"))
	writeFile(t, root, "2023/IMG_2.JPG", []byte("x"))

	lib, err := New(root, []string{".jpg"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	removed, err := lib.Delete("2023/IMG_1.JPG")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if len(removed) != 2 {
		t.Errorf("removed %v; want image and sidecar", removed)
	}
	for _, name := range []string{"IMG_1.JPG", "IMG_1.JPG.xmp"} {
		if _, err := os.Stat(filepath.Join(root, "2023", name)); !os.IsNotExist(err) {
			t.Errorf("%s should be deleted", name)
		}
	}
	for _, name := range []string{"IMG_10.JPG", "IMG_2.JPG"} {
		if _, err := os.Stat(filepath.Join(root, "2023", name)); err != nil {
			t.Errorf("%s should remain: %v", name, err)
		}
	}
}

func TestDeleteKeepsImagesSharingPrefix(t *testing.T) {
	root := t.TempDir()
	writeFile(t, root, "a.jpg", []byte("x"))
	writeFile(t, root, "a.jpg.xmp", []byte("x"))
	writeFile(t, root, "a.jpg_edit.jpg", []byte("x"))
	writeFile(t, root, "a.jpg.png", []byte("x"))

	lib, err := New(root, []string{".jpg", ".png"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	removed, err := lib.Delete("a.jpg")
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	want := []string{filepath.Join(root, "a.jpg"), filepath.Join(root, "a.jpg.xmp")}
	if !slices.Equal(removed, want) {
		t.Errorf("removed %v; want %v", removed, want)
	}
	for _, name := range []string{"a.jpg_edit.jpg", "a.jpg.png"} {
		if _, err := os.Stat(filepath.Join(root, name)); err != nil {
			t.Errorf("%s should remain: %v", name, err)
		}
	}
}

func TestDeleteMissing(t *testing.T) {
	lib, err := New(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := lib.Delete("nope.jpg"); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected ErrNotExist, got %v", err)
	}
}

func TestIdentitySet(t *testing.T) {
	set := IdentitySet([]Identity{"a", "b", "a"})
	if len(set) != 2 {
		t.Errorf("len = %d; want 2", len(set))
	}
}

func writeFile(t *testing.T, root, rel string, data []byte) {
	t.Helper()
	p := filepath.Join(root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(p, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", rel, err)
	}
}

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.Set(x, y, color.RGBA{uint8(x * 16), uint8(y * 16), 0, 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png encode: %v", err)
	}
	return buf.Bytes()
}

// jpegWithOrientation encodes a w x h JPEG and inserts an EXIF APP1 segment
// carrying the given orientation tag right after SOI.
func jpegWithOrientation(t *testing.T, w, h int, orientation byte) []byte {
	t.Helper()
	img := image.NewGray(image.Rect(0, 0, w, h))
	for x := range w {
		for y := range h {
			img.SetGray(x, y, color.Gray{Y: uint8((x*4 + y*y) % 256)})
		}
	}
	var enc bytes.Buffer
	if err := jpeg.Encode(&enc, img, &jpeg.Options{Quality: 95}); err != nil {
		t.Fatalf("jpeg encode: %v", err)
	}

	exif := []byte{
		0xFF, 0xE1, 0x00, 0x22, // APP1, length 34
		'E', 'x', 'i', 'f', 0x00, 0x00,
		'M', 'M', 0x00, 0x2A, 0x00, 0x00, 0x00, 0x08, // big-endian TIFF header, IFD at 8
		0x00, 0x01, // one entry
		0x01, 0x12, 0x00, 0x03, 0x00, 0x00, 0x00, 0x01, 0x00, orientation, 0x00, 0x00, // Orientation SHORT
		0x00, 0x00, 0x00, 0x00, // no next IFD
	}
	raw := enc.Bytes()
	out := make([]byte, 0, len(raw)+len(exif))
	out = append(out, raw[:2]...)
	out = append(out, exif...)
	return append(out, raw[2:]...)
}
