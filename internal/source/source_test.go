package source

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func writeTempFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "media.bin")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestFileSourceReadSeekSize(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "hello world")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	if s.Size() != 11 {
		t.Fatalf("got size %d, want 11", s.Size())
	}

	buf := make([]byte, 5)
	if _, err := io.ReadFull(s, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "hello" {
		t.Fatalf("got %q, want %q", buf, "hello")
	}

	pos, err := s.Seek(6, io.SeekStart)
	if err != nil {
		t.Fatal(err)
	}
	if pos != 6 {
		t.Fatalf("got pos %d, want 6", pos)
	}
	if _, err := io.ReadFull(s, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "world" {
		t.Fatalf("got %q, want %q", buf, "world")
	}
}

func TestFileSourceMissing(t *testing.T) {
	t.Parallel()

	if _, err := Open(filepath.Join(t.TempDir(), "nope.mp4")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestFDSource(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "0123456789")
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	s := newFDSource(int(f.Fd()))
	defer s.Close()

	if s.Size() != 10 {
		t.Fatalf("got size %d, want 10", s.Size())
	}
	// Size probe must restore the offset.
	buf := make([]byte, 4)
	if _, err := io.ReadFull(s, buf); err != nil {
		t.Fatal(err)
	}
	if string(buf) != "0123" {
		t.Fatalf("got %q, want %q", buf, "0123")
	}

	if _, err := s.Seek(8, io.SeekStart); err != nil {
		t.Fatal(err)
	}
	n, err := s.Read(buf)
	if err != nil {
		t.Fatal(err)
	}
	if string(buf[:n]) != "89" {
		t.Fatalf("got %q, want %q", buf[:n], "89")
	}

	if _, err := s.Read(buf); err != io.EOF {
		t.Fatalf("got %v, want io.EOF", err)
	}
}

func TestFDSourceCloseLeavesDescriptorOpen(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "payload")
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	s := newFDSource(int(f.Fd()))
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	// The caller's descriptor must still be usable after Close.
	buf := make([]byte, 7)
	if _, err := io.ReadFull(f, buf); err != nil {
		t.Fatalf("descriptor unusable after source close: %v", err)
	}
	if string(buf) != "payload" {
		t.Fatalf("got %q, want %q", buf, "payload")
	}
}

func TestOpenFDScheme(t *testing.T) {
	t.Parallel()

	path := writeTempFile(t, "abc")
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	s, err := Open("fd://" + strconv.Itoa(int(f.Fd())))
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if s.Size() != 3 {
		t.Fatalf("got size %d, want 3", s.Size())
	}
}

func TestOpenInvalidFDURIs(t *testing.T) {
	t.Parallel()

	for _, uri := range []string{"fd://", "fd://abc", "fd://-1", "fd://3x"} {
		if _, err := Open(uri); !errors.Is(err, ErrInvalidURI) {
			t.Fatalf("Open(%q): got %v, want ErrInvalidURI", uri, err)
		}
	}
}
