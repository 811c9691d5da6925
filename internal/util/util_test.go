// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package util

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestAtomicWriteFileBasic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := AtomicWriteFile(path, []byte("hello"), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "hello" {
		t.Errorf("content = %q", data)
	}
}

func TestAtomicWriteFileCreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "out.txt")
	if err := AtomicWriteFile(path, []byte("x"), 0o644); err != nil {
		t.Fatalf("AtomicWriteFile: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("file missing: %v", err)
	}
}

func TestAtomicWriteFileOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	if err := AtomicWriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := AtomicWriteFile(path, []byte("new"), 0o644); err != nil {
		t.Fatal(err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("content = %q", data)
	}

	// No temp droppings left behind.
	entries, _ := os.ReadDir(filepath.Dir(path))
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".tmp-") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}

func TestTruncateRunes(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello world", 8, "hello..."},
		{"héllo wörld", 8, "héllo..."},
		{"abc", 2, "ab"},
		{"anything", 0, ""},
	}
	for _, tc := range cases {
		if got := TruncateRunes(tc.in, tc.max); got != tc.want {
			t.Errorf("TruncateRunes(%q, %d) = %q, want %q", tc.in, tc.max, got, tc.want)
		}
	}
}

func TestTruncateWidthCJK(t *testing.T) {
	// Each CJK char is 2 columns wide.
	s := "日本語テスト"
	if got := TruncateWidth(s, 100); got != s {
		t.Errorf("no-op truncation changed string: %q", got)
	}
	got := TruncateWidth(s, 7)
	if StringWidth(got) > 7 {
		t.Errorf("TruncateWidth produced width %d > 7: %q", StringWidth(got), got)
	}
	if !strings.HasSuffix(got, "...") {
		t.Errorf("expected ellipsis: %q", got)
	}
}

func TestStringWidth(t *testing.T) {
	if w := StringWidth("abc"); w != 3 {
		t.Errorf("ascii width = %d", w)
	}
	if w := StringWidth("日本"); w != 4 {
		t.Errorf("CJK width = %d", w)
	}
}

func TestSafeSubstring(t *testing.T) {
	cases := []struct {
		in         string
		start, end int
		want       string
	}{
		{"hello", 1, 3, "el"},
		{"héllo", 0, 2, "hé"},
		{"abc", -5, 2, "ab"},
		{"abc", 1, 99, "bc"},
		{"abc", 2, 1, ""},
		{"abc", 10, 20, ""},
	}
	for _, tc := range cases {
		if got := SafeSubstring(tc.in, tc.start, tc.end); got != tc.want {
			t.Errorf("SafeSubstring(%q, %d, %d) = %q, want %q", tc.in, tc.start, tc.end, got, tc.want)
		}
	}
}
