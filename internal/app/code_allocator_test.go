package app

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"testing"
)

type fakeCodes map[string]bool

func (f fakeCodes) CodeExists(_ context.Context, code string) (bool, error) {
	return f[code], nil
}

func TestCodeAllocatorSkipsTakenCodes(t *testing.T) {
	// bytes 0..7 encode ABCDEFGH, 8..15 encode IJKLMNOP
	src := bytes.NewReader([]byte{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15})
	alloc := NewCodeAllocatorWithSource(fakeCodes{"ABCDEFGH": true}, src)

	code, err := alloc.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code != "IJKLMNOP" {
		t.Fatalf("expected IJKLMNOP, got %s", code)
	}
}

func TestCodeAllocatorRejectsBiasedBytes(t *testing.T) {
	src := bytes.NewReader([]byte{255, 254, 253, 252, 26, 27, 28, 29, 30, 31, 32, 33, 35, 35, 35, 35})
	alloc := NewCodeAllocatorWithSource(fakeCodes{}, src)

	code, err := alloc.Generate(context.Background())
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if code != "01234567" {
		t.Fatalf("expected 01234567, got %s", code)
	}
}

func TestCodeAllocatorShape(t *testing.T) {
	alloc := NewCodeAllocatorWithSource(fakeCodes{}, rand.Reader)
	for i := 0; i < 50; i++ {
		code, err := alloc.Generate(context.Background())
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if len(code) != 8 {
			t.Fatalf("expected 8 characters, got %q", code)
		}
		for _, c := range code {
			if !(c >= 'A' && c <= 'Z') && !(c >= '0' && c <= '9') {
				t.Fatalf("unexpected character %q in %s", c, code)
			}
		}
	}
}

type failingCodes struct{}

func (failingCodes) CodeExists(context.Context, string) (bool, error) {
	return false, errors.New("store down")
}

func TestCodeAllocatorSurfacesStoreErrors(t *testing.T) {
	alloc := NewCodeAllocatorWithSource(failingCodes{}, rand.Reader)
	if _, err := alloc.Generate(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
