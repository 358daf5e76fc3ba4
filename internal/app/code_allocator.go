package app

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"

	"live-quiz-service/internal/domain"
)

const codeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// bytes at or above this bound are rejected so every symbol is equally likely.
const codeByteBound = 256 - 256%len(codeAlphabet)

// CodeChecker reports whether a room already holds a code.
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeAllocator hands out room codes that no existing room holds.
// Two concurrent allocations may still pick the same code; the store's
// unique index is the final guard.
type CodeAllocator struct {
	rooms  CodeChecker
	random io.Reader
}

func NewCodeAllocator(rooms CodeChecker) *CodeAllocator {
	return NewCodeAllocatorWithSource(rooms, rand.Reader)
}

// NewCodeAllocatorWithSource lets tests supply deterministic randomness.
func NewCodeAllocatorWithSource(rooms CodeChecker, random io.Reader) *CodeAllocator {
	return &CodeAllocator{rooms: rooms, random: random}
}

// Generate retries until it finds a code no room holds.
func (a *CodeAllocator) Generate(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		code, err := a.randomCode()
		if err != nil {
			return "", err
		}
		exists, err := a.rooms.CodeExists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("check room code: %w", err)
		}
		if !exists {
			return code, nil
		}
	}
}

func (a *CodeAllocator) randomCode() (string, error) {
	code := make([]byte, 0, domain.RoomCodeLength)
	buf := make([]byte, domain.RoomCodeLength)
	for len(code) < domain.RoomCodeLength {
		if _, err := io.ReadFull(a.random, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= codeByteBound {
				continue
			}
			code = append(code, codeAlphabet[int(b)%len(codeAlphabet)])
			if len(code) == domain.RoomCodeLength {
				break
			}
		}
	}
	return string(code), nil
}
