package util

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}

// NewSectionKey builds a section key from an icon tag plus a high-resolution
// timestamp, so custom sections never collide with compiled-in template keys.
func NewSectionKey(iconKey string) string {
	if iconKey == "" {
		iconKey = "note"
	}
	return fmt.Sprintf("%s-%d", iconKey, time.Now().UnixNano())
}
