package service

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"regexp"
)

// TrackIDPrefix 追踪ID前缀
const TrackIDPrefix = "0x"

var trackIDPattern = regexp.MustCompile(`^0x[0-9a-f]{32}$`)

// TrackIDGenerator 生成 0x + 32 位小写十六进制的追踪ID（128 位随机数）
type TrackIDGenerator struct {
	rand io.Reader
}

// NewTrackIDGenerator 使用给定随机源，nil 时使用 crypto/rand
func NewTrackIDGenerator(r io.Reader) *TrackIDGenerator {
	if r == nil {
		r = rand.Reader
	}
	return &TrackIDGenerator{rand: r}
}

// Next 生成新的追踪ID
func (g *TrackIDGenerator) Next() (string, error) {
	buf := make([]byte, 16)
	if _, err := io.ReadFull(g.rand, buf); err != nil {
		return "", fmt.Errorf("generate track id: %w", err)
	}
	return TrackIDPrefix + hex.EncodeToString(buf), nil
}

// IsTrackID 判断字符串是否符合追踪ID格式
func IsTrackID(s string) bool {
	return trackIDPattern.MatchString(s)
}
