package artifact

import (
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"
)

const (
	ImageExt   = ".png"
	SidecarExt = ".prompt"

	// TimeLayout is zero padded so that stems sort by creation time
	TimeLayout = "2006-01-02-15-04-05"

	suffixBytes = 4
)

// Stem is the shared file name of an image and its prompt sidecar:
// {UTC time}-{style}-{quality}-{resolution}-{8 hex}
type Stem string

func NewStem(now time.Time, style, quality, resolution string, random io.Reader) (Stem, error) {
	buf := make([]byte, suffixBytes)
	if _, err := io.ReadFull(random, buf); err != nil {
		return "", fmt.Errorf("reading random suffix: %w", err)
	}
	parts := []string{
		now.UTC().Format(TimeLayout),
		safeSegment(style),
		safeSegment(quality),
		safeSegment(resolution),
		hex.EncodeToString(buf),
	}
	return Stem(strings.Join(parts, "-")), nil
}

func (s Stem) String() string {
	return string(s)
}

func (s Stem) ImageName() string {
	return string(s) + ImageExt
}

func (s Stem) SidecarName() string {
	return string(s) + SidecarExt
}

// StemFromImageName reverses ImageName; hidden and non-image names are rejected
func StemFromImageName(name string) (Stem, bool) {
	if !strings.HasSuffix(name, ImageExt) || strings.HasPrefix(name, ".") {
		return "", false
	}
	stem := strings.TrimSuffix(name, ImageExt)
	if stem == "" {
		return "", false
	}
	return Stem(stem), true
}

// safeSegment keeps request values usable inside a file name. Quality and
// resolution reach this point unvalidated.
func safeSegment(value string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '-' || r == '_':
			return r
		default:
			return '_'
		}
	}, value)
}
