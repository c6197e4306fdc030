package filestore

import (
	"math/rand"
	"path/filepath"
	"strconv"
	"time"
)

const (
	maxRandom    = 1_000_000_000
	maxExtLength = 16
)

// NameGenerator produces storage names of the form
// <epoch-millis>-<random 0..1e9><ext>. They are unique in practice, not
// unguessable.
type NameGenerator struct {
	now  func() time.Time
	intn func(n int) int
}

// NewNameGenerator returns a generator backed by the wall clock and
// math/rand.
func NewNameGenerator() *NameGenerator {
	return &NameGenerator{now: time.Now, intn: rand.Intn}
}

// Next returns a fresh storage name keeping the extension of originalName.
func (g *NameGenerator) Next(originalName string) string {
	millis := g.now().UnixMilli()
	n := g.intn(maxRandom + 1)
	return strconv.FormatInt(millis, 10) + "-" + strconv.Itoa(n) + SafeExt(originalName)
}

// SafeExt returns the extension of name, dot included, or "" when it holds
// anything but ASCII letters and digits. The client filename is untrusted so
// nothing else from it reaches the filesystem.
func SafeExt(name string) string {
	ext := filepath.Ext(name)
	if len(ext) < 2 || len(ext) > maxExtLength || ext == name {
		return ""
	}
	for _, c := range ext[1:] {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			return ""
		}
	}
	return ext
}
