package upload

import (
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
)

const filenameTimestampLayout = "20060102_150405"

// GenerateFilename builds "{base}_{YYYYMMDD_HHMMSS}_{suffix}{ext}". The base
// keeps letters, digits, spaces, hyphens and underscores, is trimmed, and
// has spaces replaced by underscores.
func GenerateFilename(original string, at time.Time, suffix string) string {
	ext := Extension(original)
	base := baseName(original)
	if ext != "" {
		base = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return sanitizeBase(base) + "_" + at.Format(filenameTimestampLayout) + "_" + suffix + ext
}

func RandomSuffix() string {
	return uuid.NewString()[:8]
}

func sanitizeBase(base string) string {
	var builder strings.Builder
	for _, r := range base {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '-' || r == '_' {
			builder.WriteRune(r)
		}
	}
	return strings.ReplaceAll(strings.TrimSpace(builder.String()), " ", "_")
}
