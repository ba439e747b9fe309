// Package storage holds the image stores used for registration uploads.
package storage

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// objectKey returns a unique, date partitioned key that keeps the original
// extension, e.g. enrollment/2024/5/17/<uuid>.png
func objectKey(folder, filename string, now time.Time) string {
	ext := strings.ToLower(filepath.Ext(filename))
	key := fmt.Sprintf("%d/%d/%d/%s%s", now.Year(), now.Month(), now.Day(), uuid.New(), ext)
	if folder = strings.Trim(folder, "/"); folder != "" {
		key = path.Join(folder, key)
	}
	return key
}
