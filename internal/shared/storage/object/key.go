package object

import (
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"

	"callcenter-backend/internal/shared/util"
)

const ownerHashLen = 16

// NewKey returns a fresh storage key for a recording:
// <owner hash>/<yyyy>/<mm>/<uuid>_<sanitized name>.
func NewKey(owner, fileName string, now time.Time) (string, error) {
	name, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", fmt.Errorf("sanitize file name: %w", err)
	}
	now = now.UTC()
	return path.Join(
		util.ShortHash(owner, ownerHashLen),
		fmt.Sprintf("%04d", now.Year()),
		fmt.Sprintf("%02d", int(now.Month())),
		uuid.NewString()+"_"+name,
	), nil
}
