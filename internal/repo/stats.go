package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-trademark-backend/internal/domain"
)

// likeEscaper makes a key prefix literal inside LIKE ... ESCAPE '\'.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// RecordStats counts the kv_records whose key starts with prefix and
// returns the newest UpdatedAt among them, nil when none match.
func RecordStats(ctx context.Context, db *gorm.DB, prefix string) (int64, *time.Time, error) {
	scope := db.WithContext(ctx).
		Model(&domain.KVRecord{}).
		Where(`key LIKE ? ESCAPE '\'`, likeEscaper.Replace(prefix)+"%").
		Session(&gorm.Session{})

	var n int64
	if err := scope.Count(&n).Error; err != nil || n == 0 {
		return 0, nil, err
	}

	// SQLite returns MAX(updated_at) as TEXT, so take the newest row instead.
	var latest domain.KVRecord
	if err := scope.Select("updated_at").Order("updated_at DESC").Take(&latest).Error; err != nil {
		return 0, nil, err
	}
	return n, &latest.UpdatedAt, nil
}
