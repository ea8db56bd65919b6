package store

import (
	"errors"
	"strings"
	"time"

	"plantshop/internal/logger"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a lookup matches no active row.
var ErrNotFound = errors.New("store: not found")

// Store is the reconciliation store: the only writer of the products and
// sync_logs tables, and the read side the storefront queries.
type Store struct {
	db     *gorm.DB
	logger *logger.Logger
	now    func() time.Time
}

func New(db *gorm.DB, log *logger.Logger, now func() time.Time) *Store {
	if log == nil {
		log = logger.Discard()
	}
	if now == nil {
		now = time.Now
	}
	return &Store{
		db:     db,
		logger: log,
		now:    now,
	}
}

// timestamp is the store clock normalized so that stored times compare
// correctly on every dialect.
func (s *Store) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Second)
}

// isUniqueViolation recognizes unique-constraint failures from lib/pq and
// sqlite.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func chunkStrings(values []string, size int) [][]string {
	var chunks [][]string
	for start := 0; start < len(values); start += size {
		end := start + size
		if end > len(values) {
			end = len(values)
		}
		chunks = append(chunks, values[start:end])
	}
	return chunks
}
