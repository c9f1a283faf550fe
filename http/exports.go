package http

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
)

// Export 可下载的预测结果
type Export struct {
	ID        string
	FileName  string
	Rows      int
	CSV       []byte
	CreatedAt time.Time
}

// ExportStore keeps the most recent batch exports in memory until they are
// evicted by newer ones.
type ExportStore struct {
	cache    *lru.Cache[string, Export]
	fileName string
}

// NewExportStore 创建导出缓存
func NewExportStore(size int, fileName string) (*ExportStore, error) {
	cache, err := lru.New[string, Export](size)
	if err != nil {
		return nil, fmt.Errorf("create export cache: %w", err)
	}
	return &ExportStore{cache: cache, fileName: fileName}, nil
}

// Put stores csv under a fresh identifier.
func (s *ExportStore) Put(csv []byte, rows int) Export {
	export := Export{
		ID:        uuid.NewString(),
		FileName:  s.fileName,
		Rows:      rows,
		CSV:       csv,
		CreatedAt: time.Now(),
	}
	s.cache.Add(export.ID, export)
	return export
}

func (s *ExportStore) Get(id string) (Export, bool) {
	return s.cache.Get(id)
}

func (s *ExportStore) Len() int {
	return s.cache.Len()
}
