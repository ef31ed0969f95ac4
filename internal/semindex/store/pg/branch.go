package pg

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// BranchRow records a branch's parent pointer so ancestryChain can resolve
// inherited content the way store/memstore's in-memory DB does; the
// versioned content store that owns real branch creation is expected to
// keep this table's rows in sync (or a host adapter may populate it
// directly from the store's own branch table via a view).
type BranchRow struct {
	Path   string `gorm:"primaryKey"`
	Parent string
}

func (BranchRow) TableName() string { return "branch_row" }

// ancestryChain returns [path, parent, grandparent, ..., root].
func ancestryChain(ctx context.Context, db *gorm.DB, path string) ([]string, error) {
	chain := []string{path}
	cur := path
	for {
		var row BranchRow
		err := db.WithContext(ctx).Where("path = ?", cur).Take(&row).Error
		if err == gorm.ErrRecordNotFound || row.Parent == "" {
			return chain, nil
		}
		if err != nil {
			return nil, fmt.Errorf("resolve branch ancestry for %q: %w", path, err)
		}
		chain = append(chain, row.Parent)
		cur = row.Parent
	}
}
