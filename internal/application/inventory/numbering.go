package inventory

import (
	"context"
	"fmt"
)

// Document number formats. Sequences restart every calendar year and are
// allocated inside the committing transaction, so gaps only appear when an
// operation is reverted.
const (
	dispatchNoFormat = "DISP-%d-%04d"
	returnNoFormat   = "RET-%d-%03d"
	scrapNoFormat    = "SCR-%d-%03d"
)

type maxNumberFinder interface {
	MaxNumberForYear(ctx context.Context, year int) (int, error)
}

func nextDocumentNo(ctx context.Context, repo maxNumberFinder, format string, year int) (string, error) {
	max, err := repo.MaxNumberForYear(ctx, year)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(format, year, max+1), nil
}
