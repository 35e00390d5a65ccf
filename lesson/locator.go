package lesson

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Locator finds the image for one page of a document.
type Locator interface {
	// Locate returns the asset reference and whether it exists. A page that
	// does not exist is not an error.
	Locate(ctx context.Context, doc Document, page int) (asset string, found bool, err error)
}

// DirLocator resolves pages to files under Root/<pages_dir>/<page_pattern>.
type DirLocator struct {
	Root string
}

func (l DirLocator) Locate(_ context.Context, doc Document, page int) (string, bool, error) {
	pattern := doc.PagePattern
	if pattern == "" {
		pattern = DefaultPagePattern
	}
	p := filepath.Join(l.Root, doc.PagesDir, fmt.Sprintf(pattern, page))
	st, err := os.Stat(p)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return p, false, nil
	case err != nil:
		return "", false, err
	case st.IsDir():
		return p, false, nil
	}
	return p, true, nil
}
