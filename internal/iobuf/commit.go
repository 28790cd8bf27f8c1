package iobuf

import (
	"os"

	"github.com/google/renameio"
)

// Commit writes buf's contents to path with atomic semantics: a sibling
// temp file is written and fsynced, then renamed over path. On any failure
// the temp file is removed and no partial write is ever visible at path.
func Commit(path string, buf *Buffer, perm os.FileMode) error {
	return renameio.WriteFile(path, buf.Bytes(), perm)
}
