package converter

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"

	"github.com/venkytv/calendar-converter/internal/apperr"
	"github.com/zeebo/blake3"
)

// Output describes the last written export document.
type Output struct {
	Path   string
	Bytes  int
	Digest string // BLAKE3-256, hex encoded
}

// Save serializes the export document and writes it to the export path,
// replacing any existing file.
func (c *Converter) Save(ctx context.Context) error {
	if !c.converted || c.importDoc == nil || c.exportDoc == nil {
		return &apperr.PreconditionError{Operation: "save", Reason: "convert has not completed"}
	}
	if c.exportPath == "" {
		return &apperr.PreconditionError{Operation: "save", Reason: "no export path configured"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	var buf bytes.Buffer
	if err := c.format.Write(&buf, c.exportDoc); err != nil {
		return fmt.Errorf("failed to serialize export document: %w", err)
	}
	data := buf.Bytes()

	if err := writeFileAtomic(c.exportPath, data, 0o644); err != nil {
		return err
	}

	sum := blake3.Sum256(data)
	c.output = &Output{
		Path:   c.exportPath,
		Bytes:  len(data),
		Digest: hex.EncodeToString(sum[:]),
	}

	c.logger.Info("Saved export document",
		"path", c.output.Path,
		"bytes", c.output.Bytes,
		"events", c.exportDoc.Len(),
		"digest", c.output.Digest)
	return nil
}

// Output returns the result of the last successful Save, or nil.
func (c *Converter) Output() *Output {
	return c.output
}

// writeFileAtomic writes data to a temporary file next to path and renames
// it into place.
func writeFileAtomic(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return &apperr.IOError{Operation: "write", Path: path, Err: err}
	}
	tmpName := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpName)
		return &apperr.IOError{Operation: "write", Path: path, Err: err}
	}

	if _, err := tmp.Write(data); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}
	if err := tmp.Chmod(perm); err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return &apperr.IOError{Operation: "write", Path: path, Err: err}
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return &apperr.IOError{Operation: "write", Path: path, Err: err}
	}
	return nil
}
