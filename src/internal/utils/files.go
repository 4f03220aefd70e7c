package utils

import (
	"fmt"
	"io"
	"os"

	"github.com/maksimkurb/keen-iprules/src/internal/log"
)

// CloseOrWarn closes c and logs a warning if that fails.
func CloseOrWarn(c io.Closer) {
	if err := c.Close(); err != nil {
		log.Warnf("Failed to close file: %v", err)
	}
}

// ReadFileLimited reads the whole file, failing when it is larger than limit bytes.
func ReadFileLimited(path string, limit int64) ([]byte, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer CloseOrWarn(file)

	content, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(content)) > limit {
		return nil, fmt.Errorf("%s is larger than %d bytes", path, limit)
	}
	return content, nil
}
