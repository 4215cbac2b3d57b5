package ktx2

import (
	"fmt"
	"log"
	"os"
)

// AddKeyValueData inserts (key, value) into the container at path,
// rewriting the file in place. The magic check fails closed before any
// byte of the file is modified. The write itself is not atomic: a crash
// mid-write can corrupt the file, a documented risk of in-place patching.
// A nil logger discards diagnostics.
func AddKeyValueData(path, key string, value []byte, logger *log.Logger) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("ktx2: patch %s: %v", path, r)
		}
	}()

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ktx2: read %s: %w", path, err)
	}

	f, err := Parse(data)
	if err != nil {
		return fmt.Errorf("ktx2: parse %s: %w", path, err)
	}

	before := len(f.Data)
	if err := f.InsertKeyValue(key, value); err != nil {
		return fmt.Errorf("ktx2: patch %s: %w", path, err)
	}
	if logger != nil {
		logger.Printf("ktx2: %s: inserted %q (%d bytes, file %d -> %d)",
			path, key, len(f.Data)-before, before, len(f.Data))
	}

	if err := os.WriteFile(path, f.Serialize(), 0644); err != nil {
		return fmt.Errorf("ktx2: write %s: %w", path, err)
	}
	return nil
}
