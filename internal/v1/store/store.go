// Package store holds the line-file primitives shared by the user and room
// directories: append a record, or rewrite the file dropping records, with
// atomic replacement via a sibling backup file.
package store

import (
	"bufio"
	"fmt"
	"os"
)

// AppendLine appends line plus a newline to the file at path, creating it if
// needed.
func AppendLine(path, line string) error {
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	if _, err := file.WriteString(line + "\n"); err != nil {
		_ = file.Close()
		return fmt.Errorf("append %s: %w", path, err)
	}
	return file.Close()
}

// FilterFile rewrites path keeping only the lines for which keep returns
// true. Kept lines are streamed to backupPath, which is then renamed over
// path so readers never observe a partial file. Empty lines are dropped.
func FilterFile(path, backupPath string, keep func(line string) bool) error {
	src, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}

	dst, err := os.Create(backupPath)
	if err != nil {
		_ = src.Close()
		return fmt.Errorf("create %s: %w", backupPath, err)
	}

	writer := bufio.NewWriter(dst)
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || !keep(line) {
			continue
		}
		if _, err := writer.WriteString(line + "\n"); err != nil {
			_ = src.Close()
			_ = dst.Close()
			return fmt.Errorf("write %s: %w", backupPath, err)
		}
	}
	_ = src.Close()
	if err := scanner.Err(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := writer.Flush(); err != nil {
		_ = dst.Close()
		return fmt.Errorf("flush %s: %w", backupPath, err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("close %s: %w", backupPath, err)
	}

	return os.Rename(backupPath, path)
}
