package health

import (
	"context"
	"errors"
	"fmt"
	"os"
)

// DirReadable reports whether path is an existing, listable directory.
func DirReadable(name, path string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if _, err := os.ReadDir(path); err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		return nil
	}}
}

// DirWritable reports whether a file can be created in path. A missing
// directory is created, matching what the pipeline does before writing.
func DirWritable(name, path string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return err
		}
		f, err := os.CreateTemp(path, ".probe-*")
		if err != nil {
			return err
		}
		probe := f.Name()
		return errors.Join(f.Close(), os.Remove(probe))
	}}
}

// Configured fails with msg when ok is false. It covers static
// prerequisites such as an LLM API key that cannot change while running.
func Configured(name string, ok bool, msg string) Checker {
	return Checker{Name: name, Check: func(context.Context) error {
		if !ok {
			return errors.New(msg)
		}
		return nil
	}}
}
