package editor

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// ErrUnchanged is returned by Edit when the user saved the template as is.
var ErrUnchanged = fmt.Errorf("draft unchanged, nothing to submit")

func editorCmd() string {
	if e := os.Getenv("EDITOR"); e != "" {
		return e
	}
	if e := os.Getenv("VISUAL"); e != "" {
		return e
	}
	return "vi"
}

// Open runs the user's editor on path. EDITOR may carry arguments, e.g. "code --wait".
func Open(path string) error {
	editor := editorCmd()
	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("editor %q: %w", editor, err)
	}
	return nil
}

// Edit writes template to a scratch file in dir, opens it, and returns what
// the user saved. The scratch file is kept when the edit fails so nothing
// typed is lost, and removed otherwise.
func Edit(dir string, template []byte) ([]byte, string, error) {
	f, err := os.CreateTemp(dir, "report-*.md")
	if err != nil {
		return nil, "", fmt.Errorf("creating draft: %w", err)
	}
	path := f.Name()
	if _, err := f.Write(template); err != nil {
		f.Close()
		return nil, path, fmt.Errorf("writing draft: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, path, fmt.Errorf("writing draft: %w", err)
	}

	if err := Open(path); err != nil {
		return nil, path, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("reading draft: %w", err)
	}
	if bytes.Equal(bytes.TrimSpace(data), bytes.TrimSpace(template)) {
		os.Remove(path)
		return nil, "", ErrUnchanged
	}
	os.Remove(path)
	return data, "", nil
}
