// Package sitefile links a working directory to a project, so commands run
// inside a site folder default to that project.
package sitefile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

const FileName = ".fieldsync-project"

// Find walks up from startDir looking for a link file.
// Returns the project ID and the directory containing the file.
// Returns ("", "", nil) if not found.
func Find(startDir string) (projectID, dir string, err error) {
	dir = startDir
	for {
		id, err := Read(dir)
		if err != nil {
			return "", "", err
		}
		if id != "" {
			return id, dir, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", "", nil
		}
		dir = parent
	}
}

func Write(dir, projectID string) error {
	return os.WriteFile(filepath.Join(dir, FileName), []byte(projectID+"\n"), 0644)
}

// Read returns ("", nil) if dir has no link file.
func Read(dir string) (string, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return strings.TrimSpace(string(data)), nil
}

// Remove deletes the link file in dir. A missing file is not an error.
func Remove(dir string) error {
	err := os.Remove(filepath.Join(dir, FileName))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
