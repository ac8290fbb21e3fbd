package storage

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	"iotgate/internal/platform/models"
)

// Entry is one file or directory visible through a storage profile.
type Entry struct {
	Name     string `json:"name"`
	Path     string `json:"path"`
	Size     int64  `json:"size"`
	IsDir    bool   `json:"is_dir"`
	Modified int64  `json:"modified"`
}

var ErrInvalidPath = errors.New("path escapes the storage root")

// Local lists files on the local filesystem. Every profile's root is
// resolved under base/<org_id>/, so a profile can never reach another
// tenant's files no matter what its root_path says.
type Local struct {
	base string
}

func NewLocal(base string) *Local {
	return &Local{base: base}
}

func (l *Local) List(profile *models.StorageProfile, subPath string) ([]Entry, error) {
	root := filepath.Join(l.base, profile.OrganizationID, filepath.Clean("/"+profile.RootPath))

	dir := filepath.Join(root, filepath.Clean("/"+subPath))
	if dir != root && !strings.HasPrefix(dir, root+string(filepath.Separator)) {
		return nil, ErrInvalidPath
	}

	items, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, err
	}

	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		info, err := item.Info()
		if err != nil {
			continue
		}
		rel, _ := filepath.Rel(root, filepath.Join(dir, item.Name()))
		entries = append(entries, Entry{
			Name:     item.Name(),
			Path:     filepath.ToSlash(rel),
			Size:     info.Size(),
			IsDir:    item.IsDir(),
			Modified: info.ModTime().Unix(),
		})
	}
	return entries, nil
}
