package agentloop

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"github.com/spf13/afero"
)

// DirEntry represents a filesystem directory entry.
type DirEntry struct {
	Name  string `json:"name"`
	IsDir bool   `json:"is_dir"`
	Size  int64  `json:"size,omitempty"`
}

// ExecutionEnvironment abstracts the filesystem the tools operate on.
// Relative paths resolve against WorkingDirectory.
type ExecutionEnvironment interface {
	ReadFile(path string) (string, error)
	WriteFile(path string, content string) error
	FileExists(path string) (bool, error)
	ListDirectory(path string) ([]DirEntry, error)
	WorkingDirectory() string
}

// FileSystemEnvironment runs tools against an afero filesystem.
type FileSystemEnvironment struct {
	fs         afero.Fs
	workingDir string
}

// NewFileSystemEnvironment creates an environment over fs rooted at
// workingDir.
func NewFileSystemEnvironment(fs afero.Fs, workingDir string) *FileSystemEnvironment {
	if workingDir == "" {
		workingDir = string(filepath.Separator)
	}
	return &FileSystemEnvironment{fs: fs, workingDir: filepath.Clean(workingDir)}
}

// NewLocalEnvironment creates an environment over the OS filesystem. An
// empty workingDir means the process working directory.
func NewLocalEnvironment(workingDir string) (*FileSystemEnvironment, error) {
	if workingDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, errors.Wrap(err, "determine working directory")
		}
		workingDir = wd
	}
	abs, err := filepath.Abs(workingDir)
	if err != nil {
		return nil, errors.Wrapf(err, "resolve working directory %s", workingDir)
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.Wrapf(err, "working directory %s", abs)
	}
	if !info.IsDir() {
		return nil, errors.Errorf("working directory %s is not a directory", abs)
	}
	return NewFileSystemEnvironment(afero.NewOsFs(), abs), nil
}

func (e *FileSystemEnvironment) WorkingDirectory() string {
	return e.workingDir
}

func (e *FileSystemEnvironment) resolvePath(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(e.workingDir, path)
}

func (e *FileSystemEnvironment) ReadFile(path string) (string, error) {
	resolved := e.resolvePath(path)
	info, err := e.fs.Stat(resolved)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		return "", errors.Errorf("%s is a directory", path)
	}
	data, err := afero.ReadFile(e.fs, resolved)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// WriteFile replaces the file's content, creating missing parent
// directories.
func (e *FileSystemEnvironment) WriteFile(path string, content string) error {
	resolved := e.resolvePath(path)
	if err := e.fs.MkdirAll(filepath.Dir(resolved), 0755); err != nil {
		return errors.Wrapf(err, "create parent directories for %s", path)
	}
	return afero.WriteFile(e.fs, resolved, []byte(content), 0644)
}

func (e *FileSystemEnvironment) FileExists(path string) (bool, error) {
	return afero.Exists(e.fs, e.resolvePath(path))
}

// ListDirectory returns the immediate children of path sorted by name.
func (e *FileSystemEnvironment) ListDirectory(path string) ([]DirEntry, error) {
	resolved := e.resolvePath(path)
	info, err := e.fs.Stat(resolved)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, errors.Errorf("%s is not a directory", path)
	}

	infos, err := afero.ReadDir(e.fs, resolved)
	if err != nil {
		return nil, err
	}
	entries := make([]DirEntry, 0, len(infos))
	for _, fi := range infos {
		de := DirEntry{Name: fi.Name(), IsDir: fi.IsDir()}
		if !fi.IsDir() {
			de.Size = fi.Size()
		}
		entries = append(entries, de)
	}
	return entries, nil
}
