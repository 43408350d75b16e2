package agentloop

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"github.com/pkg/errors"
)

const (
	readFileDescription = "Read the contents of a given relative file path. " +
		"Use this when you want to see what's inside a file. Do not use this with directory names."
	listFilesDescription = "List files and directories at a given path. " +
		"If no path is provided, lists files in the current directory."
	editFileDescription = "Make edits to a text file.\n" +
		"Replaces 'old_str' with 'new_str' in the given file. 'old_str' and 'new_str' MUST be different from each other.\n" +
		"If the file specified with path doesn't exist, it will be created.\n"
)

// ReadFileInput is the argument object of read_file.
type ReadFileInput struct {
	Path string `json:"path" jsonschema_description:"The relative path of a file in the working directory."`
}

// ListFilesInput is the argument object of list_files.
type ListFilesInput struct {
	Path string `json:"path,omitempty" jsonschema_description:"Optional relative path to list files from. Defaults to current directory if not provided."`
}

// EditFileInput is the argument object of edit_file.
type EditFileInput struct {
	Path   string `json:"path" jsonschema_description:"The path to the file"`
	OldStr string `json:"old_str" jsonschema_description:"Text to search for - must match exactly and must only have one match exactly"`
	NewStr string `json:"new_str" jsonschema_description:"Text to replace old_str with"`
}

var (
	// ErrInvalidEditParameters is returned for an empty path or old_str == new_str.
	ErrInvalidEditParameters = errors.New("invalid input parameters")
	// ErrOldStrNotFound is returned when old_str does not occur in the file.
	ErrOldStrNotFound = errors.New("old_str not found in file")
)

// CoreTools returns read_file, list_files and edit_file bound to env.
func CoreTools(env ExecutionEnvironment) []ToolDefinition {
	return []ToolDefinition{
		ReadFileTool(env),
		ListFilesTool(env),
		EditFileTool(env),
	}
}

// ReadFileTool returns the file's contents unchanged.
func ReadFileTool(env ExecutionEnvironment) ToolDefinition {
	return NewTool(ReadFile, readFileDescription, func(_ context.Context, in ReadFileInput) (string, error) {
		return env.ReadFile(in.Path)
	})
}

// ListFilesTool lists the immediate children of a directory as a JSON array.
// Directories come first and carry a trailing "/". It never recurses.
func ListFilesTool(env ExecutionEnvironment) ToolDefinition {
	return NewTool(ListFiles, listFilesDescription, func(_ context.Context, in ListFilesInput) (string, error) {
		path := in.Path
		if path == "" {
			path = "."
		}
		entries, err := env.ListDirectory(path)
		if err != nil {
			return "", err
		}

		dirs := make([]string, 0, len(entries))
		files := make([]string, 0, len(entries))
		for _, entry := range entries {
			if entry.IsDir {
				dirs = append(dirs, entry.Name+"/")
			} else {
				files = append(files, entry.Name)
			}
		}
		sort.Strings(dirs)
		sort.Strings(files)

		out, err := json.Marshal(append(dirs, files...))
		if err != nil {
			return "", errors.Wrap(err, "encode listing")
		}
		return string(out), nil
	})
}

// EditFileTool replaces every occurrence of old_str with new_str, or creates
// the file when it does not exist and old_str is empty.
func EditFileTool(env ExecutionEnvironment) ToolDefinition {
	return NewTool(EditFile, editFileDescription, func(_ context.Context, in EditFileInput) (string, error) {
		if in.Path == "" || in.OldStr == in.NewStr {
			return "", ErrInvalidEditParameters
		}

		exists, err := env.FileExists(in.Path)
		if err != nil {
			return "", err
		}
		if !exists {
			if in.OldStr != "" {
				return "", errors.Errorf("file %s does not exist", in.Path)
			}
			if err := env.WriteFile(in.Path, in.NewStr); err != nil {
				return "", err
			}
			return "Successfully created file " + in.Path, nil
		}

		if in.OldStr == "" {
			return "", errors.Errorf("old_str must not be empty when editing existing file %s", in.Path)
		}
		content, err := env.ReadFile(in.Path)
		if err != nil {
			return "", err
		}
		if !strings.Contains(content, in.OldStr) {
			return "", ErrOldStrNotFound
		}
		if err := env.WriteFile(in.Path, strings.ReplaceAll(content, in.OldStr, in.NewStr)); err != nil {
			return "", err
		}
		return "OK", nil
	})
}
