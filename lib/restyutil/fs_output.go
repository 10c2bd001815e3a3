package restyutil

import (
	"log/slog"
	"os"
	"path/filepath"
)

// FilesystemOutput writes every transcript into its own file in a directory.
type FilesystemOutput struct {
	directory string
}

// NewFilesystemOutput creates dir if it is missing. Existing transcripts are left alone, ids
// are prefixed with the process start so runs do not overwrite each other.
func NewFilesystemOutput(dir string) (FilesystemOutput, error) {
	err := os.MkdirAll(dir, 0o755)
	if err != nil {
		return FilesystemOutput{}, err
	}
	return FilesystemOutput{directory: dir}, nil
}

func (o FilesystemOutput) Write(id string, contents string) {
	err := os.WriteFile(filepath.Join(o.directory, id+".txt"), []byte(contents), 0o600)
	if err != nil {
		slog.Warn("failed to write http transcript", "id", id, "err", err)
	}
}
