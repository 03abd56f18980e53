package repository

import "context"

// IFolderWatcher reports stable new video files in a single directory
type IFolderWatcher interface {
	Start(ctx context.Context, root string, checkExisting bool) error
	Stop()
	// Scan lists stable files in root (or the current folder when root is
	// empty) that the scheduler does not already know about.
	Scan(ctx context.Context, root string) ([]string, error)
	Events() <-chan string
	Folder() string
	Running() bool
	LastError() error
}
