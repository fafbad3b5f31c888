package hub

import (
	"context"
	"math/rand"
	"os"
	"path"
	"time"

	"github.com/gofrs/flock"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/gomlx/go-tokencls/internal/downloader"
	"github.com/gomlx/go-tokencls/internal/files"
)

// DownloadFile fetches fileName into the local cache and returns its path.
// A file already in the cache is returned immediately.
func (r *Repo) DownloadFile(ctx context.Context, fileName string) (string, error) {
	return r.download(ctx, fileName, false, nil)
}

// ForceDownloadFile is DownloadFile discarding any cached copy first.
func (r *Repo) ForceDownloadFile(ctx context.Context, fileName string) (string, error) {
	return r.download(ctx, fileName, true, nil)
}

// DownloadFileWithProgress is DownloadFile reporting progress as bytes
// arrive.
func (r *Repo) DownloadFileWithProgress(ctx context.Context, fileName string, progress downloader.ProgressCallback) (string, error) {
	return r.download(ctx, fileName, false, progress)
}

// download fetches url to the cache path for fileName.
//
// The file lands in filePath+".downloading" first and moves into place with
// an atomic rename. A filePath+".lock" file coordinates multiple processes
// downloading the same file at the same time.
func (r *Repo) download(ctx context.Context, fileName string, force bool, progress downloader.ProgressCallback) (string, error) {
	filePath := r.localPath(fileName)
	url := r.FileURL(fileName)
	if files.Exists(filePath) {
		if !force {
			return filePath, nil
		}
		if err := os.Remove(filePath); err != nil {
			return "", errors.Wrapf(err, "failed to remove %q while force-downloading %q", filePath, url)
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err := os.MkdirAll(path.Dir(filePath), DefaultDirCreationPerm); err != nil {
		return "", errors.Wrapf(err, "failed to create directory for file %q", filePath)
	}

	lockPath := filePath + ".lock"
	var mainErr error
	errLock := execOnFileLock(ctx, lockPath, func() {
		if files.Exists(filePath) {
			// Another process (or goroutine) got here first.
			return
		}
		tmpPath := filePath + ".downloading"
		klog.V(1).Infof("downloading %s -> %s", url, filePath)
		mainErr = r.getDownloadManager().Download(ctx, url, tmpPath, progress)
		if mainErr != nil {
			if err := os.Remove(tmpPath); err != nil && !os.IsNotExist(err) {
				klog.Warningf("failed removing temporary file %q: %v", tmpPath, err)
			}
			mainErr = errors.WithMessagef(mainErr, "while downloading %q to %q", url, tmpPath)
			return
		}
		if err := os.Rename(tmpPath, filePath); err != nil {
			mainErr = errors.Wrapf(err, "failed to move downloaded file %q to %q", tmpPath, filePath)
			return
		}
		// The target exists now, the lock file has served its purpose.
		if err := os.Remove(lockPath); err != nil {
			klog.Warningf("failed removing lock file %q: %v", lockPath, err)
		}
	})
	if mainErr != nil {
		return "", mainErr
	}
	if errLock != nil {
		return "", errors.WithMessagef(errLock, "while locking %q to download %q", lockPath, url)
	}
	return filePath, nil
}

// execOnFileLock locks lockPath (creating it if needed) and runs fn while
// holding the lock. A held lock is polled with a 1 to 2 second period until
// acquired or the context ends.
func execOnFileLock(ctx context.Context, lockPath string, fn func()) (err error) {
	fileLock := flock.New(lockPath)
	for {
		locked, err := fileLock.TryLock()
		if err != nil {
			return errors.Wrapf(err, "while trying to lock %q", lockPath)
		}
		if locked {
			break
		}
		select {
		case <-time.After(time.Millisecond * time.Duration(1000+rand.Intn(1000))):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	defer func() {
		unlockErr := fileLock.Unlock()
		if unlockErr != nil && err == nil {
			err = errors.Wrapf(unlockErr, "unlocking file %q", lockPath)
		}
	}()
	fn()
	return
}
