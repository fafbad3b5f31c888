// Package hub caches remote run assets locally: tokenizer vocabularies,
// label lists and dataset shards published on a HuggingFace-style hub.
//
// Downloads are coordinated with file locks so concurrent processes pulling
// the same asset do the work once.
package hub

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gomlx/go-tokencls/internal/downloader"
)

// DefaultEndpoint is the hub every Repo points at unless overridden.
const DefaultEndpoint = "https://huggingface.co"

// DefaultDirCreationPerm is used when creating cache directories.
const DefaultDirCreationPerm = os.FileMode(0o755)

// RepoType selects the hub namespace a repository lives in.
type RepoType string

const (
	// RepoTypeModel is for model repositories (vocab, config files).
	RepoTypeModel RepoType = "models"
	// RepoTypeDataset is for dataset repositories (data shards).
	RepoTypeDataset RepoType = "datasets"
)

// Repo is a reference to a hub repository plus the local cache it downloads
// into. Configure with the With* chainable setters before first use.
type Repo struct {
	// ID is the "owner/name" repository id.
	ID string

	repoType  RepoType
	revision  string
	endpoint  string
	cacheDir  string
	authToken string

	// MaxParallelDownload bounds concurrent file downloads.
	MaxParallelDownload int

	downloadManager *downloader.Manager
}

// New creates a model Repo with default settings: "main" revision, cache
// under the user cache dir, public access.
func New(id string) *Repo {
	return &Repo{
		ID:                  id,
		repoType:            RepoTypeModel,
		revision:            "main",
		endpoint:            DefaultEndpoint,
		cacheDir:            DefaultCacheDir(),
		MaxParallelDownload: downloader.DefaultMaxParallel,
	}
}

// DefaultCacheDir returns the default local cache directory.
func DefaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		base = os.TempDir()
	}
	return filepath.Join(base, "go-tokencls", "hub")
}

// WithType sets the repository type. It returns the Repo to allow chaining.
func (r *Repo) WithType(t RepoType) *Repo {
	r.repoType = t
	return r
}

// WithRevision sets the git revision (branch, tag or commit) to fetch from.
func (r *Repo) WithRevision(revision string) *Repo {
	r.revision = revision
	return r
}

// WithEndpoint points the Repo at a different hub server.
func (r *Repo) WithEndpoint(endpoint string) *Repo {
	r.endpoint = strings.TrimRight(endpoint, "/")
	return r
}

// WithCacheDir sets the local cache directory.
func (r *Repo) WithCacheDir(dir string) *Repo {
	r.cacheDir = dir
	return r
}

// WithAuthToken sets the bearer token for gated repositories.
func (r *Repo) WithAuthToken(token string) *Repo {
	r.authToken = token
	return r
}

// FileURL returns the resolve URL for fileName at the Repo's revision.
func (r *Repo) FileURL(fileName string) string {
	prefix := ""
	if r.repoType == RepoTypeDataset {
		prefix = "datasets/"
	}
	return r.endpoint + "/" + prefix + r.ID + "/resolve/" + url.PathEscape(r.revision) + "/" + fileName
}

// localPath returns where fileName caches on disk. Repo id and revision are
// flattened so the whole cache for one repo sits in a single directory.
func (r *Repo) localPath(fileName string) string {
	flat := strings.ReplaceAll(r.ID, "/", "--")
	return filepath.Join(r.cacheDir, string(r.repoType), flat, r.revision, filepath.FromSlash(fileName))
}

func (r *Repo) getDownloadManager() *downloader.Manager {
	if r.downloadManager == nil {
		r.downloadManager = downloader.New().MaxParallel(r.MaxParallelDownload).WithAuthToken(r.authToken)
	}
	return r.downloadManager
}
