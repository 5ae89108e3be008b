// Package update applies signed update payloads to a versioned install root.
// A payload is only ever extracted after the manifest signature and file
// digests have been validated.
package update

import (
	"archive/zip"
	"crypto/rsa"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"example.com/relgate/internal/manifest"
	"example.com/relgate/internal/validate"
)

const currentLinkName = "current"

// Options configure an Installer. PublicKey identifies the trusted publisher
// and is threaded through explicitly; there is no well-known key path.
type Options struct {
	InstallRoot string
	PublicKey   *rsa.PublicKey
	Strict      bool
	Concurrency int
}

// Result captures information about a successful installation.
type Result struct {
	Version         string
	PreviousVersion string
	ReleasePath     string
	ExtraFiles      []string
}

// Installer validates and installs signed update archives into a versioned
// install root, activating each release by swapping a "current" symlink.
type Installer struct {
	opts Options
}

// NewInstaller returns an Installer for the given options.
func NewInstaller(opts Options) (*Installer, error) {
	if opts.InstallRoot == "" {
		return nil, errors.New("install root is required")
	}
	if opts.PublicKey == nil {
		return nil, errors.New("publisher public key is required")
	}
	return &Installer{opts: opts}, nil
}

// Install validates the archive against its signed manifest and, on success,
// extracts it under releases/<version> and points the current symlink at it.
// Downgrades and reinstalls of the active version are refused.
func (i *Installer) Install(archivePath, manifestPath string) (Result, error) {
	if archivePath == "" {
		return Result{}, errors.New("empty archive path")
	}
	if manifestPath == "" {
		return Result{}, errors.New("empty manifest path")
	}
	res, err := validate.Files(manifestPath, archivePath, i.opts.PublicKey, validate.Options{
		Strict:      i.opts.Strict,
		Concurrency: i.opts.Concurrency,
	})
	if err != nil {
		return Result{}, fmt.Errorf("validate payload: %w", err)
	}

	currentVersion, err := i.InstalledVersion()
	if err != nil {
		return Result{}, fmt.Errorf("read installed version: %w", err)
	}
	if currentVersion != "" && compareVersions(res.Version, currentVersion) <= 0 {
		return Result{}, fmt.Errorf("update version %s is not newer than installed %s", res.Version, currentVersion)
	}

	releasesDir := filepath.Join(i.opts.InstallRoot, "releases")
	if err := os.MkdirAll(releasesDir, 0o755); err != nil {
		return Result{}, fmt.Errorf("releases dir: %w", err)
	}
	releaseDir := filepath.Join(releasesDir, res.Version)
	if _, err := os.Stat(releaseDir); err == nil {
		return Result{}, fmt.Errorf("version %s already installed", res.Version)
	}

	tempDir, err := os.MkdirTemp(releasesDir, "pending-")
	if err != nil {
		return Result{}, fmt.Errorf("extract temp: %w", err)
	}
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.RemoveAll(tempDir)
		}
	}()
	if err := extractArchive(archivePath, tempDir); err != nil {
		return Result{}, err
	}
	if err := os.Rename(tempDir, releaseDir); err != nil {
		return Result{}, fmt.Errorf("activate release: %w", err)
	}
	cleanup = false
	if err := i.swapCurrentSymlink(releaseDir); err != nil {
		return Result{}, err
	}
	return Result{
		Version:         res.Version,
		PreviousVersion: currentVersion,
		ReleasePath:     releaseDir,
		ExtraFiles:      res.Extra,
	}, nil
}

// InstalledVersion returns the currently active version, if any. Versions are
// the names of the release directories the current symlink points at.
func (i *Installer) InstalledVersion() (string, error) {
	currentPath := filepath.Join(i.opts.InstallRoot, currentLinkName)
	target, err := os.Readlink(currentPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", nil
		}
		return "", err
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(filepath.Dir(currentPath), target)
	}
	return filepath.Base(filepath.Clean(target)), nil
}

func (i *Installer) swapCurrentSymlink(releaseDir string) error {
	currentPath := filepath.Join(i.opts.InstallRoot, currentLinkName)
	tmp := currentPath + ".tmp"
	_ = os.Remove(tmp)
	if err := os.Symlink(releaseDir, tmp); err != nil {
		return fmt.Errorf("create tmp symlink: %w", err)
	}
	if err := os.Rename(tmp, currentPath); err != nil {
		return fmt.Errorf("activate symlink: %w", err)
	}
	return nil
}

func extractArchive(archivePath, dest string) error {
	r, err := zip.OpenReader(archivePath)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()
	for _, file := range r.File {
		name, err := manifest.NormalizePath(file.Name)
		if err != nil {
			return err
		}
		if name == "" {
			continue
		}
		targetPath := filepath.Join(dest, filepath.FromSlash(name))
		if file.FileInfo().IsDir() {
			if err := os.MkdirAll(targetPath, 0o755); err != nil {
				return fmt.Errorf("mkdir %s: %w", targetPath, err)
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0o755); err != nil {
			return fmt.Errorf("mkdir %s: %w", filepath.Dir(targetPath), err)
		}
		if err := extractEntry(file, targetPath); err != nil {
			return err
		}
	}
	return nil
}

func extractEntry(file *zip.File, targetPath string) error {
	rc, err := file.Open()
	if err != nil {
		return fmt.Errorf("open entry %s: %w", file.Name, err)
	}
	defer rc.Close()
	mode := file.Mode()
	if mode == 0 {
		mode = 0o644
	}
	out, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return fmt.Errorf("create %s: %w", targetPath, err)
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return fmt.Errorf("extract %s: %w", file.Name, err)
	}
	return out.Close()
}

func compareVersions(a, b string) int {
	if a == b {
		return 0
	}
	ap := parseVersionParts(a)
	bp := parseVersionParts(b)
	n := len(ap)
	if len(bp) > n {
		n = len(bp)
	}
	for i := 0; i < n; i++ {
		ai := 0
		if i < len(ap) {
			ai = ap[i]
		}
		bi := 0
		if i < len(bp) {
			bi = bp[i]
		}
		if ai > bi {
			return 1
		}
		if ai < bi {
			return -1
		}
	}
	if len(ap) > len(bp) {
		return 1
	}
	if len(ap) < len(bp) {
		return -1
	}
	return strings.Compare(a, b)
}

func parseVersionParts(s string) []int {
	parts := strings.Split(s, ".")
	out := make([]int, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			out = append(out, 0)
			continue
		}
		v := 0
		for _, ch := range p {
			if ch < '0' || ch > '9' {
				v = -1
				break
			}
			v = v*10 + int(ch-'0')
		}
		if v < 0 {
			return []int{0}
		}
		out = append(out, v)
	}
	return out
}

// FindArchive locates a single .zip archive within dir.
func FindArchive(dir string) (string, error) {
	if dir == "" {
		return "", errors.New("empty directory")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return "", err
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", dir)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	matches := make([]string, 0, 1)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if strings.HasSuffix(strings.ToLower(name), ".zip") {
			matches = append(matches, filepath.Join(dir, name))
		}
	}
	if len(matches) == 0 {
		return "", errors.New("no .zip archive found")
	}
	if len(matches) > 1 {
		return "", fmt.Errorf("multiple .zip archives found in %s", dir)
	}
	return matches[0], nil
}
