package plugin

import (
	"archive/zip"
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/errgroup"

	"github.com/coda-editor/extend/internal/log"
)

// BundleExt is the reserved extension for packaged plugin archives.
const BundleExt = ".cxp"

// stagingDir is the work area inside the managed directory. Kept on the
// same filesystem so the final commit is a rename.
const stagingDir = ".staging"

// Installer manages the installed-plugin set: discovery of bundle
// directories, staged installation of new bundles, and uninstallation.
// It is the sole mutator of the Registry. Operations on the same plugin
// identifier share the engine's per-id locks, so an install never races a
// lifecycle transition for that id.
type Installer struct {
	managedDir  string
	searchDirs  []string
	hostVersion *semver.Version

	trustedKeys   []ed25519.PublicKey
	allowUnsigned bool

	registry *Registry
	engine   *Engine
	logger   log.Logger
}

// InstallerOption configures an Installer.
type InstallerOption func(*Installer)

// WithSearchDirs adds extra directories scanned during discovery, beyond
// the managed directory.
func WithSearchDirs(dirs ...string) InstallerOption {
	return func(i *Installer) {
		i.searchDirs = append(i.searchDirs, dirs...)
	}
}

// WithTrustedKeys sets the keys accepted during signature verification.
func WithTrustedKeys(keys ...ed25519.PublicKey) InstallerOption {
	return func(i *Installer) {
		i.trustedKeys = append(i.trustedKeys, keys...)
	}
}

// WithAllowUnsigned disables the signature requirement. Intended for
// development hosts only.
func WithAllowUnsigned(allow bool) InstallerOption {
	return func(i *Installer) {
		i.allowUnsigned = allow
	}
}

// WithInstallerLogger sets the installer logger.
func WithInstallerLogger(l log.Logger) InstallerOption {
	return func(i *Installer) {
		i.logger = l
	}
}

// NewInstaller creates an installer over the given managed directory.
// The engine provides per-id serialization and deactivate-on-uninstall.
func NewInstaller(managedDir string, registry *Registry, engine *Engine, hostVersion *semver.Version, opts ...InstallerOption) *Installer {
	inst := &Installer{
		managedDir:  managedDir,
		hostVersion: hostVersion,
		registry:    registry,
		engine:      engine,
		logger:      log.Nop{},
	}
	for _, opt := range opts {
		opt(inst)
	}
	return inst
}

// ManagedDir returns the directory installed bundles live in.
func (i *Installer) ManagedDir() string {
	return i.managedDir
}

// Discover scans the managed directory and any extra search directories and
// registers every bundle with a valid manifest. Bundles whose manifest fails
// to parse are skipped and logged; a bad bundle never fails the scan.
// Returns the plugins registered by this scan.
func (i *Installer) Discover(ctx context.Context) ([]*Plugin, error) {
	dirs := append([]string{i.managedDir}, i.searchDirs...)

	results := make([][]*Plugin, len(dirs))
	g, ctx := errgroup.WithContext(ctx)
	for n, dir := range dirs {
		g.Go(func() error {
			found, err := i.discoverIn(ctx, dir)
			if err != nil {
				return err
			}
			results[n] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Register in directory order: the managed dir wins id conflicts.
	var registered []*Plugin
	for _, found := range results {
		for _, p := range found {
			if i.registry.Add(p) {
				registered = append(registered, p)
			} else {
				i.logger.Debug("skipping duplicate plugin id", "plugin", p.ID(), "path", p.Path)
			}
		}
	}
	return registered, nil
}

// discoverIn inspects one directory of bundles.
func (i *Installer) discoverIn(ctx context.Context, dir string) ([]*Plugin, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var found []*Plugin
	for _, entry := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !entry.IsDir() || entry.Name() == stagingDir {
			continue
		}

		bundle := filepath.Join(dir, entry.Name())
		manifest, err := LoadManifest(bundle)
		if err != nil {
			// Best-effort id for the log line; the descriptor may be
			// arbitrarily broken.
			id := i.peekID(bundle)
			i.logger.Warn("skipping bundle with invalid manifest",
				"path", bundle, "plugin", id, "err", err)
			continue
		}

		found = append(found, &Plugin{Manifest: manifest, Path: bundle})
	}
	return found, nil
}

// peekID pulls the id field out of a descriptor without validating it.
func (i *Installer) peekID(bundle string) string {
	data, err := os.ReadFile(filepath.Join(bundle, ManifestFile))
	if err != nil {
		return ""
	}
	return gjson.GetBytes(data, "id").String()
}

// Install stages a bundle from source (a directory or a .cxp archive),
// validates and verifies it, and commits it into the managed directory.
// The installed set changes only on full success; any failure or context
// cancellation rolls the staging area back.
func (i *Installer) Install(ctx context.Context, source string) (*Plugin, error) {
	staging := filepath.Join(i.managedDir, stagingDir, uuid.NewString())
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInstall, err)
	}

	committed := false
	defer func() {
		if !committed {
			os.RemoveAll(staging)
		}
	}()

	if err := i.fetch(ctx, source, staging); err != nil {
		return nil, err
	}

	manifest, err := LoadManifest(staging)
	if err != nil {
		return nil, err
	}

	if !manifest.CompatibleWith(i.hostVersion) {
		return nil, fmt.Errorf("plugin %q needs host >= %s, have %s: %w",
			manifest.ID, manifest.MinimumAppVersion, i.hostVersion, ErrIncompatibleVersion)
	}

	if !i.allowUnsigned {
		if err := VerifyBundle(staging, i.trustedKeys); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInstall, err)
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInstall, err)
	}

	// Commit under the id lock so installation never races lifecycle or
	// uninstallation of the same identifier.
	id := manifest.ID
	i.engine.locks.Lock(id)
	defer i.engine.locks.Unlock(id)

	if i.registry.Has(id) {
		return nil, fmt.Errorf("plugin %q: %w", id, ErrAlreadyInstalled)
	}

	target := filepath.Join(i.managedDir, id)
	if err := os.Rename(staging, target); err != nil {
		return nil, fmt.Errorf("%w: committing bundle: %v", ErrInstall, err)
	}
	committed = true

	// A concurrent discovery scan may have registered the id after the Has
	// check above; the registry record wins and the committed copy goes,
	// unless the scan registered this very bundle.
	p := &Plugin{Manifest: manifest, Path: target}
	if !i.registry.Add(p) {
		if existing, ok := i.registry.Get(id); !ok || existing.Path != target {
			os.RemoveAll(target)
		}
		return nil, fmt.Errorf("plugin %q: %w", id, ErrAlreadyInstalled)
	}

	i.logger.Info("plugin installed", "plugin", id, "version", manifest.Version)
	return p, nil
}

// Uninstall deactivates the plugin if active, deletes its bundle directory,
// and drops it from the installed set.
func (i *Installer) Uninstall(ctx context.Context, id string) error {
	i.engine.locks.Lock(id)
	defer i.engine.locks.Unlock(id)

	p, ok := i.registry.Get(id)
	if !ok {
		return fmt.Errorf("plugin %q: %w", id, ErrNotFound)
	}

	i.engine.deactivateLocked(ctx, id)

	if err := os.RemoveAll(p.Path); err != nil {
		return fmt.Errorf("%w: removing bundle: %v", ErrInstall, err)
	}
	i.registry.Remove(id)

	i.logger.Info("plugin uninstalled", "plugin", id)
	return nil
}

// fetch materializes the bundle source into the staging directory.
func (i *Installer) fetch(ctx context.Context, source, staging string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}

	switch {
	case info.IsDir():
		return copyTree(ctx, source, staging)
	case strings.EqualFold(filepath.Ext(source), BundleExt):
		return extractArchive(ctx, source, staging)
	default:
		return fmt.Errorf("%w: unsupported bundle source %q", ErrInstall, source)
	}
}

// copyTree copies a bundle directory into the staging area.
func copyTree(ctx context.Context, src, dst string) error {
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInstall, err)
		}
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrInstall, err)
		}

		rel, err := filepath.Rel(src, path)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInstall, err)
		}
		target := filepath.Join(dst, rel)

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	return out.Close()
}

// extractArchive unpacks a .cxp archive into the staging area, refusing
// entries that escape it.
func extractArchive(ctx context.Context, archive, dst string) error {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return fmt.Errorf("%w: opening archive: %v", ErrInstall, err)
	}
	defer r.Close()

	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%w: %v", ErrInstall, err)
		}
		if !filepath.IsLocal(f.Name) {
			return fmt.Errorf("%w: archive entry %q escapes bundle root", ErrInstall, f.Name)
		}

		target := filepath.Join(dst, f.Name)
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("%w: %v", ErrInstall, err)
			}
			continue
		}

		if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
			return fmt.Errorf("%w: %v", ErrInstall, err)
		}
		if err := extractFile(f, target); err != nil {
			return err
		}
	}
	return nil
}

func extractFile(f *zip.File, target string) error {
	in, err := f.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	defer in.Close()

	out, err := os.Create(target)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return fmt.Errorf("%w: %v", ErrInstall, err)
	}
	return out.Close()
}
