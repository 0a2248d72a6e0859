package plugin

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// Lifecycle operations on unrelated ids proceed concurrently while readers
// observe consistent snapshots. Run with -race.
func TestEngineConcurrentLifecycle(t *testing.T) {
	engine, registry, dir := newTestEngine(t)
	ids := []string{"com.example.left", "com.example.right"}
	for _, id := range ids {
		registerBundle(t, registry, dir, id, `function ping() return 1 end`, nil)
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	for _, id := range ids {
		for range 4 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 25 {
					if err := engine.Activate(ctx, id); err != nil {
						t.Errorf("Activate(%s) error = %v", id, err)
						return
					}
					if _, err := engine.ExecuteCommand(ctx, id, "ping"); err != nil {
						t.Errorf("ExecuteCommand(%s) error = %v", id, err)
						return
					}
					engine.Deactivate(ctx, id)
				}
			}()
		}
	}

	// Readers race the lifecycle churn; they must only ever see complete
	// records.
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 200 {
			for _, id := range ids {
				engine.State(id)
				engine.IsActive(id)
			}
			for _, active := range engine.ActiveIDs() {
				if active != ids[0] && active != ids[1] {
					t.Errorf("ActiveIDs() returned unknown id %q", active)
					return
				}
			}
			for _, p := range registry.List() {
				if p.Manifest == nil {
					t.Error("List() returned plugin with nil manifest")
					return
				}
			}
		}
	}()

	wg.Wait()
	engine.Shutdown(ctx)

	if ids := engine.ActiveIDs(); len(ids) != 0 {
		t.Errorf("ActiveIDs() = %v after Shutdown", ids)
	}
	for _, id := range ids {
		if engine.State(id) != StateInactive {
			t.Errorf("State(%s) = %v, want %v", id, engine.State(id), StateInactive)
		}
	}
}

// Concurrent installs of the same id, racing a discovery scan that also
// carries the id: at most one install wins, and a winning install's bundle
// is the one the registry record points at.
func TestInstallerConcurrentInstallSameID(t *testing.T) {
	const id = "com.example.contested"

	searchDir := t.TempDir()
	writeBundle(t, searchDir, id, "", nil)

	installer, _, registry, managed := newTestInstaller(t, WithSearchDirs(searchDir))

	sources := make([]string, 4)
	for n := range sources {
		sources[n] = writeBundle(t, t.TempDir(), id, "", func(m *Manifest) {
			m.Version = fmt.Sprintf("1.0.%d", n)
		})
	}

	ctx := context.Background()
	var wg sync.WaitGroup
	installed := make([]*Plugin, len(sources))

	wg.Add(1)
	go func() {
		defer wg.Done()
		if _, err := installer.Discover(ctx); err != nil {
			t.Errorf("Discover() error = %v", err)
		}
	}()
	for n, source := range sources {
		wg.Add(1)
		go func() {
			defer wg.Done()
			p, err := installer.Install(ctx, source)
			if err == nil {
				installed[n] = p
			} else if !errors.Is(err, ErrAlreadyInstalled) {
				t.Errorf("Install(%s) error = %v", source, err)
			}
		}()
	}
	wg.Wait()

	var winners []*Plugin
	for _, p := range installed {
		if p != nil {
			winners = append(winners, p)
		}
	}
	if len(winners) > 1 {
		t.Fatalf("%d installs of the same id succeeded", len(winners))
	}

	record, ok := registry.Get(id)
	if !ok {
		t.Fatal("no registry record for contested id")
	}
	// A reported install success and the registry must agree on the bundle.
	if len(winners) == 1 && record.Path != winners[0].Path {
		t.Errorf("install succeeded at %q but registry points at %q", winners[0].Path, record.Path)
	}
	if _, err := LoadManifest(record.Path); err != nil {
		t.Errorf("registry record points at unreadable bundle %q: %v", record.Path, err)
	}

	entries, err := os.ReadDir(filepath.Join(managed, stagingDir))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("staging dir holds %d leftover entries", len(entries))
	}
}

// Uninstall racing Activate on the same id: whatever the interleaving, the
// plugin ends up neither installed nor active.
func TestInstallerUninstallRacesActivate(t *testing.T) {
	const id = "com.example.flicker"

	installer, engine, registry, _ := newTestInstaller(t)
	source := writeBundle(t, t.TempDir(), id, "", nil)

	ctx := context.Background()
	for range 10 {
		if _, err := installer.Install(ctx, source); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		wg.Add(1)
		go func() {
			defer wg.Done()
			// Racing the uninstall: NotFound is a legal outcome.
			if err := engine.Activate(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
				t.Errorf("Activate() error = %v", err)
			}
		}()

		if err := installer.Uninstall(ctx, id); err != nil {
			t.Fatalf("Uninstall() error = %v", err)
		}
		wg.Wait()

		if registry.Has(id) {
			t.Fatal("plugin installed after Uninstall completed")
		}
		if engine.IsActive(id) {
			t.Fatal("plugin active but not installed")
		}
		engine.Deactivate(ctx, id)
	}
}
