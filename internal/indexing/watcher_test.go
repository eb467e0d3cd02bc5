package indexing

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scriptref/internal/types"
	"github.com/standardbeagle/scriptref/testhelpers"
)

const (
	eventuallyWait = 5 * time.Second
	eventuallyTick = 20 * time.Millisecond
)

func newWatchingSession(t *testing.T, p *testhelpers.UnityProject, debounceMs int) *Session {
	t.Helper()
	cfg := testhelpers.NewTestConfigBuilder(p.Root).WithWatch(true, debounceMs).Build()
	s := NewSession(cfg)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Init(context.Background()))
	return s
}

func referrers(s *Session, id types.Identifier) []types.DocumentKey {
	docs, err := s.Query().DocumentsFor(id)
	if err != nil {
		return nil
	}
	return docs
}

func TestFileWatcher_CreateWriteRemove(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Existing.prefab", string(guidA))
	s := newWatchingSession(t, p, 0)

	require.Equal(t, []types.DocumentKey{p.Key("Assets/Existing.prefab")}, referrers(s, guidA))

	p.WritePrefab("Assets/New.prefab", string(guidB))
	assert.Eventually(t, func() bool {
		docs := referrers(s, guidB)
		return len(docs) == 1 && docs[0] == p.Key("Assets/New.prefab")
	}, eventuallyWait, eventuallyTick, "created document should be indexed")

	p.WritePrefab("Assets/Existing.prefab", string(guidC))
	assert.Eventually(t, func() bool {
		return len(referrers(s, guidA)) == 0 && len(referrers(s, guidC)) == 1
	}, eventuallyWait, eventuallyTick, "edited document should be re-indexed")

	p.Remove("Assets/New.prefab")
	assert.Eventually(t, func() bool {
		return len(referrers(s, guidB)) == 0
	}, eventuallyWait, eventuallyTick, "removed document should be dropped")

	assert.NoError(t, s.Verify())
}

func TestFileWatcher_NewDirectory(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	s := newWatchingSession(t, p, 0)

	// Build the directory outside the tree and move it in as a whole
	staging := t.TempDir()
	require.NoError(t, os.MkdirAll(staging+"/Pack/Sub", 0o755))
	require.NoError(t, os.WriteFile(staging+"/Pack/Sub/Moved.prefab", []byte(testhelpers.PrefabContent(string(guidA))), 0o644))
	require.NoError(t, os.Rename(staging+"/Pack", p.Path("Assets/Pack")))

	assert.Eventually(t, func() bool {
		docs := referrers(s, guidA)
		return len(docs) == 1 && docs[0] == p.Key("Assets/Pack/Sub/Moved.prefab")
	}, eventuallyWait, eventuallyTick, "documents in a moved-in directory should be indexed")

	p.WritePrefab("Assets/Pack/Sub/Later.prefab", string(guidA))
	assert.Eventually(t, func() bool {
		return len(referrers(s, guidA)) == 2
	}, eventuallyWait, eventuallyTick, "new directory should be watched")
}

func TestFileWatcher_DirectoryMovedOut(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Pack/Sub/Moved.prefab", string(guidA))
	p.WritePrefab("Assets/Stays.prefab", string(guidB))
	s := newWatchingSession(t, p, 0)
	require.Len(t, referrers(s, guidA), 1)

	outside := t.TempDir()
	require.NoError(t, os.Rename(p.Path("Assets/Pack"), outside+"/Pack"))

	assert.Eventually(t, func() bool {
		return len(referrers(s, guidA)) == 0
	}, eventuallyWait, eventuallyTick, "documents of a moved-out directory should be dropped")
	assert.Equal(t, []types.DocumentKey{p.Key("Assets/Stays.prefab")}, referrers(s, guidB))

	// Edits in the moved directory no longer reach the index
	require.NoError(t, os.WriteFile(outside+"/Pack/Sub/Moved.prefab", []byte(testhelpers.PrefabContent(string(guidC))), 0o644))
	p.WritePrefab("Assets/Marker.prefab", string(guidC))
	require.Eventually(t, func() bool {
		return len(referrers(s, guidC)) > 0
	}, eventuallyWait, eventuallyTick)
	assert.Equal(t, []types.DocumentKey{p.Key("Assets/Marker.prefab")}, referrers(s, guidC))
	assert.NoError(t, s.Verify())
}

func TestFileWatcher_DirectoryRenamedInPlace(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Old/Thing.prefab", string(guidA))
	s := newWatchingSession(t, p, 0)

	require.NoError(t, os.Rename(p.Path("Assets/Old"), p.Path("Assets/New")))

	assert.Eventually(t, func() bool {
		docs := referrers(s, guidA)
		return len(docs) == 1 && docs[0] == p.Key("Assets/New/Thing.prefab")
	}, eventuallyWait, eventuallyTick, "only the new location should be indexed")
}

func TestFileWatcher_DirectoryRemoved(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Doomed/A.prefab", string(guidA))
	p.WritePrefab("Assets/Doomed/Deep/B.prefab", string(guidA))
	s := newWatchingSession(t, p, 40)
	require.Len(t, referrers(s, guidA), 2)

	require.NoError(t, os.RemoveAll(p.Path("Assets/Doomed")))
	assert.Eventually(t, func() bool {
		return len(referrers(s, guidA)) == 0
	}, eventuallyWait, eventuallyTick)
}

func TestFileWatcher_IgnoresExcludedAndOtherFiles(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	require.NoError(t, os.MkdirAll(p.Path("Library"), 0o755))
	s := newWatchingSession(t, p, 0)

	p.WritePrefab("Library/Cached.prefab", string(guidA))
	p.WriteFile("Assets/notes.txt", "m_Script: {fileID: 1, guid: "+string(guidA)+", type: 3}\n")
	p.WritePrefab("Assets/Marker.prefab", string(guidB))

	// Marker arriving means the earlier events were processed
	require.Eventually(t, func() bool {
		return len(referrers(s, guidB)) == 1
	}, eventuallyWait, eventuallyTick)
	assert.Empty(t, referrers(s, guidA))
}

func TestFileWatcher_GitignoreChangeRebuilds(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Keep.prefab", string(guidA))
	p.WritePrefab("Assets/Old.prefab", string(guidA))
	s := newWatchingSession(t, p, 0)
	require.Len(t, referrers(s, guidA), 2)

	p.WriteFile(".gitignore", "Old.prefab\n")
	assert.Eventually(t, func() bool {
		docs := referrers(s, guidA)
		return len(docs) == 1 && docs[0] == p.Key("Assets/Keep.prefab")
	}, eventuallyWait, eventuallyTick, "gitignored document should disappear after rebuild")
}

func TestFileWatcher_StatsAndStop(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	cfg := testhelpers.NewTestConfigBuilder(p.Root).WithWatch(true, 0).Build()
	enum := NewFSEnumerator(cfg)

	rec := testhelpers.NewChangeRecorder()
	funnel := NewFunnel(cfg.Index.Extensions, rec)

	fw, err := NewFileWatcher(cfg, enum, funnel)
	require.NoError(t, err)
	require.NoError(t, fw.Start(p.Root))

	stats := fw.GetStats()
	assert.True(t, stats.IsActive)
	assert.GreaterOrEqual(t, stats.WatchedDirs, 2)

	p.WritePrefab("Assets/a.prefab", string(guidA))
	require.True(t, rec.WaitFor(1, eventuallyWait), "no change forwarded")

	require.NoError(t, fw.Stop())
	require.NoError(t, fw.Stop())
	stats = fw.GetStats()
	assert.False(t, stats.IsActive)
	assert.Positive(t, stats.EventsProcessed)
	assert.False(t, stats.LastEventTime.IsZero())

	assert.Equal(t, types.Upsert(p.Key("Assets/a.prefab")), rec.Changes()[0])
}

func TestEventDebouncer_CoalescesPerPath(t *testing.T) {
	type delivered struct {
		path string
		ev   FileEventType
	}
	var mu sync.Mutex
	var got []delivered
	done := make(chan struct{}, 8)

	d := newEventDebouncer(30*time.Millisecond, func(path string, ev FileEventType) {
		mu.Lock()
		got = append(got, delivered{path, ev})
		mu.Unlock()
		done <- struct{}{}
	})
	defer d.stop()

	d.addEvent("/p/a.prefab", FileEventCreate)
	d.addEvent("/p/a.prefab", FileEventWrite)
	d.addEvent("/p/b.prefab", FileEventWrite)
	d.addEvent("/p/b.prefab", FileEventRemove)
	d.addEvent("/p/c.prefab", FileEventCreate)

	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(eventuallyWait):
			t.Fatal("debounced events not delivered")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	assert.Equal(t, delivered{"/p/b.prefab", FileEventRemove}, got[0], "removals flush first")
	assert.Equal(t, delivered{"/p/a.prefab", FileEventWrite}, got[1])
	assert.Equal(t, delivered{"/p/c.prefab", FileEventCreate}, got[2])
}

func TestEventDebouncer_StopDropsPending(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	d := newEventDebouncer(20*time.Millisecond, func(string, FileEventType) {
		mu.Lock()
		calls++
		mu.Unlock()
	})

	d.addEvent("/p/a.prefab", FileEventWrite)
	d.stop()
	d.addEvent("/p/b.prefab", FileEventWrite)
	time.Sleep(80 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, calls)
}

func TestFileWatcher_DebouncedSession(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	s := newWatchingSession(t, p, 40)

	for i := 0; i < 5; i++ {
		p.WritePrefab("Assets/Burst.prefab", string(guidA))
	}
	assert.Eventually(t, func() bool {
		return len(referrers(s, guidA)) == 1
	}, eventuallyWait, eventuallyTick)
}
