package indexing

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/standardbeagle/scriptref/internal/types"
	"github.com/standardbeagle/scriptref/testhelpers"
)

func TestDocumentGlob(t *testing.T) {
	assert.Equal(t, "**/*.prefab", documentGlob([]string{".prefab"}))
	assert.Equal(t, "**/*.{prefab,unity}", documentGlob([]string{".prefab", ".unity"}))
}

func TestFSEnumerator_FindsDocuments(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Player.prefab", string(guidA))
	p.WritePrefab("Assets/Scenes/Main.unity", string(guidB))
	p.WritePrefab("Assets/Deep/Er/Enemy.prefab", string(guidA))
	p.WriteScript("Assets/Scripts/Player.cs", string(guidA))
	p.WriteFile("Assets/Player.prefab.meta", testhelpers.MetaContent(string(guidC)))
	p.WriteFile("Assets/readme.txt", "m_Script: {fileID: 1, guid: "+string(guidC)+", type: 3}\n")

	enum := NewFSEnumerator(testhelpers.NewTestConfigBuilder(p.Root).Build())
	keys, err := enum.Enumerate(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []types.DocumentKey{
		p.Key("Assets/Player.prefab"),
		p.Key("Assets/Scenes/Main.unity"),
		p.Key("Assets/Deep/Er/Enemy.prefab"),
	}, keys)
}

func TestFSEnumerator_Exclusions(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Keep.prefab", string(guidA))
	p.WritePrefab("Library/PackageCache/Cached.prefab", string(guidA))
	p.WritePrefab("Temp/Scratch.unity", string(guidA))
	p.WritePrefab("Assets/Sandbox/Try.prefab", string(guidA))

	cfg := testhelpers.NewTestConfigBuilder(p.Root).WithExclusions("**/Sandbox/**").Build()
	keys, err := NewFSEnumerator(cfg).Enumerate(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []types.DocumentKey{p.Key("Assets/Keep.prefab")}, keys)
}

func TestFSEnumerator_Gitignore(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/Keep.prefab", string(guidA))
	p.WritePrefab("Assets/Generated/Gen.prefab", string(guidA))
	p.WritePrefab("Assets/Old.prefab", string(guidA))
	p.WriteFile(".gitignore", "Generated/\nOld.prefab\n")

	t.Run("respected", func(t *testing.T) {
		enum := NewFSEnumerator(testhelpers.NewTestConfigBuilder(p.Root).Build())
		keys, err := enum.Enumerate(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []types.DocumentKey{p.Key("Assets/Keep.prefab")}, keys)
	})

	t.Run("disabled", func(t *testing.T) {
		enum := NewFSEnumerator(testhelpers.NewTestConfigBuilder(p.Root).WithGitignore(false).Build())
		keys, err := enum.Enumerate(context.Background())
		require.NoError(t, err)
		assert.Len(t, keys, 3)
	})

	t.Run("reloaded on each enumeration", func(t *testing.T) {
		enum := NewFSEnumerator(testhelpers.NewTestConfigBuilder(p.Root).Build())
		p.WriteFile(".gitignore", "Old.prefab\n")
		t.Cleanup(func() { p.WriteFile(".gitignore", "Generated/\nOld.prefab\n") })

		keys, err := enum.Enumerate(context.Background())
		require.NoError(t, err)
		assert.ElementsMatch(t, []types.DocumentKey{
			p.Key("Assets/Keep.prefab"),
			p.Key("Assets/Generated/Gen.prefab"),
		}, keys)
	})
}

func TestFSEnumerator_ExtensionCaseSensitive(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/lower.prefab", string(guidA))
	p.WritePrefab("Assets/upper.PREFAB", string(guidA))

	keys, err := NewFSEnumerator(testhelpers.NewTestConfigBuilder(p.Root).Build()).Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.DocumentKey{p.Key("Assets/lower.prefab")}, keys)
}

func TestFSEnumerator_MissingRoot(t *testing.T) {
	root := filepath.Join(t.TempDir(), "does-not-exist")
	_, err := NewFSEnumerator(testhelpers.NewTestConfigBuilder(root).Build()).Enumerate(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestFSEnumerator_Cancelled(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/a.prefab", string(guidA))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewFSEnumerator(testhelpers.NewTestConfigBuilder(p.Root).Build()).Enumerate(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFSEnumerator_SymlinkCycle(t *testing.T) {
	p := testhelpers.NewUnityProject(t)
	p.WritePrefab("Assets/a.prefab", string(guidA))
	if err := os.Symlink(p.Path("Assets"), p.Path("Assets/Loop")); err != nil {
		t.Skipf("symlinks not supported: %v", err)
	}

	cfg := testhelpers.NewTestConfigBuilder(p.Root).Build()
	cfg.Index.FollowSymlinks = true
	keys, err := NewFSEnumerator(cfg).Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.DocumentKey{p.Key("Assets/a.prefab")}, keys)
}

func TestStaticEnumerator(t *testing.T) {
	src := StaticEnumerator{docKey("a.prefab"), docKey("b.prefab")}
	keys, err := src.Enumerate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []types.DocumentKey(src), keys)

	keys[0] = docKey("z.prefab")
	assert.Equal(t, docKey("a.prefab"), src[0])
}
