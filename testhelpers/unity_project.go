package testhelpers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/standardbeagle/scriptref/internal/types"
)

// UnityProject is a throwaway Unity-like project tree under t.TempDir()
type UnityProject struct {
	t    testing.TB
	Root string
}

// NewUnityProject creates an empty project with an Assets directory
func NewUnityProject(t testing.TB) *UnityProject {
	t.Helper()
	root := t.TempDir()
	if abs, err := filepath.EvalSymlinks(root); err == nil {
		root = abs
	}
	if err := os.MkdirAll(filepath.Join(root, "Assets"), 0o755); err != nil {
		t.Fatalf("failed to create Assets: %v", err)
	}
	return &UnityProject{t: t, Root: root}
}

// Path returns the absolute path of a project-relative slash path
func (p *UnityProject) Path(rel string) string {
	return filepath.Join(p.Root, filepath.FromSlash(rel))
}

// Key returns the document key of a project-relative slash path
func (p *UnityProject) Key(rel string) types.DocumentKey {
	return types.NewDocumentKey(p.Path(rel))
}

// WriteFile writes raw content, creating parent directories
func (p *UnityProject) WriteFile(rel, content string) string {
	p.t.Helper()
	path := p.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		p.t.Fatalf("failed to create dir for %s: %v", rel, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		p.t.Fatalf("failed to write %s: %v", rel, err)
	}
	return path
}

// WritePrefab writes a document with one MonoBehaviour per guid
func (p *UnityProject) WritePrefab(rel string, guids ...string) string {
	p.t.Helper()
	return p.WriteFile(rel, PrefabContent(guids...))
}

// WriteScript writes a C# source file and its .meta companion holding guid
func (p *UnityProject) WriteScript(rel, guid string) string {
	p.t.Helper()
	name := strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel))
	path := p.WriteFile(rel, "using UnityEngine;\n\npublic class "+name+" : MonoBehaviour {}\n")
	p.WriteFile(rel+".meta", MetaContent(guid))
	return path
}

// Remove deletes a project-relative path
func (p *UnityProject) Remove(rel string) {
	p.t.Helper()
	if err := os.RemoveAll(p.Path(rel)); err != nil {
		p.t.Fatalf("failed to remove %s: %v", rel, err)
	}
}

// PrefabContent renders minimal Unity YAML with one script reference per guid
func PrefabContent(guids ...string) string {
	var b strings.Builder
	b.WriteString("%YAML 1.1\n%TAG !u! tag:unity3d.com,2011:\n")
	b.WriteString("--- !u!1 &100\nGameObject:\n  m_Name: Root\n")
	for i, g := range guids {
		fmt.Fprintf(&b, "--- !u!114 &%d\nMonoBehaviour:\n  m_Enabled: 1\n", 1000+i)
		fmt.Fprintf(&b, "  m_Script: {fileID: 11500000, guid: %s, type: 3}\n", g)
	}
	return b.String()
}

// MetaContent renders a script .meta file
func MetaContent(guid string) string {
	return "fileFormatVersion: 2\nguid: " + guid + "\nMonoImporter:\n  externalObjects: {}\n  serializedVersion: 2\n"
}
