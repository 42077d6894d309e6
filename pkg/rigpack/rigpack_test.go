package rigpack

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Faultbox/skelkit/pkg/anim"
	"github.com/Faultbox/skelkit/pkg/formats"
)

func makeSkelBytes(t *testing.T, name string) []byte {
	t.Helper()
	skel := anim.NewSkeleton(name)
	if _, err := skel.CreateBone("root"); err != nil {
		t.Fatalf("creating bone: %v", err)
	}
	skel.SetBindingPose()
	data, err := formats.WriteSkel(skel)
	if err != nil {
		t.Fatalf("WriteSkel failed: %v", err)
	}
	return data
}

func TestPackRoundTrip(t *testing.T) {
	packPath := filepath.Join(t.TempDir(), "assets.pack")

	files := map[string][]byte{
		"actors/hero.skel": makeSkelBytes(t, "hero"),
		"actors/npc.rig":   []byte("name: npc\nbones:\n  - name: root\n"),
		"notes.txt":        []byte("not an asset"),
	}
	if err := Create(packPath, files); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	archive, err := Open(packPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer archive.Close()

	list := archive.List()
	if len(list) != 3 {
		t.Fatalf("expected 3 files, got %d", len(list))
	}
	// List is sorted
	if list[0] != "actors/hero.skel" {
		t.Errorf("expected first entry 'actors/hero.skel', got %q", list[0])
	}

	if !archive.Contains("actors/npc.rig") {
		t.Error("expected pack to contain actors/npc.rig")
	}
	if !archive.Contains("/actors/npc.rig") {
		t.Error("expected leading slash to normalize away")
	}
	if archive.Contains("actors/missing.rig") {
		t.Error("did not expect pack to contain actors/missing.rig")
	}

	data, err := archive.Read("notes.txt")
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if string(data) != "not an asset" {
		t.Errorf("expected file contents round trip, got %q", data)
	}

	_, err = archive.Read("nope.skel")
	if !errors.Is(err, ErrFileNotFound) {
		t.Errorf("expected ErrFileNotFound, got %v", err)
	}
}

func TestReadSkeleton(t *testing.T) {
	packPath := filepath.Join(t.TempDir(), "assets.pack")

	files := map[string][]byte{
		"hero.skel": makeSkelBytes(t, "hero"),
		"npc.rig":   []byte("name: npc\nbones:\n  - name: root\n"),
		"notes.txt": []byte("not an asset"),
	}
	if err := Create(packPath, files); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	archive, err := Open(packPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer archive.Close()

	hero, err := archive.ReadSkeleton("hero.skel")
	if err != nil {
		t.Fatalf("ReadSkeleton(hero.skel) failed: %v", err)
	}
	if hero.Name() != "hero" || hero.BoneCount() != 1 {
		t.Errorf("unexpected hero skeleton: name %q, %d bones", hero.Name(), hero.BoneCount())
	}

	npc, err := archive.ReadSkeleton("npc.rig")
	if err != nil {
		t.Fatalf("ReadSkeleton(npc.rig) failed: %v", err)
	}
	if npc.Name() != "npc" {
		t.Errorf("expected npc skeleton, got %q", npc.Name())
	}

	_, err = archive.ReadSkeleton("notes.txt")
	if !errors.Is(err, ErrUnsupportedExtension) {
		t.Errorf("expected ErrUnsupportedExtension, got %v", err)
	}
}

func TestCreateFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "actors"), 0755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	writes := map[string][]byte{
		"actors/hero.skel": makeSkelBytes(t, "hero"),
		"readme.md":        []byte("skipped"),
		"npc.rig":          []byte("name: npc\nbones:\n  - name: root\n"),
	}
	for p, data := range writes {
		if err := os.WriteFile(filepath.Join(dir, filepath.FromSlash(p)), data, 0644); err != nil {
			t.Fatalf("writing %s: %v", p, err)
		}
	}

	packPath := filepath.Join(t.TempDir(), "out.pack")
	if err := CreateFromDir(packPath, dir); err != nil {
		t.Fatalf("CreateFromDir failed: %v", err)
	}

	archive, err := Open(packPath)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer archive.Close()

	if !archive.Contains("actors/hero.skel") {
		t.Error("expected actors/hero.skel in pack")
	}
	if !archive.Contains("npc.rig") {
		t.Error("expected npc.rig in pack")
	}
	if archive.Contains("readme.md") {
		t.Error("expected readme.md to be skipped")
	}
}

func TestOpenMissing(t *testing.T) {
	if _, err := Open("/nonexistent/path.pack"); err == nil {
		t.Error("expected error opening missing pack, got nil")
	}
}
