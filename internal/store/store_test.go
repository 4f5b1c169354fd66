package store

import (
	"context"
	"path/filepath"
	"testing"

	"clbr/internal/entity"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "clbr.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleDict() entity.Map {
	cls := entity.NewClass("zoo", "Keeper", "zoo.py", 3, []entity.SuperRef{{Name: "Person"}})
	cls.SetEndLine(9)
	cls.SetVis(entity.Public)

	feed := entity.NewFunction("zoo", "feed", "zoo.py", 5, "self, animal", ",")
	feed.SetEndLine(7)
	feed.SetVis(entity.Public)
	cls.AddMethod("feed", feed)

	attr := entity.NewAttribute("zoo", "name", "zoo.py", 6)
	attr.SetVis(entity.Protected)
	cls.AddAttribute(attr)

	return entity.Map{"Keeper": cls}
}

func TestSaveScanRoundtrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	batch, err := s.SaveScan(ctx, "zoo", "python", "zoo.py", sampleDict())
	if err != nil {
		t.Fatal(err)
	}
	if batch == "" {
		t.Fatal("empty batch id")
	}

	rows, err := s.Module(ctx, "zoo")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	byName := make(map[string]Record, len(rows))
	for _, r := range rows {
		byName[r.Name] = r
		if r.Batch != batch {
			t.Errorf("row %q batch = %q, want %q", r.Name, r.Batch, batch)
		}
	}

	keeper := byName["Keeper"]
	if keeper.Kind != "class" || keeper.Parent != "" || keeper.Signature != "Person" {
		t.Errorf("Keeper row = %+v", keeper)
	}
	feed := byName["feed"]
	if feed.Kind != "function" || feed.Parent != "Keeper" {
		t.Errorf("feed row = %+v", feed)
	}
	name := byName["name"]
	if name.Kind != "attribute" || name.Visibility != "protected" {
		t.Errorf("name row = %+v", name)
	}
}

func TestSaveScanReplacesModuleRows(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveScan(ctx, "zoo", "python", "zoo.py", sampleDict()); err != nil {
		t.Fatal(err)
	}

	tiny := entity.Map{"Keeper": entity.NewClass("zoo", "Keeper", "zoo.py", 1, nil)}
	tiny["Keeper"].SetEndLine(2)
	if _, err := s.SaveScan(ctx, "zoo", "python", "zoo.py", tiny); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Module(ctx, "zoo")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 1 {
		t.Fatalf("got %d rows after rewrite, want 1", len(rows))
	}
}

func TestDeleteFile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.SaveScan(ctx, "zoo", "python", "zoo.py", sampleDict()); err != nil {
		t.Fatal(err)
	}
	if err := s.DeleteFile(ctx, "zoo.py"); err != nil {
		t.Fatal(err)
	}

	rows, err := s.Module(ctx, "zoo")
	if err != nil {
		t.Fatal(err)
	}
	if len(rows) != 0 {
		t.Errorf("got %d rows after delete, want 0", len(rows))
	}
}

func TestOpenRejectsDirectory(t *testing.T) {
	if _, err := Open(t.TempDir()); err == nil {
		t.Fatal("expected error for directory path")
	}
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for blank path")
	}
}

func TestFlattenNestedParents(t *testing.T) {
	outer := entity.NewClass("m", "Outer", "m.py", 1, nil)
	inner := entity.NewClass("m", "Inner", "m.py", 2, nil)
	leaf := entity.NewFunction("m", "leaf", "m.py", 3, "", ",")
	inner.AddMethod("leaf", leaf)
	outer.AddClass("Inner", inner)

	rows := Flatten("b", "m", "python", "m.py", entity.Map{"Outer": outer})

	parents := make(map[string]string, len(rows))
	for _, r := range rows {
		parents[r.Name] = r.Parent
	}
	if parents["Outer"] != "" || parents["Inner"] != "Outer" || parents["leaf"] != "Outer.Inner" {
		t.Errorf("parent paths = %v", parents)
	}
}
