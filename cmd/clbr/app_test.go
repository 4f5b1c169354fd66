// # cmd/clbr/app_test.go
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"clbr/internal/config"
	"clbr/internal/entity"
)

func TestAppBrowseFile(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "apptest")
	defer os.RemoveAll(tmpDir)

	src := "class Pet:\n" +
		"    def __init__(self, name):\n" +
		"        self.name = name\n" +
		"\n" +
		"    def speak(self):\n" +
		"        pass\n"
	path := filepath.Join(tmpDir, "pet.py")
	os.WriteFile(path, []byte(src), 0644)

	cfg := config.Default()
	cfg.SearchPaths = []string{tmpDir}

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close(context.Background())

	outline := app.Browse(context.Background(), path)

	if outline.Module != "pet" {
		t.Errorf("module = %q, want pet", outline.Module)
	}
	if outline.Dialect != "python" {
		t.Errorf("dialect = %q, want python", outline.Dialect)
	}
	if outline.File != path {
		t.Errorf("file = %q, want %q", outline.File, path)
	}

	var pet *OutlineEntry
	for i := range outline.Entities {
		if outline.Entities[i].Name == "Pet" {
			pet = &outline.Entities[i]
		}
	}
	if pet == nil {
		t.Fatalf("Pet class missing from entities: %+v", outline.Entities)
	}
	if pet.Kind != "class" {
		t.Errorf("Pet kind = %q, want class", pet.Kind)
	}

	var names []string
	for _, c := range pet.Children {
		names = append(names, c.Name)
	}
	joined := strings.Join(names, ",")
	if !strings.Contains(joined, "__init__") || !strings.Contains(joined, "speak") {
		t.Errorf("Pet children = %v, want __init__ and speak", names)
	}

	if len(app.outlines) != 1 {
		t.Errorf("expected 1 tracked outline, got %d", len(app.outlines))
	}

	// Browsing again replaces, not appends.
	app.Browse(context.Background(), path)
	if len(app.outlines) != 1 {
		t.Errorf("expected replacement on rebrowse, got %d outlines", len(app.outlines))
	}
}

func TestAppBrowseModuleByName(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "appmod")
	defer os.RemoveAll(tmpDir)

	os.WriteFile(filepath.Join(tmpDir, "zoo.py"), []byte("def feed():\n    pass\n"), 0644)

	cfg := config.Default()
	cfg.SearchPaths = []string{tmpDir}

	app, err := NewApp(cfg)
	if err != nil {
		t.Fatal(err)
	}
	defer app.Close(context.Background())

	outline := app.Browse(context.Background(), "zoo")
	if outline.Module != "zoo" {
		t.Errorf("module = %q, want zoo", outline.Module)
	}

	found := false
	for _, e := range outline.Entities {
		if e.Name == "feed" && e.Kind == "function" {
			found = true
		}
	}
	if !found {
		t.Errorf("feed function missing: %+v", outline.Entities)
	}
}

func TestNewOutlineSortsByLine(t *testing.T) {
	cls := entity.NewClass("m", "Late", "m.py", 10, nil)
	cls.SetEndLine(20)
	init := entity.NewFunction("m", "__init__", "m.py", 11, "self", ",")
	init.SetEndLine(13)
	cls.AddMethod("__init__", init)
	run := entity.NewFunction("m", "run", "m.py", 15, "self, n", ",")
	run.SetEndLine(19)
	cls.AddMethod("run", run)

	early := entity.NewFunction("m", "early", "m.py", 2, "", ",")
	early.SetEndLine(4)

	dict := entity.Map{"Late": cls, "early": early}
	o := NewOutline("m", dict)

	if o.File != "m.py" {
		t.Errorf("file = %q, want m.py", o.File)
	}
	if len(o.Entities) != 2 {
		t.Fatalf("expected 2 entities, got %d", len(o.Entities))
	}
	if o.Entities[0].Name != "early" || o.Entities[1].Name != "Late" {
		t.Errorf("top level order = %s, %s, want early, Late", o.Entities[0].Name, o.Entities[1].Name)
	}

	children := o.Entities[1].Children
	if len(children) != 2 {
		t.Fatalf("expected 2 children, got %d", len(children))
	}
	if children[0].Name != "__init__" || children[1].Name != "run" {
		t.Errorf("child order = %s, %s, want __init__, run", children[0].Name, children[1].Name)
	}
	if children[1].Signature != "self, n" {
		t.Errorf("run signature = %q", children[1].Signature)
	}
}

func TestKindOf(t *testing.T) {
	iface := entity.NewClass("m", "I", "m.idl", 1, nil)
	iface.Kind = entity.Interface
	ns := entity.NewClass("m", "N", "m.rb", 1, nil)
	ns.Kind = entity.Namespace
	static := entity.NewFunction("m", "s", "m.py", 1, "", ",")
	static.Modifier = entity.Static
	bound := entity.NewFunction("m", "c", "m.py", 1, "cls", ",")
	bound.Modifier = entity.ClassBound

	tests := []struct {
		ent  entity.Entity
		want string
	}{
		{entity.NewClass("m", "C", "m.py", 1, nil), "class"},
		{iface, "interface"},
		{ns, "namespace"},
		{entity.NewFunction("m", "f", "m.py", 1, "", ","), "function"},
		{static, "static method"},
		{bound, "class method"},
		{entity.NewAttribute("m", "a", "m.py", 1), "attribute"},
		{entity.NewCoding("m", "m.py", 1, "utf-8"), "coding"},
		{entity.NewImports("m", "m.py"), "imports"},
		{entity.NewPublics("m", "m.py", 1, "'a'"), "publics"},
	}
	for _, tc := range tests {
		if got := kindOf(tc.ent); got != tc.want {
			t.Errorf("kindOf(%T) = %q, want %q", tc.ent, got, tc.want)
		}
	}
}

func TestIsFileArg(t *testing.T) {
	tmpDir, _ := os.MkdirTemp("", "filearg")
	defer os.RemoveAll(tmpDir)

	existing := filepath.Join(tmpDir, "mod.py")
	os.WriteFile(existing, []byte("x = 1\n"), 0644)

	if !isFileArg("dir/mod.py") {
		t.Error("path with separator should be a file arg")
	}
	if !isFileArg(existing) {
		t.Error("existing file should be a file arg")
	}
	if isFileArg("collections") {
		t.Error("bare name without a matching file should be a module arg")
	}
}

func TestMergeOutlines(t *testing.T) {
	a := &Outline{Module: "a", Dialect: "python"}
	b := &Outline{Module: "b", Dialect: "ruby"}
	merged := mergeOutlines([]*Outline{a, b}, []*Outline{{Module: "b", Dialect: "idl"}, {Module: "c"}})

	if len(merged) != 3 {
		t.Fatalf("expected 3 outlines, got %d", len(merged))
	}
	if merged[0].Module != "a" || merged[1].Module != "b" || merged[2].Module != "c" {
		t.Errorf("unexpected order: %s, %s, %s", merged[0].Module, merged[1].Module, merged[2].Module)
	}
	if merged[1].Dialect != "idl" {
		t.Errorf("update did not replace existing outline, dialect = %q", merged[1].Dialect)
	}
}

func TestPrintText(t *testing.T) {
	cls := entity.NewClass("m", "Pet", "m.py", 1, []entity.SuperRef{{Name: "Animal"}})
	cls.SetEndLine(5)
	cls.SetVis(entity.Public)
	m := entity.NewFunction("m", "speak", "m.py", 2, "self", ",")
	m.SetEndLine(4)
	m.SetVis(entity.Public)
	cls.AddMethod("speak", m)
	outline := NewOutline("m", entity.Map{"Pet": cls})

	app := &App{}
	var buf bytes.Buffer
	if err := app.Print(&buf, outline, false); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "class Pet(Animal)") {
		t.Errorf("missing class line in output:\n%s", out)
	}
	if !strings.Contains(out, "function speak(self)") {
		t.Errorf("missing method line in output:\n%s", out)
	}
	if !strings.Contains(out, "[public, 1-5]") {
		t.Errorf("missing visibility/line annotation:\n%s", out)
	}
}

func TestPrintJSON(t *testing.T) {
	f := entity.NewFunction("m", "go", "m.py", 1, "speed", ",")
	f.SetEndLine(3)
	outline := NewOutline("m", entity.Map{"go": f})

	app := &App{}
	var buf bytes.Buffer
	if err := app.Print(&buf, outline, true); err != nil {
		t.Fatal(err)
	}

	var decoded Outline
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("output is not valid JSON: %v\n%s", err, buf.String())
	}
	if decoded.Module != "m" || len(decoded.Entities) != 1 {
		t.Fatalf("unexpected decoded outline: %+v", decoded)
	}
	if decoded.Entities[0].Signature != "speed" {
		t.Errorf("signature = %q, want speed", decoded.Entities[0].Signature)
	}
}
