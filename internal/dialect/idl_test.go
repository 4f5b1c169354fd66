package dialect

import (
	"testing"

	"clbr/internal/entity"
)

func scanIDL(t *testing.T, src string) entity.Map {
	t.Helper()
	dict, err := newIDLScanner().Scan("mod", "mod.idl", src)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return dict
}

func TestIDLModuleAndInterfaces(t *testing.T) {
	src := `module Corp {
  interface Document : Persistable {
    readonly attribute string id, revision;
    attribute long pages;
    void close();
    string title(in string locale);
  };

  interface Persistable {
    void save();
  };
};
`
	dict := scanIDL(t, src)

	corp, ok := dict["Corp"].(*entity.Class)
	if !ok {
		t.Fatal("module Corp missing")
	}
	if corp.Kind != entity.Namespace {
		t.Errorf("Corp kind = %v, want namespace", corp.Kind)
	}

	doc := corp.Class("Document")
	if doc == nil {
		t.Fatal("interface Document missing")
	}
	if doc.Kind != entity.Interface {
		t.Errorf("Document kind = %v, want interface", doc.Kind)
	}
	if len(doc.Supers) != 1 || doc.Supers[0].Name != "Persistable" {
		t.Fatalf("Document supers = %v", doc.Supers)
	}

	for _, name := range []string{"id", "revision"} {
		attr := doc.Attribute(name)
		if attr == nil {
			t.Errorf("readonly attribute %q missing", name)
			continue
		}
		if attr.Vis() != entity.Private {
			t.Errorf("readonly attribute %q visibility = %v, want private", name, attr.Vis())
		}
	}
	if pages := doc.Attribute("pages"); pages == nil || pages.Vis() != entity.Public {
		t.Error("attribute pages missing or not public")
	}

	if doc.Method("close") == nil {
		t.Error("operation close missing")
	}
	title := doc.Method("title")
	if title == nil {
		t.Fatal("operation title missing")
	}
	if len(title.Parameters) != 1 || title.Parameters[0] != "in string locale" {
		t.Errorf("title parameters = %v", title.Parameters)
	}

	persistable := corp.Class("Persistable")
	if persistable == nil || persistable.Method("save") == nil {
		t.Error("interface Persistable or its operation save missing")
	}
}

func TestIDLTopLevelOperations(t *testing.T) {
	src := `void startup();
oneway void notify(in string message);
`
	dict := scanIDL(t, src)

	if _, ok := dict["startup"].(*entity.Function); !ok {
		t.Error("top-level operation startup missing")
	}
	notify, ok := dict["notify"].(*entity.Function)
	if !ok {
		t.Fatal("oneway operation notify missing")
	}
	if notify.StartLine() != 2 {
		t.Errorf("notify start = %d, want 2", notify.StartLine())
	}
}

func TestIDLCommentsIgnored(t *testing.T) {
	src := `// interface Fake {
/* interface AlsoFake {
   void phantom();
} */
interface Real {
  void op();
};
`
	dict := scanIDL(t, src)

	if _, ok := dict["Fake"]; ok {
		t.Error("line comment leaked an interface")
	}
	if _, ok := dict["AlsoFake"]; ok {
		t.Error("block comment leaked an interface")
	}
	if real, ok := dict["Real"].(*entity.Class); !ok || real.Method("op") == nil {
		t.Error("interface Real missing")
	}
}
