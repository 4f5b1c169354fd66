package dialect

import (
	"testing"

	"clbr/internal/entity"
)

func scanPython(t *testing.T, src string) entity.Map {
	t.Helper()
	dict, err := newPythonScanner().Scan("mod", "mod.py", src)
	if err != nil {
		t.Fatalf("scan failed: %v", err)
	}
	return dict
}

func TestPythonClassesAndMethods(t *testing.T) {
	src := `# -*- coding: utf-8 -*-
"""Docstring mentioning def fake(): which must not count."""

import os, sys
from collections import OrderedDict, defaultdict

VERSION = "1.0"

class Base:
    kind = "base"

    def __init__(self, a, b=3):
        self.a = a
        self._hidden = 0

    @staticmethod
    def helper():
        pass

class Child(Base):
    async def run(self) -> int:
        return 1

def top(x, y):
    def inner():
        pass
    return inner
`

	dict := scanPython(t, src)

	base, ok := dict["Base"].(*entity.Class)
	if !ok {
		t.Fatal("class Base missing")
	}
	if base.StartLine() != 9 {
		t.Errorf("Base start = %d, want 9", base.StartLine())
	}
	if base.EndLine() != 19 {
		t.Errorf("Base end = %d, want 19", base.EndLine())
	}
	if base.Globals["kind"] == nil {
		t.Error("class-level variable kind missing")
	}

	init := base.Method("__init__")
	if init == nil {
		t.Fatal("method __init__ missing")
	}
	if init.Vis() != entity.Private {
		t.Errorf("__init__ visibility = %v, want private", init.Vis())
	}
	if got := init.Parameters; len(got) != 3 || got[1] != "a" || got[2] != "b=3" {
		t.Errorf("__init__ parameters = %v", got)
	}
	if base.Attribute("a") == nil {
		t.Error("instance attribute a missing")
	}
	if hidden := base.Attribute("_hidden"); hidden == nil || hidden.Vis() != entity.Protected {
		t.Error("instance attribute _hidden missing or not protected")
	}

	helper := base.Method("helper")
	if helper == nil || helper.Modifier != entity.Static {
		t.Error("helper missing or not marked static")
	}

	child, ok := dict["Child"].(*entity.Class)
	if !ok {
		t.Fatal("class Child missing")
	}
	if len(child.Supers) != 1 || child.Supers[0].Name != "Base" {
		t.Fatalf("Child supers = %v", child.Supers)
	}
	if child.Supers[0].Class != base {
		t.Error("Base not linked as Child's superclass")
	}
	run := child.Method("run")
	if run == nil {
		t.Fatal("method run missing")
	}
	if run.Annotation != "-> int" {
		t.Errorf("run annotation = %q", run.Annotation)
	}

	top, ok := dict["top"].(*entity.Function)
	if !ok {
		t.Fatal("function top missing")
	}
	if top.Method("inner") == nil {
		t.Error("nested function inner missing")
	}

	coding := dict.CodingRecord()
	if coding == nil || coding.Coding != "utf-8" {
		t.Errorf("coding record = %+v", coding)
	}

	imports := dict.ImportsRecord()
	if imports == nil {
		t.Fatal("import record missing")
	}
	for _, name := range []string{"os", "sys", "collections"} {
		if imports.Get(name) == nil {
			t.Errorf("import %q missing", name)
		}
	}
	collections := imports.Get("collections")
	if len(collections.ImportedNames["OrderedDict"]) != 1 {
		t.Errorf("OrderedDict lines = %v", collections.ImportedNames["OrderedDict"])
	}

	globals := dict.Globals()
	if globals == nil || globals.Globals["VERSION"] == nil {
		t.Error("module variable VERSION missing")
	}
}

func TestPythonConditionalDefines(t *testing.T) {
	src := `import sys

if sys.version_info >= (3, 0):
    def compat():
        pass
else:
    def compat():
        pass
`
	dict := scanPython(t, src)

	first, ok := dict["compat"].(*entity.Function)
	if !ok {
		t.Fatal("first compat missing")
	}
	second, ok := dict["compat_1"].(*entity.Function)
	if !ok {
		t.Fatal("second compat not disambiguated as compat_1")
	}
	if first.StartLine() != 4 || second.StartLine() != 7 {
		t.Errorf("compat lines = %d, %d; want 4, 7", first.StartLine(), second.StartLine())
	}
}

func TestPythonPublicsMarker(t *testing.T) {
	src := `__all__ = ["visible"]

def visible():
    pass

def hidden():
    pass
`
	dict := scanPython(t, src)

	if _, ok := dict[entity.PublicsKey]; ok {
		t.Error("publics marker survived into the result")
	}
	if dict["visible"].Vis() != entity.Public {
		t.Error("visible not public")
	}
	if dict["hidden"].Vis() != entity.Private {
		t.Error("hidden not private despite missing from __all__")
	}
}

func TestPythonNoOpenEndSurvives(t *testing.T) {
	src := `class Tail:
    def last(self):
        x = 1
`
	dict := scanPython(t, src)

	var check func(e entity.Entity)
	check = func(e entity.Entity) {
		if e.EndLine() == entity.OpenEnd {
			t.Errorf("entity %q still open", e.Ident())
		}
		if s, ok := e.(entity.Scope); ok {
			methods, attributes, classes, _ := s.Children()
			for _, m := range methods {
				check(m)
			}
			for _, a := range attributes {
				check(a)
			}
			for _, c := range classes {
				check(c)
			}
		}
	}
	for _, e := range dict {
		check(e)
	}

	tail := dict["Tail"].(*entity.Class)
	if tail.EndLine() != 3 {
		t.Errorf("Tail end = %d, want 3", tail.EndLine())
	}
}

func TestIndentWidthTabExpansion(t *testing.T) {
	cases := []struct {
		ws   string
		want int
	}{
		{"", 0},
		{"    ", 4},
		{"\t", 4},
		{"  \t", 4},
		{"\t  ", 6},
	}
	for _, tc := range cases {
		if got := indentWidth(tc.ws); got != tc.want {
			t.Errorf("indentWidth(%q) = %d, want %d", tc.ws, got, tc.want)
		}
	}
}
