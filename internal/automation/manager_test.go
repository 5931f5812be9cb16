//go:build !no_automation

package automation

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "scripts")
	m, err := NewManager(dir, testLogger())
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestManagerListEmpty(t *testing.T) {
	m := newTestManager(t)
	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 0 {
		t.Errorf("list count = %d, want 0", len(scripts))
	}
}

func TestManagerSaveAndGet(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{
		Meta: ScriptMeta{
			Name:        "CO2 Alert",
			Description: "Warn above 1000 ppm",
			Enabled:     true,
		},
		LuaCode: `air.log("hello")`,
	})
	if err != nil {
		t.Fatal(err)
	}
	if saved.ID != "co2_alert" {
		t.Errorf("id = %q, want co2_alert", saved.ID)
	}

	got, err := m.Get(saved.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Meta.Name != "CO2 Alert" || got.Meta.Description != "Warn above 1000 ppm" || !got.Meta.Enabled {
		t.Errorf("meta = %+v", got.Meta)
	}
	if got.LuaCode != "air.log(\"hello\")\n" {
		t.Errorf("lua_code = %q", got.LuaCode)
	}
}

func TestManagerSaveExistingID(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{ID: "my_script", Meta: ScriptMeta{Name: "My Script"}, LuaCode: `air.log("v1")`})
	if err != nil {
		t.Fatal(err)
	}

	saved.LuaCode = `air.log("v2")`
	if _, err := m.Save(saved); err != nil {
		t.Fatal(err)
	}

	got, err := m.Get("my_script")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got.LuaCode, `air.log("v2")`) {
		t.Errorf("lua_code after update = %q", got.LuaCode)
	}
}

func TestManagerListAndUniqueID(t *testing.T) {
	m := newTestManager(t)

	for i := 0; i < 3; i++ {
		if _, err := m.Save(&Script{Meta: ScriptMeta{Name: "Dup"}, LuaCode: `air.log("x")`}); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(m.dir, "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	scripts, err := m.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) != 3 {
		t.Fatalf("list count = %d, want 3", len(scripts))
	}
	ids := map[string]bool{}
	for _, s := range scripts {
		ids[s.ID] = true
	}
	for _, id := range []string{"dup", "dup_1", "dup_2"} {
		if !ids[id] {
			t.Errorf("missing id %q in %v", id, ids)
		}
	}
}

func TestManagerDeleteAndNotFound(t *testing.T) {
	m := newTestManager(t)

	saved, err := m.Save(&Script{Meta: ScriptMeta{Name: "ToDelete"}, LuaCode: `air.log("bye")`})
	if err != nil {
		t.Fatal(err)
	}
	if err := m.Delete(saved.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := m.Get(saved.ID); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("Get after delete: err = %v, want ErrScriptNotFound", err)
	}
	if err := m.Delete(saved.ID); !errors.Is(err, ErrScriptNotFound) {
		t.Errorf("second Delete: err = %v, want ErrScriptNotFound", err)
	}
}

func TestManagerInvalidID(t *testing.T) {
	m := newTestManager(t)
	for _, id := range []string{"", ".", "..", "../etc/passwd", `a\b`} {
		if _, err := m.Get(id); err == nil || errors.Is(err, ErrScriptNotFound) {
			t.Errorf("Get(%q) err = %v, want invalid id", id, err)
		}
	}
}

func TestParseScriptFile(t *testing.T) {
	dir := t.TempDir()
	content := `-- {"name":"Bedroom CO2","description":"Alert on stale air","enabled":true}

air.on("attribute_update", {group="carbon_dioxide_concentration"}, function(event)
    telegram.send("co2 " .. event.value)
end)
`
	path := filepath.Join(dir, "bedroom.lua")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m := &Manager{dir: dir, logger: testLogger()}
	s, err := m.parseFile(path)
	if err != nil {
		t.Fatal(err)
	}

	if s.ID != "bedroom" || s.Meta.Name != "Bedroom CO2" || !s.Meta.Enabled {
		t.Errorf("script = %+v", s)
	}
	if !strings.HasPrefix(s.LuaCode, `air.on("attribute_update"`) {
		t.Errorf("lua_code = %q", s.LuaCode)
	}
}

func TestParseScriptFileBadMeta(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "broken.lua")
	if err := os.WriteFile(path, []byte("-- {not json\nair.log(1)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	m := &Manager{dir: dir, logger: testLogger()}
	s, err := m.parseFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if s.Meta.Enabled || s.LuaCode != "air.log(1)\n" {
		t.Errorf("script = %+v", s)
	}
}

func TestSerializeScript(t *testing.T) {
	content := serializeScript(&Script{
		ID:      "test",
		Meta:    ScriptMeta{Name: "Test", Enabled: true},
		LuaCode: `air.log("hi")`,
	})

	want := "-- {\"name\":\"Test\",\"enabled\":true}\n\nair.log(\"hi\")\n"
	if content != want {
		t.Errorf("serializeScript = %q, want %q", content, want)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"Bathroom Light", "bathroom_light"},
		{"PM2.5 > 35!", "pm2_5_35"},
		{"", ""},
		{"  spaces  ", "spaces"},
		{"UPPER", "upper"},
	}
	for _, tt := range tests {
		if got := slugify(tt.input); got != tt.want {
			t.Errorf("slugify(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
