package scene

import (
	"errors"
	"testing"

	"github.com/danmuck/scenectl/internal/engine"
	"github.com/danmuck/scenectl/internal/protocol"
)

func TestWriteThroughNoRemoteRead(t *testing.T) {
	w, eng := newTestWorld(t)
	children := mustChildren(t, w.Root())
	solid := mustImport(t, children, "Solid {\n}\n")

	tr, err := solid.Field("translation")
	if err != nil {
		t.Fatalf("Field: %v", err)
	}
	if err := tr.Set([3]float64{1, 2, 3}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	reads := eng.calls["value"]
	v, err := tr.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !v.Equal(protocol.Vec3Value([3]float64{1, 2, 3})) {
		t.Fatalf("Get after Set = %+v", v)
	}
	if eng.calls["value"] != reads {
		t.Fatalf("Get after Set performed a remote read")
	}
}

func TestGetReadsRemoteOnce(t *testing.T) {
	w, eng := newTestWorld(t)
	children := mustChildren(t, w.Root())
	solid := mustImport(t, children, "Solid {\n  translation 4 5 6\n}\n")

	tr, _ := solid.Field("translation")
	for i := 0; i < 3; i++ {
		if _, err := tr.Get(); err != nil {
			t.Fatalf("Get[%d]: %v", i, err)
		}
	}
	if eng.calls["value"] != 1 {
		t.Fatalf("Get issued %d remote reads, want 1", eng.calls["value"])
	}
	tr.Refresh()
	if _, err := tr.Get(); err != nil {
		t.Fatalf("Get after Refresh: %v", err)
	}
	if eng.calls["value"] != 2 {
		t.Fatalf("Refresh did not force a re-read")
	}
}

func TestSetCoercionRules(t *testing.T) {
	w, _ := newTestWorld(t)
	children := mustChildren(t, w.Root())
	solid := mustImport(t, children, "Solid {\n}\n")

	if err := solid.Set("translation", []float64{1, 1, 1}); err != nil {
		t.Fatalf("vec3 from slice: %v", err)
	}
	if err := solid.Set("name", "crate"); err != nil {
		t.Fatalf("string: %v", err)
	}
	if err := solid.Set("locked", true); err != nil {
		t.Fatalf("bool: %v", err)
	}

	cam := mustImport(t, children, "Camera {\n}\n")
	if err := cam.Set("width", 128); err != nil {
		t.Fatalf("int32 from int: %v", err)
	}
	if err := cam.Set("width", 256.0); err != nil {
		t.Fatalf("int32 from integral float: %v", err)
	}
	if err := cam.Set("fieldOfView", 1); err != nil {
		t.Fatalf("float from int: %v", err)
	}

	err := cam.Set("width", 0.5)
	if !errors.Is(err, ErrTypeCoercion) {
		t.Fatalf("fractional int32 accepted: %v", err)
	}
	err = solid.Set("translation", "sideways")
	if !errors.Is(err, ErrTypeCoercion) {
		t.Fatalf("string into vec3 accepted: %v", err)
	}
}

func TestFieldNotFound(t *testing.T) {
	w, _ := newTestWorld(t)
	_, err := w.Root().Field("velocity")
	if !errors.Is(err, ErrFieldNotFound) {
		t.Fatalf("Field(velocity) = %v, want ErrFieldNotFound", err)
	}
}

func TestSequenceCacheTracksMutations(t *testing.T) {
	w, eng := newTestWorld(t)
	children := mustChildren(t, w.Root())
	solid := mustImport(t, children, "Solid {\n}\n")
	tex := mustImport(t, mustChildren(t, solid), "ImageTexture {\n}\n")

	url, err := tex.Field("url")
	if err != nil {
		t.Fatalf("Field(url): %v", err)
	}
	if _, err := url.Values(); err != nil { // populate the sequence cache
		t.Fatalf("Values: %v", err)
	}
	if err := url.Append("grass.png"); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := url.Extend([]any{"dirt.png", "rock.png"}); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if err := url.Insert(1, "sand.png"); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	// cache stays aligned: later reads never refetch the sequence
	counts := eng.calls["count"] + eng.calls["item"]
	got, err := url.Values()
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	want := []string{"grass.png", "sand.png", "dirt.png", "rock.png"}
	if len(got) != len(want) {
		t.Fatalf("Values = %v", got)
	}
	for i := range want {
		if got[i].Str != want[i] {
			t.Fatalf("Values[%d] = %q, want %q", i, got[i].Str, want[i])
		}
	}
	if eng.calls["count"]+eng.calls["item"] != counts {
		t.Fatalf("cached sequence was refetched")
	}

	if err := url.SetItem(-1, "lava.png"); err != nil {
		t.Fatalf("SetItem(-1): %v", err)
	}
	if v, _ := url.At(3); v.Str != "lava.png" {
		t.Fatalf("At(3) after negative SetItem = %q", v.Str)
	}
	popped, err := url.Pop(0)
	if err != nil || popped.Str != "grass.png" {
		t.Fatalf("Pop(0) = (%+v, %v)", popped, err)
	}
	if n, _ := url.Len(); n != 3 {
		t.Fatalf("Len after Pop = %d", n)
	}
	if err := url.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n, _ := url.Len(); n != 0 {
		t.Fatalf("Len after Clear = %d", n)
	}
}

func TestSetRangeSliceAssignment(t *testing.T) {
	w, _ := newTestWorld(t)
	children := mustChildren(t, w.Root())
	tex := mustImport(t, children, "ImageTexture {\n  url [ \"a\" \"b\" \"c\" \"d\" ]\n}\n")

	url, _ := tex.Field("url")

	// same length: pure overwrite
	if err := url.SetRange(1, 3, []any{"B", "C"}); err != nil {
		t.Fatalf("SetRange overwrite: %v", err)
	}
	assertStrings(t, url, []string{"a", "B", "C", "d"})

	// shrinking: extras removed
	if err := url.SetRange(0, 3, []any{"x"}); err != nil {
		t.Fatalf("SetRange shrink: %v", err)
	}
	assertStrings(t, url, []string{"x", "d"})

	// growing: leftovers inserted in order
	if err := url.SetRange(1, 2, []any{"p", "q", "r"}); err != nil {
		t.Fatalf("SetRange grow: %v", err)
	}
	assertStrings(t, url, []string{"x", "p", "q", "r"})

	// whole-sequence replacement
	if err := url.SetAll([]any{"only"}); err != nil {
		t.Fatalf("SetAll: %v", err)
	}
	assertStrings(t, url, []string{"only"})
}

func assertStrings(t *testing.T, f *Field, want []string) {
	t.Helper()
	got, err := f.Values()
	if err != nil {
		t.Fatalf("Values: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("sequence = %v, want %v", got, want)
	}
	for i := range want {
		if got[i].Str != want[i] {
			t.Fatalf("sequence[%d] = %q, want %v", i, got[i].Str, want)
		}
	}
}

func TestIndexNormalization(t *testing.T) {
	w, _ := newTestWorld(t)
	children := mustChildren(t, w.Root())
	tex := mustImport(t, children, "ImageTexture {\n  url [ \"a\" \"b\" \"c\" ]\n}\n")
	url, _ := tex.Field("url")

	if v, err := url.At(-1); err != nil || v.Str != "c" {
		t.Fatalf("At(-1) = (%+v, %v)", v, err)
	}
	if v, err := url.At(-3); err != nil || v.Str != "a" {
		t.Fatalf("At(-3) = (%+v, %v)", v, err)
	}
	if _, err := url.At(-4); !errors.Is(err, engine.ErrIndexOutOfRange) {
		t.Fatalf("At(-4) = %v, want out of range", err)
	}
	if _, err := url.At(3); !errors.Is(err, engine.ErrIndexOutOfRange) {
		t.Fatalf("At(3) = %v, want out of range", err)
	}
	// inserts clamp instead of failing
	if err := url.Insert(99, "z"); err != nil {
		t.Fatalf("Insert(99): %v", err)
	}
	if v, _ := url.At(-1); v.Str != "z" {
		t.Fatalf("clamped insert landed at %q", v.Str)
	}
}

func TestCardinalityGuards(t *testing.T) {
	w, _ := newTestWorld(t)
	children := mustChildren(t, w.Root())
	solid := mustImport(t, children, "Solid {\n}\n")

	tr, _ := solid.Field("translation")
	if _, err := tr.Len(); !errors.Is(err, engine.ErrKindMismatch) {
		t.Fatalf("Len on single field = %v", err)
	}
	if _, err := children.Get(); !errors.Is(err, engine.ErrKindMismatch) {
		t.Fatalf("Get on sequence field = %v", err)
	}
}
