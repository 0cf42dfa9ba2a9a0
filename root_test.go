package igc

import "testing"

import "github.com/bnclabs/goigc/api"

// face-cache replace: the cache's exact root is replaced under park
// on every change, and no face's lface vector loses a reference.
func TestFaceCacheChange(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()
	thr := gc.Main()

	cache := NewFaceCache(8)
	gc.OnMakeFaceCache(cache)

	for i := 0; i < 8; i++ {
		face := &Face{ID: i}
		for j := 0; j < LFaceSize; j++ {
			face.Lface[j] = thr.MakeCons(api.MakeFixnum(int64(i*100+j)), Nil)
		}
		cache.FacesByID[i] = face
	}

	// keep one face reference live on the value stack throughout
	thr.Push(cache.FacesByID[3].Lface[0])

	for i := 0; i < 1000; i++ {
		if i%100 == 99 { // cache resized
			faces := make([]*Face, len(cache.FacesByID)+8)
			copy(faces, cache.FacesByID)
			cache.FacesByID = faces
		}
		gc.OnFaceCacheChange(cache)
		if i%250 == 0 {
			gc.Arena().Collect()
		}
	}
	gc.Arena().Collect()

	for i := 0; i < 8; i++ {
		face := cache.FacesByID[i]
		for j := 0; j < LFaceSize; j++ {
			want := int64(i*100 + j)
			if x := gc.Car(face.Lface[j]); x.Fixnum() != want {
				t.Fatalf("face %v slot %v: expected %v, got %v",
					i, j, want, x.Fixnum())
			}
		}
	}
	if x := gc.Car(thr.Top(0)); x.Fixnum() != 300 {
		t.Errorf("stack reference broken: %v", x.Fixnum())
	}
	thr.Pop()
	gc.OnFreeFaceCache(cache)
}

func TestGlyphMatrix(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()
	thr := gc.Main()

	matrix := &GlyphMatrix{Rows: make([]GlyphRow, 4)}
	for r := range matrix.Rows {
		matrix.Rows[r].Glyphs = make([]Glyph, 16)
		for i := range matrix.Rows[r].Glyphs {
			obj := thr.MakeCons(api.MakeFixnum(int64(r*16+i)), Nil)
			matrix.Rows[r].Glyphs[i].Object = obj
		}
	}
	gc.OnAdjustGlyphMatrix(matrix)
	gc.Arena().Collect()

	// resize the matrix, replacing its root
	rows := make([]GlyphRow, 8)
	copy(rows, matrix.Rows)
	matrix.Rows = rows
	gc.OnAdjustGlyphMatrix(matrix)
	gc.Arena().Collect()

	for r := 0; r < 4; r++ {
		for i := 0; i < 16; i++ {
			want := int64(r*16 + i)
			glyph := matrix.Rows[r].Glyphs[i]
			if x := gc.Car(glyph.Object); x.Fixnum() != want {
				t.Fatalf("glyph %v/%v: expected %v, got %v", r, i, want, x.Fixnum())
			}
		}
	}
	gc.OnFreeGlyphMatrix(matrix)
	gc.OnFreeGlyphMatrix(matrix) // second free is a no-op
}

// binding stack growth replaces its root under a parked collector;
// frames and the values they hold stay live and traversable.
func TestSpecpdlGrow(t *testing.T) {
	gc := Init(testsettings())
	defer gc.Close()
	thr := gc.Main()

	gc.OnAllocMainThreadSpecpdl()
	n := 10000 // forces several regrows past specpdl.size
	for i := 0; i < n; i++ {
		val := thr.MakeCons(api.MakeFixnum(int64(i)), Nil)
		thr.PushBinding(gc.BuiltinSymbol(1), val)
		if i%1000 == 0 {
			gc.Arena().Collect()
		}
	}
	if x := thr.Bindings(); x != n {
		t.Errorf("expected %v bindings, got %v", n, x)
	}
	gc.Arena().Collect()

	for i := 0; i < n; i++ {
		b := thr.Binding(i)
		if x := gc.Car(b.OldValue); x.Fixnum() != int64(i) {
			t.Fatalf("binding %v: expected %v, got %v", i, i, x.Fixnum())
		}
	}
	for i := 0; i < n; i++ {
		thr.PopBinding()
	}
	if x := thr.Bindings(); x != 0 {
		t.Errorf("expected empty binding stack, got %v", x)
	}
	// released frames are zeroed
	if b := thr.specpdl[0]; b.Kind != 0 || b.Symbol != 0 || b.OldValue != 0 {
		t.Errorf("released frame not zeroed: %+v", b)
	}
}
