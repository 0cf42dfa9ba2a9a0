package igc

import "unsafe"

import "github.com/bnclabs/goigc/api"

// LFaceSize number of value words in a face's lface vector.
const LFaceSize = 16

// Face one realized face. Only the lface vector holds value words.
type Face struct {
	Lface [LFaceSize]Word
	ID    int
	Font  uintptr
}

// FaceCache a frame's cache of realized faces. FacesByID is the
// region covered by the cache's exact root; igcinfo is the installed
// root handle.
type FaceCache struct {
	FacesByID []*Face
	Used      int
	igcinfo   *RootInfo
}

// NewFaceCache make a cache with room for size faces.
func NewFaceCache(size int) *FaceCache {
	return &FaceCache{FacesByID: make([]*Face, size)}
}

// scanfaces fix the lface vector of every realized face. For all
// faces in a face cache we need to fix the vector of value words.
func (gc *IGC) scanfaces(ss api.ScanState, start, end uintptr, closure interface{}) error {
	cache := closure.(*FaceCache)
	for _, face := range cache.FacesByID {
		if face == nil {
			continue
		}
		for i := range face.Lface {
			if err := gc.fix(ss, &face.Lface[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnMakeFaceCache called when a face cache is created; installs the
// exact root over its faces-by-id vector.
func (gc *IGC) OnMakeFaceCache(cache *FaceCache) {
	start := uintptr(unsafe.Pointer(&cache.FacesByID[0]))
	end := start + uintptr(len(cache.FacesByID))*unsafe.Sizeof((*Face)(nil))
	cache.igcinfo = gc.arena.CreateExactRoot(start, end, gc.scanfaces, cache)
}

// OnFreeFaceCache called when the cache is freed.
func (gc *IGC) OnFreeFaceCache(cache *FaceCache) {
	gc.arena.DestroyRoot(cache.igcinfo)
	cache.igcinfo = nil
}

// OnFaceCacheChange called when the cache's vector was reallocated.
// The root is replaced remove-first under a parked collector; adding
// the new root before removing the old one could overlap after a
// realloc.
func (gc *IGC) OnFaceCacheChange(cache *FaceCache) {
	gc.arena.WithParked(func() {
		gc.OnFreeFaceCache(cache)
		gc.OnMakeFaceCache(cache)
	})
}

// Glyph one display glyph; Object is the value word it came from.
type Glyph struct {
	Object  Word
	Charpos int
	Pixel   uint32
}

// GlyphRow one matrix row.
type GlyphRow struct {
	Glyphs []Glyph
	Used   int
}

// GlyphMatrix a window's glyph matrix. Rows are covered by one exact
// root which fixes one reference per glyph.
type GlyphMatrix struct {
	Rows    []GlyphRow
	igcinfo *RootInfo
}

// scanglyphrows per row, iterate the glyph regions and fix one
// reference per glyph.
func (gc *IGC) scanglyphrows(ss api.ScanState, start, end uintptr, closure interface{}) error {
	matrix := closure.(*GlyphMatrix)
	for r := range matrix.Rows {
		row := &matrix.Rows[r]
		for i := range row.Glyphs {
			if err := gc.fix(ss, &row.Glyphs[i].Object); err != nil {
				return err
			}
		}
	}
	return nil
}

// OnAdjustGlyphMatrix called when the matrix is created or resized.
func (gc *IGC) OnAdjustGlyphMatrix(matrix *GlyphMatrix) {
	gc.arena.WithParked(func() {
		if matrix.igcinfo != nil {
			gc.arena.DestroyRoot(matrix.igcinfo)
		}
		start := uintptr(unsafe.Pointer(&matrix.Rows[0]))
		end := start + uintptr(len(matrix.Rows))*unsafe.Sizeof(GlyphRow{})
		matrix.igcinfo = gc.arena.CreateExactRoot(start, end, gc.scanglyphrows, matrix)
	})
}

// OnFreeGlyphMatrix called when the matrix is freed.
func (gc *IGC) OnFreeGlyphMatrix(matrix *GlyphMatrix) {
	if matrix.igcinfo != nil {
		gc.arena.DestroyRoot(matrix.igcinfo)
		matrix.igcinfo = nil
	}
}
