// Package render implements the local rendering pipeline a parview actor
// owns: a block-local scalar volume, a transfer function, an orbital
// camera, and a software raycaster with volume and isosurface modes.
//
// Each actor renders only its own block. The client composites the
// per-block frames with [Composite], ordering them by view depth and
// blending front to back — the sort-last compositing scheme distributed
// volume renderers use.
//
// All pixel buffers are premultiplied float32 RGBA so blending stays
// exact until final image conversion.
package render
