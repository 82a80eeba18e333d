package noise

// ChunkMapper converts a tile position inside a chunk to world coordinates
type ChunkMapper interface {
	World(chunk ChunkCoord, col, row int) (x, y float64)
}

// GridMapper lays chunks out edge to edge on a square grid
type GridMapper struct {
	ChunkWidth  int
	ChunkHeight int
}

// World returns the global tile coordinate
func (m GridMapper) World(chunk ChunkCoord, col, row int) (float64, float64) {
	return float64(chunk.X*m.ChunkWidth + col), float64(chunk.Y*m.ChunkHeight + row)
}

// IsometricMapper projects global tile coordinates onto a diamond grid
// with tiles TileWidth wide and TileHeight tall.
type IsometricMapper struct {
	ChunkWidth  int
	ChunkHeight int
	TileWidth   float64
	TileHeight  float64
}

// World returns the isometric screen-space position of the tile
func (m IsometricMapper) World(chunk ChunkCoord, col, row int) (float64, float64) {
	gx := float64(chunk.X*m.ChunkWidth + col)
	gy := float64(chunk.Y*m.ChunkHeight + row)
	return (gx - gy) * m.TileWidth / 2, (gx + gy) * m.TileHeight / 2
}
