package slide

import (
	"image"

	"github.com/ironsheep/slide-tools-mcp/internal/raster"
)

// Rect is a pixel rectangle. X and Y are the top-left corner.
type Rect struct {
	X      int `json:"x" yaml:"x"`
	Y      int `json:"y" yaml:"y"`
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Image converts r to an image.Rectangle.
func (r Rect) Image() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

// RectFromImage is the inverse of Rect.Image.
func RectFromImage(r image.Rectangle) Rect {
	return Rect{X: r.Min.X, Y: r.Min.Y, Width: r.Dx(), Height: r.Dy()}
}

// Size is a width/height pair.
type Size struct {
	Width  int `json:"width" yaml:"width"`
	Height int `json:"height" yaml:"height"`
}

// Range is a half-open index interval [First, Last). The zero Range stands
// for the single index 0.
type Range struct {
	First int `json:"first" yaml:"first"`
	Last  int `json:"last" yaml:"last"`
}

// Len returns Last-First.
func (r Range) Len() int { return r.Last - r.First }

// Resolution is the physical size of one pixel in meters.
type Resolution struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ChannelInfo describes one channel of a scene.
type ChannelInfo struct {
	Name string          `json:"name,omitempty"`
	Type raster.DataType `json:"data_type"`
}

// SceneInfo is the static description of a scene reported by its source.
type SceneInfo struct {
	Name          string        `json:"name"`
	FilePath      string        `json:"file_path"`
	Rect          Rect          `json:"rect"`
	Channels      []ChannelInfo `json:"channels"`
	NumZSlices    int           `json:"num_z_slices"`
	NumTFrames    int           `json:"num_t_frames"`
	Resolution    Resolution    `json:"resolution"`
	ZResolution   float64       `json:"z_resolution"`
	TResolution   float64       `json:"t_resolution"`
	Magnification float64       `json:"magnification"`
	Compression   Compression   `json:"compression"`
}

// Level is one resolution of a scene pyramid. Level 0 is the full resolution
// scene; coarser levels follow in decreasing Scale.
type Level struct {
	Width      int     `json:"width"`
	Height     int     `json:"height"`
	TileWidth  int     `json:"tile_width"`
	TileHeight int     `json:"tile_height"`
	Scale      float64 `json:"scale"`
}

// TilesAcross is the number of tile columns.
func (l Level) TilesAcross() int {
	return (l.Width + l.TileWidth - 1) / l.TileWidth
}

// TilesDown is the number of tile rows.
func (l Level) TilesDown() int {
	return (l.Height + l.TileHeight - 1) / l.TileHeight
}

// NumTiles is TilesAcross*TilesDown.
func (l Level) NumTiles() int {
	return l.TilesAcross() * l.TilesDown()
}

// TileRect returns the level-space rectangle covered by tile index, clipped
// to the level.
func (l Level) TileRect(index int) image.Rectangle {
	col := index % l.TilesAcross()
	row := index / l.TilesAcross()
	r := image.Rect(col*l.TileWidth, row*l.TileHeight, (col+1)*l.TileWidth, (row+1)*l.TileHeight)
	return r.Intersect(image.Rect(0, 0, l.Width, l.Height))
}

// BlockRequest parameterizes Scene.ReadBlock. All fields are optional:
//   - Rect: scene-relative region; zero width or height extends to the edge.
//   - Size: output size; zero components are derived from the aspect ratio.
//   - Channels: channel indices in output order; empty means all.
//   - ZRange, TRange: half-open slice and frame ranges; zero means [0,1).
type BlockRequest struct {
	Rect     Rect  `json:"rect"`
	Size     Size  `json:"size"`
	Channels []int `json:"channels,omitempty"`
	ZRange   Range `json:"z_range"`
	TRange   Range `json:"t_range"`
}
