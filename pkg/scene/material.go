package scene

// MaterialKind selects how a material is drawn.
type MaterialKind int

const (
	MaterialShaded MaterialKind = iota // lit triangles
	MaterialLine                       // unlit line strips
)

// Material describes the surface of a mesh or line strip.
type Material struct {
	Name      string
	Kind      MaterialKind
	Color     [3]float32
	Metalness float32
	Roughness float32

	// Shared materials belong to a Palette and outlive any one Graph.
	Shared bool

	releasable
}

// Dispose releases the material. It returns true only for the call that
// performed the release.
func (m *Material) Dispose() bool {
	return m.release()
}

// PaletteSize is the number of shaded materials a Palette cycles through.
const PaletteSize = 6

var paletteColors = [PaletteSize][3]float32{
	{0.53, 0.53, 0.53},
	{0.42, 0.53, 0.66},
	{0.66, 0.55, 0.42},
	{0.48, 0.63, 0.50},
	{0.67, 0.46, 0.46},
	{0.58, 0.54, 0.70},
}

// Palette is a fixed set of reusable materials. Meshes pick a shaded
// material by index modulo PaletteSize; DXF line strips share one line
// material. A Palette is immutable after creation.
type Palette struct {
	shaded [PaletteSize]*Material
	line   *Material
}

// NewPalette creates the shared materials.
func NewPalette() *Palette {
	p := &Palette{}
	for i, c := range paletteColors {
		p.shaded[i] = &Material{
			Name:      "palette",
			Kind:      MaterialShaded,
			Color:     c,
			Metalness: 0.1,
			Roughness: 0.6,
			Shared:    true,
		}
	}
	p.line = &Material{
		Name:   "line",
		Kind:   MaterialLine,
		Color:  [3]float32{0.1, 0.1, 0.12},
		Shared: true,
	}
	return p
}

// At returns the shaded material for the i-th mesh added to a scene.
func (p *Palette) At(i int) *Material {
	if i < 0 {
		i = -i
	}
	return p.shaded[i%PaletteSize]
}

// Line returns the material used for line strips.
func (p *Palette) Line() *Material {
	return p.line
}

// Dispose releases all palette materials.
func (p *Palette) Dispose() {
	for _, m := range p.shaded {
		m.Dispose()
	}
	p.line.Dispose()
}
