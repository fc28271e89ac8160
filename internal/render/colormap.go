package render

import (
	"math"
	"sort"
	"strings"
	"sync"
)

// Colormap is a 256-entry lookup table from normalized intensity to colour.
type Colormap struct {
	name string
	rgb  [256][3]uint8
	ansi [256]int
}

type colorStop struct {
	at      float64
	r, g, b float64
}

// stops sampled from the matplotlib perceptual colormaps
var colormapRegistry = map[string][]colorStop{
	"viridis": {
		{0, 68, 1, 84}, {0.125, 71, 44, 122}, {0.25, 59, 81, 139},
		{0.375, 44, 113, 142}, {0.5, 33, 144, 141}, {0.625, 39, 173, 129},
		{0.75, 92, 200, 99}, {0.875, 170, 220, 50}, {1, 253, 231, 37},
	},
	"magma": {
		{0, 0, 0, 4}, {0.125, 28, 16, 68}, {0.25, 79, 18, 123},
		{0.375, 129, 37, 129}, {0.5, 181, 54, 122}, {0.625, 229, 80, 100},
		{0.75, 251, 135, 97}, {0.875, 254, 194, 135}, {1, 252, 253, 191},
	},
	"inferno": {
		{0, 0, 0, 4}, {0.125, 31, 12, 72}, {0.25, 85, 15, 109},
		{0.375, 136, 34, 106}, {0.5, 186, 54, 85}, {0.625, 227, 89, 51},
		{0.75, 249, 140, 10}, {0.875, 249, 201, 50}, {1, 252, 255, 164},
	},
	"gray": {
		{0, 0, 0, 0}, {1, 255, 255, 255},
	},
}

var (
	colormapMu    sync.Mutex
	colormapCache = map[string]*Colormap{}
)

// ColormapNames returns the supported colormaps.
func ColormapNames() []string {
	out := make([]string, 0, len(colormapRegistry))
	for name := range colormapRegistry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LookupColormap returns the named colormap, falling back to viridis.
func LookupColormap(name string) *Colormap {
	key := strings.ToLower(name)
	if _, ok := colormapRegistry[key]; !ok {
		key = "viridis"
	}
	colormapMu.Lock()
	defer colormapMu.Unlock()
	if cm, ok := colormapCache[key]; ok {
		return cm
	}
	cm := buildColormap(key, colormapRegistry[key])
	colormapCache[key] = cm
	return cm
}

func buildColormap(name string, stops []colorStop) *Colormap {
	cm := &Colormap{name: name}
	for i := range cm.rgb {
		x := float64(i) / 255
		k := sort.Search(len(stops), func(k int) bool { return stops[k].at >= x })
		var r, g, b float64
		switch {
		case k == 0:
			r, g, b = stops[0].r, stops[0].g, stops[0].b
		case k >= len(stops):
			last := stops[len(stops)-1]
			r, g, b = last.r, last.g, last.b
		default:
			lo, hi := stops[k-1], stops[k]
			t := (x - lo.at) / (hi.at - lo.at)
			r = lerp(lo.r, hi.r, t)
			g = lerp(lo.g, hi.g, t)
			b = lerp(lo.b, hi.b, t)
		}
		cm.rgb[i] = [3]uint8{toByte(r), toByte(g), toByte(b)}
		cm.ansi[i] = rgbToANSI(r/255, g/255, b/255)
	}
	return cm
}

// Name returns the colormap identifier.
func (c *Colormap) Name() string { return c.name }

// Index maps a normalized value to a table index.
func (c *Colormap) Index(v float64) int {
	return clampInt(int(clamp01(v)*255+0.5), 0, 255)
}

// RGB returns the colour for a normalized value.
func (c *Colormap) RGB(v float64) (uint8, uint8, uint8) {
	e := c.rgb[c.Index(v)]
	return e[0], e[1], e[2]
}

// ANSI returns the xterm-256 colour index for a normalized value.
func (c *Colormap) ANSI(v float64) int {
	return c.ansi[c.Index(v)]
}

func rgbToANSI(r, g, b float64) int {
	r = clamp01(r)
	g = clamp01(g)
	b = clamp01(b)
	// grayscale ramp for neutral tones
	if math.Abs(r-g) < 0.02 && math.Abs(g-b) < 0.02 {
		gray := int(clampFloat(math.Round(r*23), 0, 23))
		return 232 + gray
	}
	ri := int(clampFloat(r*5+0.5, 0, 5))
	gi := int(clampFloat(g*5+0.5, 0, 5))
	bi := int(clampFloat(b*5+0.5, 0, 5))
	return 16 + 36*ri + 6*gi + bi
}

func toByte(v float64) uint8 {
	return uint8(clampFloat(math.Round(v), 0, 255))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	return clampFloat(v, 0, 1)
}

func clampFloat(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
