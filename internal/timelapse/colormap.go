package timelapse

import (
	"encoding/json"
	"strings"
)

// Breakpoint maps a half-open estimate range [Low, High) to an RGBA colour.
type Breakpoint struct {
	Low, High int
	RGBA      [4]uint8
}

// MarshalJSON renders the breakpoint in the tile service's [[low, high], [r, g, b, a]] form.
func (b Breakpoint) MarshalJSON() ([]byte, error) {
	return json.Marshal([2][]int{
		{b.Low, b.High},
		{int(b.RGBA[0]), int(b.RGBA[1]), int(b.RGBA[2]), int(b.RGBA[3])},
	})
}

// PrecipColormap covers the full QPE domain. The lowest bucket is transparent
// so no-data and sub-threshold pixels do not tint the map.
var PrecipColormap = []Breakpoint{
	{Low: -100, High: 0, RGBA: [4]uint8{173, 216, 230, 0}},
	{Low: 0, High: 1, RGBA: [4]uint8{135, 206, 235, 255}},
	{Low: 1, High: 2, RGBA: [4]uint8{0, 191, 255, 255}},
	{Low: 2, High: 3, RGBA: [4]uint8{0, 127, 255, 255}},
	{Low: 3, High: 4, RGBA: [4]uint8{0, 0, 255, 255}},
	{Low: 4, High: 5, RGBA: [4]uint8{0, 0, 139, 255}},
	{Low: 5, High: 100, RGBA: [4]uint8{25, 25, 112, 255}},
}

// renderParams builds the fixed query suffix appended after the encoded storage path.
func renderParams(colormap []Breakpoint) (string, error) {
	cm, err := json.Marshal(colormap)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	b.WriteString("&resampling=cubic_spline")
	b.WriteString("&nodata=0")
	b.WriteString("&colormap=")
	b.WriteString(encodeURIComponent(string(cm)))
	return b.String(), nil
}

// encodeURIComponent percent-encodes s the way browsers do for a URI component:
// letters, digits and -_.!~*'() stay literal, spaces become %20.
func encodeURIComponent(s string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(s) * 3)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if isUnreserved(c) {
			b.WriteByte(c)
			continue
		}
		b.WriteByte('%')
		b.WriteByte(hex[c>>4])
		b.WriteByte(hex[c&0x0f])
	}
	return b.String()
}

func isUnreserved(c byte) bool {
	switch {
	case 'a' <= c && c <= 'z', 'A' <= c && c <= 'Z', '0' <= c && c <= '9':
		return true
	}
	return strings.IndexByte("-_.!~*'()", c) >= 0
}
