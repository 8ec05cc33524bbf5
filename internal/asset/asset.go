// Package asset describes an image file's dimensions and scale variants
// and generates the AssetRegistry-registering stub that stands in for an
// asset's module code. Dimension reading for PNG/JPEG/GIF uses stdlib
// image/*'s DecodeConfig, which only reads the header, not the pixels.
// WebP has no stdlib decoder, so its dimensions come from a small manual
// parse of the RIFF/VP8 header.
package asset

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"bungae.dev/bungae/internal/fs"
	"bungae.dev/bungae/internal/helpers"
	"bungae.dev/bungae/internal/module"
)

// Describe reads an asset file's dimensions (when it's a recognized image
// format) and scale variants, returning the AssetMeta the transform and
// serialize stages both need.
func Describe(fsys fs.FS, path, ext string, contents []byte) (*module.AssetMeta, error) {
	name, scaleOfBase := baseNameAndScale(path, ext)

	width, height := readDimensions(ext, contents)

	// The sibling scan widens the scale set but never replaces it: the file
	// itself always contributes its own scale (1 when its name carries no
	// @Nx suffix).
	if scaleOfBase == 0 {
		scaleOfBase = 1
	}
	scales := unionScale(siblingScales(fsys, path, name, ext), scaleOfBase)

	return &module.AssetMeta{
		Name:   name,
		Type:   strings.TrimPrefix(ext, "."),
		Width:  width,
		Height: height,
		Scales: scales,
	}, nil
}

// StubCode generates the module body that registers this asset with the
// React-Native AssetRegistry. scales appears as a literal array so the
// serializer's "scales: [...]" scan can recover it without re-parsing this
// generated code.
func StubCode(root, path string, meta *module.AssetMeta) string {
	loc := httpServerLocation(root, path)
	scaleStrs := make([]string, len(meta.Scales))
	for i, s := range meta.Scales {
		scaleStrs[i] = strconv.FormatFloat(s, 'g', -1, 64)
	}
	return fmt.Sprintf(`module.exports = require('AssetRegistry').registerAsset({
  name: %s,
  type: %s,
  httpServerLocation: %s,
  width: %d,
  height: %d,
  scales: [%s],
});
`, helpers.QuoteForJSON(meta.Name), helpers.QuoteForJSON(meta.Type), helpers.QuoteForJSON(loc), meta.Width, meta.Height, strings.Join(scaleStrs, ", "))
}

// httpServerLocation computes "/assets/<dir-relative-to-root>", collapsing
// to "/assets" when the asset sits at the project root.
func httpServerLocation(root, path string) string {
	dir := fs.Dir(path)
	rel, err := fs.Rel(root, dir)
	if err != nil {
		return "/assets"
	}
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" || rel == "." {
		return "/assets"
	}
	return "/assets/" + rel
}

var scaleSuffix = regexp.MustCompile(`@([0-9]+(?:\.[0-9]+)?)x$`)

// baseNameAndScale strips a "@2x"/"@1.5x" suffix from the asset's own file
// name, returning the scale-free registry name and the scale that suffix
// encodes (0 when the file carries no suffix, meaning "not scale-tagged").
func baseNameAndScale(path, ext string) (name string, scale float64) {
	base := strings.TrimSuffix(fs.Base(path), ext)
	if m := scaleSuffix.FindStringSubmatch(base); m != nil {
		base = strings.TrimSuffix(base, m[0])
		if v, err := strconv.ParseFloat(m[1], 64); err == nil {
			return base, v
		}
	}
	return base, 0
}

// siblingScales scans the asset's own directory for "<name>@Nx.<ext>"
// siblings and collects the scales they declare, in addition to whatever
// the asset's own file name encodes. Sibling scales only ever widen the
// set, never shrink it.
func siblingScales(fsys fs.FS, path, name, ext string) []float64 {
	entries, ok := fsys.ReadDir(fs.Dir(path))
	if !ok {
		return nil
	}
	var scales []float64
	prefix := name + "@"
	for _, entry := range entries {
		if !strings.HasPrefix(entry, prefix) || !strings.HasSuffix(entry, ext) {
			continue
		}
		tag := strings.TrimSuffix(strings.TrimPrefix(entry, prefix), ext)
		if m := scaleSuffix.FindStringSubmatch("@" + tag); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				scales = append(scales, v)
			}
		}
	}
	sort.Float64s(scales)
	return scales
}

func unionScale(scales []float64, extra float64) []float64 {
	for _, s := range scales {
		if s == extra {
			return scales
		}
	}
	scales = append(scales, extra)
	sort.Float64s(scales)
	return scales
}

func readDimensions(ext string, contents []byte) (width, height int) {
	switch ext {
	case ".webp":
		return decodeWebPDimensions(contents)
	case ".bmp", ".ico", ".icns", ".icxl", ".avif":
		return 0, 0 // no stdlib decoder and no pack dependency covers these
	default:
		cfg, _, err := image.DecodeConfig(bytes.NewReader(contents))
		if err != nil {
			return 0, 0
		}
		return cfg.Width, cfg.Height
	}
}

// decodeWebPDimensions reads just enough of the RIFF container to find the
// VP8/VP8L/VP8X chunk and pull dimensions out of its fixed-layout header,
// without decoding any pixel data.
func decodeWebPDimensions(b []byte) (width, height int) {
	if len(b) < 30 || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WEBP" {
		return 0, 0
	}
	chunk := string(b[12:16])
	switch chunk {
	case "VP8X":
		// Bytes 24-26 and 27-29 are 24-bit little-endian (width-1)/(height-1).
		w := uint32(b[24]) | uint32(b[25])<<8 | uint32(b[26])<<16
		h := uint32(b[27]) | uint32(b[28])<<8 | uint32(b[29])<<16
		return int(w) + 1, int(h) + 1
	case "VP8 ":
		if len(b) < 30 {
			return 0, 0
		}
		// Bytes 26-27 and 28-29 are 14-bit width/height, top 2 bits are scale.
		w := binary.LittleEndian.Uint16(b[26:28]) & 0x3FFF
		h := binary.LittleEndian.Uint16(b[28:30]) & 0x3FFF
		return int(w), int(h)
	case "VP8L":
		if len(b) < 25 {
			return 0, 0
		}
		// 14 bits width-1, 14 bits height-1, packed little-endian starting
		// after the 0x2F signature byte at offset 20.
		bits := uint32(b[21]) | uint32(b[22])<<8 | uint32(b[23])<<16 | uint32(b[24])<<24
		w := (bits & 0x3FFF) + 1
		h := ((bits >> 14) & 0x3FFF) + 1
		return int(w), int(h)
	}
	return 0, 0
}
