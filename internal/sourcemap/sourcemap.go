// Package sourcemap does two jobs: decoding the per-file encoded map
// esbuild's Transform emits into the tuple form internal/module.RawSourceMap
// holds, and composing many per-module maps, each with its own line offset
// once the serializer has placed that module's code in the bundle, into the
// single final version-3 encoded map bungae writes out. The VLQ codec is
// the standard base64 variable-length-quantity scheme.
package sourcemap

import (
	"encoding/json"
	"strings"

	"bungae.dev/bungae/internal/module"
)

var base64Chars = []byte("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/")

var base64Decode = func() [256]int8 {
	var table [256]int8
	for i := range table {
		table[i] = -1
	}
	for i, c := range base64Chars {
		table[c] = int8(i)
	}
	return table
}()

// encodeVLQ appends the VLQ base64 encoding of value to dst.
func encodeVLQ(dst []byte, value int) []byte {
	var vlq int
	if value < 0 {
		vlq = ((-value) << 1) | 1
	} else {
		vlq = value << 1
	}
	for {
		digit := vlq & 31
		vlq >>= 5
		if vlq != 0 {
			digit |= 32
		}
		dst = append(dst, base64Chars[digit])
		if vlq == 0 {
			break
		}
	}
	return dst
}

// decodeVLQ reads one VLQ value starting at s[start], returning the value
// and the index just past it.
func decodeVLQ(s string, start int) (int, int, bool) {
	shift := 0
	vlq := 0
	i := start
	for {
		if i >= len(s) {
			return 0, 0, false
		}
		digit := base64Decode[s[i]]
		if digit < 0 {
			return 0, 0, false
		}
		vlq |= int(digit&31) << shift
		i++
		shift += 5
		if digit&32 == 0 {
			break
		}
	}
	value := vlq >> 1
	if vlq&1 != 0 {
		value = -value
	}
	return value, i, true
}

// jsonMap is the on-the-wire shape of a standard source map, which is what
// esbuild's api.TransformResult.Map contains as a JSON string.
type jsonMap struct {
	Version        int      `json:"version"`
	Sources        []string `json:"sources"`
	SourcesContent []string `json:"sourcesContent"`
	Names          []string `json:"names"`
	Mappings       string   `json:"mappings"`
}

// Decode parses a standard encoded source map (the JSON string esbuild's
// Transform returns) into bungae's flat tuple form. Each returned
// SegmentTuple starts with the explicit (genLine, genCol) pair — unlike the
// wire format, where the line is implicit in the ";"-separated grouping —
// followed optionally by (srcLine, srcCol) and a trailing name index, per
// internal/module.SegmentTuple's documented shape. genLine/genCol/srcLine/
// srcCol/nameIdx are all 0-based, matching the wire format's own convention.
func Decode(raw string) (module.RawSourceMap, []string, error) {
	if raw == "" {
		return module.RawSourceMap{}, nil, nil
	}
	var jm jsonMap
	if err := json.Unmarshal([]byte(raw), &jm); err != nil {
		return module.RawSourceMap{}, nil, err
	}

	var segments []module.SegmentTuple
	srcLine, srcCol, nameIdx := 0, 0, 0

	for genLine, line := range strings.Split(jm.Mappings, ";") {
		genCol := 0
		if line == "" {
			continue
		}
		for _, seg := range strings.Split(line, ",") {
			if seg == "" {
				continue
			}
			pos := 0
			var fields []int
			for len(fields) < 5 && pos < len(seg) {
				v, next, ok := decodeVLQ(seg, pos)
				if !ok {
					break
				}
				fields = append(fields, v)
				pos = next
			}
			if len(fields) == 0 {
				continue
			}
			genCol += fields[0]
			tuple := module.SegmentTuple{genLine, genCol}
			if len(fields) >= 4 {
				srcLine += fields[2]
				srcCol += fields[3]
				tuple = append(tuple, srcLine, srcCol)
			}
			if len(fields) == 5 {
				nameIdx += fields[4]
				tuple = append(tuple, nameIdx)
			}
			segments = append(segments, tuple)
		}
	}

	return module.RawSourceMap{Segments: segments, Names: jm.Names}, jm.Sources, nil
}

// ModuleMap is one module's contribution to a composed bundle map: its raw
// per-file map plus the line offset at which its code landed in the final
// bundle (the serializer computes this by counting newlines emitted so far)
// and the source file's own path and content, for the sources/sourcesContent
// arrays.
type ModuleMap struct {
	Raw           module.RawSourceMap
	LineOffset    int
	Source        string
	SourceContent string
}

// Compose builds the final encoded "mappings" string plus the sources,
// sourcesContent and names arrays for a bundle assembled from the given
// per-module maps in bundle order:
// every module's segments are shifted down by its line offset, source and
// name indices are renumbered into one shared namespace, and lines with no
// module mapped to them (the prelude, for one) are left empty.
func Compose(maps []ModuleMap) (mappings string, sources []string, sourcesContent []string, names []string) {
	nameIndex := map[string]int{}
	lineSegs := map[int][]module.SegmentTuple{}
	maxLine := 0

	for i, m := range maps {
		sources = append(sources, m.Source)
		sourcesContent = append(sourcesContent, m.SourceContent)

		localNameRemap := make([]int, len(m.Raw.Names))
		for j, n := range m.Raw.Names {
			idx, ok := nameIndex[n]
			if !ok {
				idx = len(names)
				nameIndex[n] = idx
				names = append(names, n)
			}
			localNameRemap[j] = idx
		}

		for _, seg := range m.Raw.Segments {
			line := seg[0] + m.LineOffset
			tuple := module.SegmentTuple{line, seg[1]}
			if len(seg) >= 4 {
				tuple = append(tuple, i, seg[2], seg[3])
			}
			if len(seg) == 5 {
				tuple = append(tuple, localNameRemap[seg[4]])
			}
			lineSegs[line] = append(lineSegs[line], tuple)
			if line > maxLine {
				maxLine = line
			}
		}
	}

	var b strings.Builder
	prevSrc, prevSrcLine, prevSrcCol, prevName := 0, 0, 0, 0
	for line := 0; line <= maxLine; line++ {
		if line > 0 {
			b.WriteByte(';')
		}
		genCol := 0
		for segIdx, seg := range lineSegs[line] {
			if segIdx > 0 {
				b.WriteByte(',')
			}
			var buf []byte
			buf = encodeVLQ(buf, seg[1]-genCol)
			genCol = seg[1]
			if len(seg) >= 5 {
				buf = encodeVLQ(buf, seg[2]-prevSrc)
				prevSrc = seg[2]
				buf = encodeVLQ(buf, seg[3]-prevSrcLine)
				prevSrcLine = seg[3]
				buf = encodeVLQ(buf, seg[4]-prevSrcCol)
				prevSrcCol = seg[4]
			}
			if len(seg) == 6 {
				buf = encodeVLQ(buf, seg[5]-prevName)
				prevName = seg[5]
			}
			b.Write(buf)
		}
	}

	return b.String(), sources, sourcesContent, names
}
