package resource

import (
	"fmt"
	"math/bits"
	"strings"

	"github.com/gogpu/gputypes"
)

// DefaultPlacementAlignment is the alignment of resources placed in a heap.
const DefaultPlacementAlignment = 64 * 1024

// BlockSize returns the size in bytes of one texel of an uncompressed
// format, or 0 for formats the graph cannot size (compressed or unknown).
func BlockSize(f gputypes.TextureFormat) uint32 {
	switch f {
	case gputypes.TextureFormatR8Unorm, gputypes.TextureFormatR8Snorm,
		gputypes.TextureFormatR8Uint, gputypes.TextureFormatR8Sint,
		gputypes.TextureFormatStencil8:
		return 1
	case gputypes.TextureFormatR16Unorm, gputypes.TextureFormatR16Snorm,
		gputypes.TextureFormatR16Uint, gputypes.TextureFormatR16Sint,
		gputypes.TextureFormatR16Float,
		gputypes.TextureFormatRG8Unorm, gputypes.TextureFormatRG8Snorm,
		gputypes.TextureFormatRG8Uint, gputypes.TextureFormatRG8Sint,
		gputypes.TextureFormatDepth16Unorm:
		return 2
	case gputypes.TextureFormatR32Float, gputypes.TextureFormatR32Uint,
		gputypes.TextureFormatR32Sint,
		gputypes.TextureFormatRG16Unorm, gputypes.TextureFormatRG16Snorm,
		gputypes.TextureFormatRG16Uint, gputypes.TextureFormatRG16Sint,
		gputypes.TextureFormatRG16Float,
		gputypes.TextureFormatRGBA8Unorm, gputypes.TextureFormatRGBA8UnormSrgb,
		gputypes.TextureFormatRGBA8Snorm, gputypes.TextureFormatRGBA8Uint,
		gputypes.TextureFormatRGBA8Sint,
		gputypes.TextureFormatBGRA8Unorm, gputypes.TextureFormatBGRA8UnormSrgb,
		gputypes.TextureFormatRGB10A2Uint, gputypes.TextureFormatRGB10A2Unorm,
		gputypes.TextureFormatRG11B10Ufloat, gputypes.TextureFormatRGB9E5Ufloat,
		gputypes.TextureFormatDepth24Plus, gputypes.TextureFormatDepth24PlusStencil8,
		gputypes.TextureFormatDepth32Float:
		return 4
	case gputypes.TextureFormatRG32Float, gputypes.TextureFormatRG32Uint,
		gputypes.TextureFormatRG32Sint,
		gputypes.TextureFormatRGBA16Unorm, gputypes.TextureFormatRGBA16Snorm,
		gputypes.TextureFormatRGBA16Uint, gputypes.TextureFormatRGBA16Sint,
		gputypes.TextureFormatRGBA16Float,
		gputypes.TextureFormatDepth32FloatStencil8:
		return 8
	case gputypes.TextureFormatRGBA32Float, gputypes.TextureFormatRGBA32Uint,
		gputypes.TextureFormatRGBA32Sint:
		return 16
	default:
		return 0
	}
}

// SingleBufferUsage reports whether u has exactly one usage bit set.
func SingleBufferUsage(u gputypes.BufferUsage) bool {
	return bits.OnesCount64(uint64(u)) == 1
}

// SingleTextureUsage reports whether u has exactly one usage bit set.
func SingleTextureUsage(u gputypes.TextureUsage) bool {
	return bits.OnesCount64(uint64(u)) == 1
}

// WritableBufferUsage reports whether u lets a pass write the buffer.
func WritableBufferUsage(u gputypes.BufferUsage) bool {
	return u == gputypes.BufferUsageStorage || u == gputypes.BufferUsageCopyDst
}

// WritableTextureUsage reports whether u lets a pass write the texture.
func WritableTextureUsage(u gputypes.TextureUsage) bool {
	switch u {
	case gputypes.TextureUsageRenderAttachment,
		gputypes.TextureUsageStorageBinding,
		gputypes.TextureUsageCopyDst:
		return true
	default:
		return false
	}
}

var bufferUsageNames = []struct {
	flag gputypes.BufferUsage
	name string
}{
	{gputypes.BufferUsageMapRead, "MapRead"},
	{gputypes.BufferUsageMapWrite, "MapWrite"},
	{gputypes.BufferUsageCopySrc, "CopySrc"},
	{gputypes.BufferUsageCopyDst, "CopyDst"},
	{gputypes.BufferUsageIndex, "Index"},
	{gputypes.BufferUsageVertex, "Vertex"},
	{gputypes.BufferUsageUniform, "Uniform"},
	{gputypes.BufferUsageStorage, "Storage"},
	{gputypes.BufferUsageIndirect, "Indirect"},
	{gputypes.BufferUsageQueryResolve, "QueryResolve"},
}

var textureUsageNames = []struct {
	flag gputypes.TextureUsage
	name string
}{
	{gputypes.TextureUsageCopySrc, "CopySrc"},
	{gputypes.TextureUsageCopyDst, "CopyDst"},
	{gputypes.TextureUsageTextureBinding, "TextureBinding"},
	{gputypes.TextureUsageStorageBinding, "StorageBinding"},
	{gputypes.TextureUsageRenderAttachment, "RenderAttachment"},
}

// BufferUsageName formats buffer usage flags as "CopySrc|Storage".
// The empty set is "None".
func BufferUsageName(u gputypes.BufferUsage) string {
	var parts []string
	for _, n := range bufferUsageNames {
		if u&n.flag != 0 {
			parts = append(parts, n.name)
			u &^= n.flag
		}
	}
	return joinUsage(parts, uint64(u))
}

// TextureUsageName formats texture usage flags as "CopyDst|RenderAttachment".
func TextureUsageName(u gputypes.TextureUsage) string {
	var parts []string
	for _, n := range textureUsageNames {
		if u&n.flag != 0 {
			parts = append(parts, n.name)
			u &^= n.flag
		}
	}
	return joinUsage(parts, uint64(u))
}

func joinUsage(parts []string, unknown uint64) string {
	if unknown != 0 {
		parts = append(parts, fmt.Sprintf("%#x", unknown))
	}
	if len(parts) == 0 {
		return "None"
	}
	return strings.Join(parts, "|")
}

// ParseBufferUsage parses flags written as by BufferUsageName. Names are
// case-insensitive; "None" and "" are the empty set.
func ParseBufferUsage(s string) (gputypes.BufferUsage, error) {
	var u gputypes.BufferUsage
	for _, part := range splitUsage(s) {
		found := false
		for _, n := range bufferUsageNames {
			if strings.EqualFold(part, n.name) {
				u |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("resource: unknown buffer usage %q", part)
		}
	}
	return u, nil
}

// ParseTextureUsage parses flags written as by TextureUsageName.
func ParseTextureUsage(s string) (gputypes.TextureUsage, error) {
	var u gputypes.TextureUsage
	for _, part := range splitUsage(s) {
		found := false
		for _, n := range textureUsageNames {
			if strings.EqualFold(part, n.name) {
				u |= n.flag
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("resource: unknown texture usage %q", part)
		}
	}
	return u, nil
}

func splitUsage(s string) []string {
	var parts []string
	for _, p := range strings.Split(s, "|") {
		p = strings.TrimSpace(p)
		if p != "" && !strings.EqualFold(p, "None") {
			parts = append(parts, p)
		}
	}
	return parts
}

// ParseTextureFormat returns the sizable format whose name is s, compared
// case-insensitively ("rgba8unorm", "Depth32Float").
func ParseTextureFormat(s string) (gputypes.TextureFormat, error) {
	for f := gputypes.TextureFormat(1); f < 0x100; f++ {
		if BlockSize(f) != 0 && strings.EqualFold(f.String(), s) {
			return f, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}
