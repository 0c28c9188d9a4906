package render

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/vkngwrapper/core/v3/common"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

func TestRasterizationState(t *testing.T) {
	g := settings.Default().Graphics

	state := rasterizationState(g)
	if state.PolygonMode != core1_0.PolygonModeFill || state.CullMode != core1_0.CullModeBack {
		t.Errorf("expected filled back-face culling, got %v %v", state.PolygonMode, state.CullMode)
	}
	if state.LineWidth != 1 {
		t.Errorf("expected line width 1, got %f", state.LineWidth)
	}

	g.Wireframe = true
	g.WireframeThickness = 3
	state = rasterizationState(g)
	if state.PolygonMode != core1_0.PolygonModeLine || state.CullMode != cullModeNone {
		t.Errorf("expected unculled lines, got %v %v", state.PolygonMode, state.CullMode)
	}
	if state.LineWidth != 3 {
		t.Errorf("expected line width 3, got %f", state.LineWidth)
	}
}

func TestMultisampleState(t *testing.T) {
	g := settings.Default().Graphics
	g.Multisampling = false

	state := multisampleState(g)
	if state.SampleShadingEnable {
		t.Error("sample shading should follow the multisampling setting")
	}
	if state.RasterizationSamples != core1_0.Samples1 {
		t.Errorf("expected one sample, got %v", state.RasterizationSamples)
	}
}

func TestSamplerInfo(t *testing.T) {
	g := settings.Default().Graphics

	info := samplerInfo(g)
	if !info.AnisotropyEnable || info.MaxAnisotropy != 16 {
		t.Errorf("expected 16x anisotropy, got %t %f", info.AnisotropyEnable, info.MaxAnisotropy)
	}

	g.AnisotropicFiltering = false
	info = samplerInfo(g)
	if info.AnisotropyEnable || info.MaxAnisotropy != 1 {
		t.Errorf("expected anisotropy off, got %t %f", info.AnisotropyEnable, info.MaxAnisotropy)
	}
}

func TestBytesToBytecode(t *testing.T) {
	code := bytesToBytecode([]byte{0x03, 0x02, 0x23, 0x07, 0x01, 0x00, 0x00, 0x00})
	if len(code) != 2 || code[0] != 0x07230203 || code[1] != 1 {
		t.Errorf("unexpected bytecode %#x", code)
	}
}

func TestLoadShader(t *testing.T) {
	dir := t.TempDir()

	valid := filepath.Join(dir, "valid.spv")
	if err := os.WriteFile(valid, []byte{0x03, 0x02, 0x23, 0x07}, 0o644); err != nil {
		t.Fatal(err)
	}
	code, err := loadShader(valid)
	if err != nil {
		t.Fatal(err)
	}
	if len(code) != 1 || code[0] != 0x07230203 {
		t.Errorf("unexpected bytecode %#x", code)
	}

	empty := filepath.Join(dir, "empty.spv")
	if err := os.WriteFile(empty, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	truncated := filepath.Join(dir, "truncated.spv")
	if err := os.WriteFile(truncated, []byte{1, 2, 3}, 0o644); err != nil {
		t.Fatal(err)
	}

	for _, path := range []string{empty, truncated, filepath.Join(dir, "missing.spv")} {
		if _, err := loadShader(path); err == nil {
			t.Errorf("expected an error loading %s", filepath.Base(path))
		}
	}
}

var testIdentity = cacheIdentity{
	VendorID: 0x10de,
	DeviceID: 0x2484,
	UUID:     uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8"),
}

func cacheHeader(t *testing.T, length, version uint32, id cacheIdentity) []byte {
	t.Helper()
	var buf bytes.Buffer
	for _, field := range []any{length, version, id.VendorID, id.DeviceID, id.UUID} {
		if err := binary.Write(&buf, common.ByteOrder, field); err != nil {
			t.Fatal(err)
		}
	}
	// Driver payload.
	buf.Write([]byte{1, 2, 3, 4})
	return buf.Bytes()
}

func TestValidateCacheHeader(t *testing.T) {
	version := uint32(cacheHeaderVersionOne)

	otherVendor := testIdentity
	otherVendor.VendorID = 0x1002
	otherDevice := testIdentity
	otherDevice.DeviceID = 1
	otherUUID := testIdentity
	otherUUID.UUID = uuid.MustParse("6ba7b811-9dad-11d1-80b4-00c04fd430c8")

	tests := []struct {
		name  string
		data  []byte
		valid bool
	}{
		{"valid", cacheHeader(t, cacheHeaderSize, version, testIdentity), true},
		{"short", []byte{1, 2, 3}, false},
		{"bad length", cacheHeader(t, 8, version, testIdentity), false},
		{"bad version", cacheHeader(t, cacheHeaderSize, version+1, testIdentity), false},
		{"other vendor", cacheHeader(t, cacheHeaderSize, version, otherVendor), false},
		{"other device", cacheHeader(t, cacheHeaderSize, version, otherDevice), false},
		{"other UUID", cacheHeader(t, cacheHeaderSize, version, otherUUID), false},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := validateCacheHeader(test.data, testIdentity)
			if test.valid && err != nil {
				t.Errorf("expected a valid header, got %v", err)
			}
			if !test.valid && err == nil {
				t.Error("expected the header to be rejected")
			}
		})
	}
}

func TestLoadCacheData(t *testing.T) {
	dir := t.TempDir()
	version := uint32(cacheHeaderVersionOne)

	if data := loadCacheData("", testIdentity); data != nil {
		t.Error("an empty path should load nothing")
	}
	if data := loadCacheData(filepath.Join(dir, "missing.bin"), testIdentity); data != nil {
		t.Error("a missing file should load nothing")
	}

	valid := filepath.Join(dir, "valid.bin")
	contents := cacheHeader(t, cacheHeaderSize, version, testIdentity)
	if err := os.WriteFile(valid, contents, 0o644); err != nil {
		t.Fatal(err)
	}
	if data := loadCacheData(valid, testIdentity); !bytes.Equal(data, contents) {
		t.Error("a matching cache should load in full")
	}

	stale := filepath.Join(dir, "stale.bin")
	otherDevice := testIdentity
	otherDevice.DeviceID = 1
	if err := os.WriteFile(stale, cacheHeader(t, cacheHeaderSize, version, otherDevice), 0o644); err != nil {
		t.Fatal(err)
	}
	if data := loadCacheData(stale, testIdentity); data != nil {
		t.Error("a stale cache should load nothing")
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Error("a stale cache file should be removed")
	}
}
