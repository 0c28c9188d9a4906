package model

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

const quadOBJ = `o quad
v -1 -1 0
v 1 -1 0
v 1 1 0
v -1 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

const sharedCornerOBJ = `o tris
v 0 0 0
v 1 0 0
v 0 1 0
v 1 1 0
vt 0 0
vt 1 0
vt 0 1
vt 1 1
vt 0.5 0.5
f 1/1 2/2 3/3
f 2/2 4/4 3/3
f 1/5 2/2 3/3
`

func TestDecodeOBJTriangulatesQuad(t *testing.T) {
	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), nil)
	if err != nil {
		t.Fatal(err)
	}

	if len(mesh.Vertices) != 4 {
		t.Errorf("expected 4 unique vertices, got %d", len(mesh.Vertices))
	}

	expected := []uint32{0, 1, 2, 0, 2, 3}
	if len(mesh.Indices) != len(expected) {
		t.Fatalf("expected %d indices, got %d", len(expected), len(mesh.Indices))
	}
	for i := range expected {
		if mesh.Indices[i] != expected[i] {
			t.Errorf("index %d: expected %d, got %d", i, expected[i], mesh.Indices[i])
		}
	}
}

func TestDecodeOBJFlipsV(t *testing.T) {
	mesh, err := DecodeOBJ(strings.NewReader(quadOBJ), nil)
	if err != nil {
		t.Fatal(err)
	}

	first := mesh.Vertices[0]
	if first.TexCoord != (mgl32.Vec2{0, 1}) {
		t.Errorf("expected flipped texcoord (0,1), got %v", first.TexCoord)
	}
	if first.Color != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("expected white vertex color, got %v", first.Color)
	}
}

func TestDecodeOBJMergesOnPositionAndUV(t *testing.T) {
	mesh, err := DecodeOBJ(strings.NewReader(sharedCornerOBJ), nil)
	if err != nil {
		t.Fatal(err)
	}

	// Four corners plus a second copy of the first corner with another UV.
	if len(mesh.Vertices) != 5 {
		t.Errorf("expected 5 unique vertices, got %d", len(mesh.Vertices))
	}
	if len(mesh.Indices) != 9 {
		t.Errorf("expected 9 indices, got %d", len(mesh.Indices))
	}
}

func TestDecodeOBJEmpty(t *testing.T) {
	_, err := DecodeOBJ(strings.NewReader("o empty\nv 0 0 0\n"), nil)
	if err == nil {
		t.Error("expected an error for an OBJ without faces")
	}
}

const epsilon = 1e-4

func vecClose(a, b mgl32.Vec3) bool {
	for i := range a {
		if mgl32.Abs(a[i]-b[i]) > epsilon {
			return false
		}
	}
	return true
}

func matClose(a, b mgl32.Mat4) bool {
	for i := range a {
		if mgl32.Abs(a[i]-b[i]) > epsilon {
			return false
		}
	}
	return true
}

func TestTransformMatrix(t *testing.T) {
	tr := IdentityTransform()
	if !matClose(tr.Matrix(), mgl32.Ident4()) {
		t.Error("identity transform should give the identity matrix")
	}

	tr.Position = mgl32.Vec3{0, -2, 0}
	tr.Rotation = mgl32.Vec3{0, 180, 0}
	tr.Scale = mgl32.Vec3{0.1, 0.1, 0.1}

	p := tr.Matrix().Mul4x1(mgl32.Vec4{10, 0, 0, 1})
	if !vecClose(p.Vec3(), mgl32.Vec3{-1, -2, 0}) {
		t.Errorf("expected scale, then rotate, then translate; got %v", p.Vec3())
	}
}

func encodePNG(t *testing.T, img image.Image) []byte {
	t.Helper()
	buf := &bytes.Buffer{}
	if err := png.Encode(buf, img); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestDecodeTexture(t *testing.T) {
	img := image.NewNRGBA(image.Rect(0, 0, 2, 3))
	img.Set(1, 2, color.NRGBA{R: 10, G: 20, B: 30, A: 255})

	texture, err := DecodeTexture(bytes.NewReader(encodePNG(t, img)))
	if err != nil {
		t.Fatal(err)
	}

	if texture.Width != 2 || texture.Height != 3 {
		t.Fatalf("unexpected size %dx%d", texture.Width, texture.Height)
	}
	if texture.Size() != 2*3*4 {
		t.Fatalf("expected %d bytes, got %d", 2*3*4, texture.Size())
	}

	offset := (2*2 + 1) * 4
	pixel := texture.Pixels[offset : offset+4]
	if !bytes.Equal(pixel, []byte{10, 20, 30, 255}) {
		t.Errorf("unexpected pixel %v", pixel)
	}
}

func TestDecodeTextureGarbage(t *testing.T) {
	_, err := DecodeTexture(strings.NewReader("not an image"))
	if err == nil {
		t.Error("expected decode failure")
	}
}

func TestLoadMissingTextureFallsBack(t *testing.T) {
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(meshPath, []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := Load(meshPath, "", filepath.Join(dir, "missing.png"))
	if err != nil {
		t.Fatal(err)
	}

	if m.Texture.Width != 1 || m.Texture.Height != 1 {
		t.Errorf("expected the blank texture, got %dx%d", m.Texture.Width, m.Texture.Height)
	}
	if m.Name != "quad.obj" {
		t.Errorf("unexpected name %q", m.Name)
	}
}

func TestLoadMissingMeshFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.obj"), "", "")
	if err == nil {
		t.Error("expected a missing mesh to fail")
	}
}

func TestLoadScene(t *testing.T) {
	dir := t.TempDir()
	meshPath := filepath.Join(dir, "quad.obj")
	if err := os.WriteFile(meshPath, []byte(quadOBJ), 0o644); err != nil {
		t.Fatal(err)
	}

	models, err := LoadScene([]settings.ModelSettings{
		{Mesh: meshPath, Position: [3]float32{0, 0, 200}, Rotation: [3]float32{0, 180, 0}},
		{Mesh: meshPath, Scale: [3]float32{0.1, 0.1, 0.1}},
	})
	if err != nil {
		t.Fatal(err)
	}

	if len(models) != 2 {
		t.Fatalf("expected 2 models, got %d", len(models))
	}
	if models[0].Transform.Scale != (mgl32.Vec3{1, 1, 1}) {
		t.Errorf("unset scale should default to 1, got %v", models[0].Transform.Scale)
	}
	if models[0].Transform.Position != (mgl32.Vec3{0, 0, 200}) {
		t.Errorf("position not applied: %v", models[0].Transform.Position)
	}
	if models[1].Transform.Scale != (mgl32.Vec3{0.1, 0.1, 0.1}) {
		t.Errorf("scale not applied: %v", models[1].Transform.Scale)
	}
}
