package model

import (
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// Vertex matches the vertex input layout of the graphics pipeline.
type Vertex struct {
	Position mgl32.Vec3
	Color    mgl32.Vec3
	TexCoord mgl32.Vec2
}

type Mesh struct {
	Vertices []Vertex
	Indices  []uint32
}

type vertexKey struct {
	position int
	uv       int
}

type meshBuilder struct {
	decoder *obj.Decoder
	mesh    *Mesh
	unique  map[vertexKey]uint32
}

func (b *meshBuilder) addVertex(face obj.Face, faceIndex int) error {
	key := vertexKey{position: face.Vertices[faceIndex], uv: -1}
	if faceIndex < len(face.Uvs) {
		key.uv = face.Uvs[faceIndex]
	}

	index, exists := b.unique[key]
	if !exists {
		if key.position < 0 || key.position*3+2 >= len(b.decoder.Vertices) {
			return errors.Newf("face references missing vertex %d", key.position)
		}

		vert := Vertex{
			Position: mgl32.Vec3{
				b.decoder.Vertices[key.position*3],
				b.decoder.Vertices[key.position*3+1],
				b.decoder.Vertices[key.position*3+2],
			},
			Color: mgl32.Vec3{1, 1, 1},
		}

		if key.uv >= 0 && key.uv*2+1 < len(b.decoder.Uvs) {
			vert.TexCoord = mgl32.Vec2{
				b.decoder.Uvs[key.uv*2],
				1.0 - b.decoder.Uvs[key.uv*2+1],
			}
		}

		index = uint32(len(b.mesh.Vertices))
		b.mesh.Vertices = append(b.mesh.Vertices, vert)
		b.unique[key] = index
	}

	b.mesh.Indices = append(b.mesh.Indices, index)
	return nil
}

// DecodeOBJ reads a Wavefront OBJ mesh. Polygons are fanned into triangles
// and vertices sharing both position and texture coordinate are merged.
// The V coordinate is flipped to match Vulkan's image origin. mtl may be
// nil.
func DecodeOBJ(mesh io.Reader, mtl io.Reader) (*Mesh, error) {
	if mtl == nil {
		mtl = strings.NewReader("")
	}

	decoder, err := obj.DecodeReader(mesh, mtl)
	if err != nil {
		return nil, errors.Wrap(err, "decode obj")
	}

	builder := &meshBuilder{
		decoder: decoder,
		mesh:    &Mesh{},
		unique:  make(map[vertexKey]uint32),
	}

	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					if err := builder.addVertex(face, corner); err != nil {
						return nil, err
					}
				}
			}
		}
	}

	if len(builder.mesh.Indices) == 0 {
		return nil, errors.New("obj contains no faces")
	}

	return builder.mesh, nil
}

// LoadOBJ reads the mesh at meshPath, with its material library at mtlPath
// if mtlPath is not empty.
func LoadOBJ(meshPath, mtlPath string) (*Mesh, error) {
	meshFile, err := os.Open(meshPath)
	if err != nil {
		return nil, errors.Wrapf(err, "open mesh %s", meshPath)
	}
	defer meshFile.Close()

	var mtl io.Reader
	if mtlPath != "" {
		matFile, err := os.Open(mtlPath)
		if err != nil {
			return nil, errors.Wrapf(err, "open material library %s", mtlPath)
		}
		defer matFile.Close()
		mtl = matFile
	}

	mesh, err := DecodeOBJ(meshFile, mtl)
	if err != nil {
		return nil, errors.Wrapf(err, "mesh %s", meshPath)
	}
	return mesh, nil
}
