// Package model loads meshes and textures from disk into CPU-side form.
package model

import (
	"log"
	"path/filepath"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

type Model struct {
	Name      string
	Mesh      *Mesh
	Texture   *Texture
	Transform Transform
}

// Load reads a mesh and its texture. A mesh that cannot be read is an error.
// A texture that cannot be read is logged and replaced by BlankTexture.
func Load(meshPath, mtlPath, texturePath string) (*Model, error) {
	log.Printf("Loading OBJ model from path: %s", meshPath)

	mesh, err := LoadOBJ(meshPath, mtlPath)
	if err != nil {
		return nil, err
	}

	texture, err := LoadTexture(texturePath)
	if err != nil {
		log.Printf("Using a blank texture for %s: %v", meshPath, err)
		texture = BlankTexture()
	}

	return &Model{
		Name:      filepath.Base(meshPath),
		Mesh:      mesh,
		Texture:   texture,
		Transform: IdentityTransform(),
	}, nil
}

// LoadScene loads every model in the scene description and applies its
// transform.
func LoadScene(scene []settings.ModelSettings) ([]*Model, error) {
	models := make([]*Model, 0, len(scene))
	for _, entry := range scene {
		m, err := Load(entry.Mesh, entry.Material, entry.Texture)
		if err != nil {
			return nil, err
		}

		m.Transform.Position = mgl32.Vec3(entry.Position)
		m.Transform.Rotation = mgl32.Vec3(entry.Rotation)
		if entry.Scale != ([3]float32{}) {
			m.Transform.Scale = mgl32.Vec3(entry.Scale)
		}

		models = append(models, m)
	}
	return models, nil
}
