package settings

import (
	"log"

	"github.com/cockroachdb/errors"
)

// DeviceLimits is the subset of a physical device's features and limits the
// graphics settings are checked against.
type DeviceLimits struct {
	MaxSamplerAnisotropy float32

	SamplerAnisotropy bool
	FillModeNonSolid  bool
	WideLines         bool
	SampleRateShading bool
}

// Check rejects settings that cannot be rendered with at all.
func (s *Settings) Check() error {
	if s.Window.Width <= 0 || s.Window.Height <= 0 {
		return errors.Newf("window size %dx%d is not positive", s.Window.Width, s.Window.Height)
	}
	if s.Graphics.MaxFramesInFlight < 1 {
		return errors.Newf("maxFramesInFlight must be at least 1, got %d", s.Graphics.MaxFramesInFlight)
	}
	if s.Graphics.NearClip <= 0 || s.Graphics.FarClip <= s.Graphics.NearClip {
		return errors.Newf("invalid clip planes near=%g far=%g", s.Graphics.NearClip, s.Graphics.FarClip)
	}
	if s.Paths.ShaderDir == "" {
		return errors.New("shader directory is not set")
	}
	return nil
}

// Downgrade switches off or clamps every option the device cannot honour and
// logs each change. Features the device lacks are dropped from
// EnabledFeatures first, then every option that needs a feature no longer
// enabled is turned off. It returns how many options were changed.
func (g *GraphicsSettings) Downgrade(limits DeviceLimits) int {
	features := &g.EnabledFeatures
	dropFeature(&features.SamplerAnisotropy, limits.SamplerAnisotropy, "samplerAnisotropy")
	dropFeature(&features.FillModeNonSolid, limits.FillModeNonSolid, "fillModeNonSolid")
	dropFeature(&features.WideLines, limits.WideLines, "wideLines")
	dropFeature(&features.SampleRateShading, limits.SampleRateShading, "sampleRateShading")

	changed := 0

	if g.AnisotropicFiltering && !features.SamplerAnisotropy {
		log.Printf("Anisotropic filtering needs samplerAnisotropy, which is not enabled. Disabling.")
		g.AnisotropicFiltering = false
		changed++
	}

	if limits.MaxSamplerAnisotropy < g.AnisotropyLevel {
		log.Printf("Anisotropic filtering level of x%g is not supported by the device. Setting to x%g.", g.AnisotropyLevel, limits.MaxSamplerAnisotropy)
		g.AnisotropyLevel = limits.MaxSamplerAnisotropy
		changed++
	}

	if g.Wireframe && !features.FillModeNonSolid {
		log.Printf("Wireframe rendering needs fillModeNonSolid, which is not enabled. Disabling.")
		g.Wireframe = false
		changed++
	}

	if g.WireframeThickness != 1 && !features.WideLines {
		log.Printf("Wide lines are not enabled. Setting wireframe thickness to 1.")
		g.WireframeThickness = 1
		changed++
	}

	if g.Multisampling && !features.SampleRateShading {
		log.Printf("Multisampling needs sampleRateShading, which is not enabled. Disabling.")
		g.Multisampling = false
		changed++
	}

	if changed > 0 {
		log.Printf("%d setting(s) were changed to match device capabilities.", changed)
	}

	return changed
}

func dropFeature(requested *bool, supported bool, name string) {
	if *requested && !supported {
		log.Printf("Device feature %s is not supported. Disabling.", name)
		*requested = false
	}
}
