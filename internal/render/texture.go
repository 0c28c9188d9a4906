package render

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/v3/core1_0"

	"github.com/TetyLike3/NebulaEngine/internal/model"
	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

const textureFormat = core1_0.FormatR8G8B8A8SRGB

// Texture is a sampled image on the device. It belongs to exactly one model
// bundle.
type Texture struct {
	ctx *Context

	Image   Image
	View    core1_0.ImageView
	Sampler core1_0.Sampler

	teardown teardown
}

func NewTexture(ctx *Context, cmds *Commands, source *model.Texture) (*Texture, error) {
	t := &Texture{ctx: ctx}

	err := t.create(cmds, source)
	if err != nil {
		t.Destroy()
		return nil, err
	}

	return t, nil
}

func (t *Texture) create(cmds *Commands, source *model.Texture) error {
	if source.Size() != source.Width*source.Height*4 {
		return errors.Newf("texture is %dx%d but holds %d bytes", source.Width, source.Height, source.Size())
	}

	staging, err := t.ctx.CreateBuffer(source.Size(), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return err
	}
	defer t.ctx.DestroyBuffer(staging)

	err = writeData(t.ctx.Device, staging.Memory, 0, source.Pixels)
	if err != nil {
		return err
	}

	t.Image, err = t.ctx.CreateImage(source.Width,
		source.Height,
		textureFormat,
		core1_0.ImageTilingOptimal,
		core1_0.ImageUsageTransferDst|core1_0.ImageUsageSampled,
		core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return errors.Wrap(err, "create texture image")
	}
	t.teardown.push(func() {
		t.ctx.DestroyImage(t.Image)
	})

	err = t.ctx.TransitionImageLayout(cmds, t.Image.Handle, textureFormat, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		return err
	}
	err = t.ctx.copyBufferToImage(cmds, staging.Handle, t.Image.Handle, source.Width, source.Height)
	if err != nil {
		return errors.Wrap(err, "copy texture pixels")
	}
	err = t.ctx.TransitionImageLayout(cmds, t.Image.Handle, textureFormat, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return err
	}

	t.View, err = t.ctx.createImageView(t.Image.Handle, textureFormat, core1_0.ImageAspectColor)
	if err != nil {
		return err
	}
	t.teardown.push(func() {
		t.ctx.Device.DestroyImageView(t.View, nil)
	})

	t.Sampler, _, err = t.ctx.Device.CreateSampler(nil, samplerInfo(t.ctx.Settings.Graphics))
	if err != nil {
		return errors.Wrap(err, "create texture sampler")
	}
	t.teardown.push(func() {
		t.ctx.Device.DestroySampler(t.Sampler, nil)
	})

	return nil
}

func samplerInfo(g settings.GraphicsSettings) core1_0.SamplerCreateInfo {
	maxAnisotropy := g.AnisotropyLevel
	if !g.AnisotropicFiltering || maxAnisotropy < 1 {
		maxAnisotropy = 1
	}

	return core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: g.AnisotropicFiltering,
		MaxAnisotropy:    maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
		MinLod:     0,
		MaxLod:     0,
	}
}

// Destroy releases the sampler, the view and the image.
func (t *Texture) Destroy() {
	t.teardown.run()
}
