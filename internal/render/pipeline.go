package render

import (
	"log"
	"os"
	"path/filepath"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/vkngwrapper/core/v3/core1_0"
	"github.com/vkngwrapper/extensions/v3/khr_swapchain"

	"github.com/TetyLike3/NebulaEngine/internal/model"
	"github.com/TetyLike3/NebulaEngine/internal/settings"
)

//go:generate glslc ../../assets/shaders/shader.vert -o ../../assets/shaders/vert.spv
//go:generate glslc ../../assets/shaders/shader.frag -o ../../assets/shaders/frag.spv

// VK_CULL_MODE_NONE has no named flag.
const cullModeNone = core1_0.CullModeFlags(0)

const (
	vertexShaderFile   = "vert.spv"
	fragmentShaderFile = "frag.spv"
)

func vertexBindingDescriptions() []core1_0.VertexInputBindingDescription {
	v := model.Vertex{}
	return []core1_0.VertexInputBindingDescription{
		{
			Binding:   0,
			Stride:    int(unsafe.Sizeof(v)),
			InputRate: core1_0.VertexInputRateVertex,
		},
	}
}

func vertexAttributeDescriptions() []core1_0.VertexInputAttributeDescription {
	v := model.Vertex{}
	return []core1_0.VertexInputAttributeDescription{
		{
			Binding:  0,
			Location: 0,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Position)),
		},
		{
			Binding:  0,
			Location: 1,
			Format:   core1_0.FormatR32G32B32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.Color)),
		},
		{
			Binding:  0,
			Location: 2,
			Format:   core1_0.FormatR32G32SignedFloat,
			Offset:   int(unsafe.Offsetof(v.TexCoord)),
		},
	}
}

func bytesToBytecode(b []byte) []uint32 {
	byteCode := make([]uint32, len(b)/4)
	for i := 0; i < len(byteCode); i++ {
		byteIndex := i * 4
		byteCode[i] = 0
		byteCode[i] |= uint32(b[byteIndex])
		byteCode[i] |= uint32(b[byteIndex+1]) << 8
		byteCode[i] |= uint32(b[byteIndex+2]) << 16
		byteCode[i] |= uint32(b[byteIndex+3]) << 24
	}

	return byteCode
}

func loadShader(path string) ([]uint32, error) {
	shaderBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read shader %s", path)
	}
	if len(shaderBytes) == 0 || len(shaderBytes)%4 != 0 {
		return nil, errors.Newf("shader %s is %d bytes, not SPIR-V", path, len(shaderBytes))
	}
	return bytesToBytecode(shaderBytes), nil
}

func rasterizationState(g settings.GraphicsSettings) *core1_0.PipelineRasterizationStateCreateInfo {
	state := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        g.RasterizerDepthClamp,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	if g.Wireframe {
		state.PolygonMode = core1_0.PolygonModeLine
		state.CullMode = cullModeNone
		state.LineWidth = g.WireframeThickness
	}

	return state
}

func multisampleState(g settings.GraphicsSettings) *core1_0.PipelineMultisampleStateCreateInfo {
	return &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  g.Multisampling,
		RasterizationSamples: core1_0.Samples1,
		MinSampleShading:     1.0,
	}
}

// Pipeline owns the render pass, the descriptor set layout and the graphics
// pipeline built from them. The pipeline and its layout can be rebuilt on
// their own when rasterization settings change.
type Pipeline struct {
	ctx   *Context
	cache *PipelineCache

	RenderPass          core1_0.RenderPass
	DescriptorSetLayout core1_0.DescriptorSetLayout
	Layout              core1_0.PipelineLayout
	Handle              core1_0.Pipeline
	DepthFormat         core1_0.Format

	vertexCode   []uint32
	fragmentCode []uint32

	teardown teardown
}

func NewPipeline(ctx *Context, cache *PipelineCache, colorFormat core1_0.Format) (*Pipeline, error) {
	p := &Pipeline{
		ctx:   ctx,
		cache: cache,
	}

	err := p.init(colorFormat)
	if err != nil {
		p.Destroy()
		return nil, err
	}

	return p, nil
}

func (p *Pipeline) init(colorFormat core1_0.Format) error {
	var err error
	shaderDir := p.ctx.Settings.Paths.ShaderDir
	p.vertexCode, err = loadShader(filepath.Join(shaderDir, vertexShaderFile))
	if err != nil {
		return err
	}
	p.fragmentCode, err = loadShader(filepath.Join(shaderDir, fragmentShaderFile))
	if err != nil {
		return err
	}

	p.DepthFormat, err = p.ctx.findDepthFormat()
	if err != nil {
		return err
	}

	err = p.createRenderPass(colorFormat)
	if err != nil {
		return err
	}

	err = p.createDescriptorSetLayout()
	if err != nil {
		return err
	}

	return p.build()
}

func (p *Pipeline) createRenderPass(colorFormat core1_0.Format) error {
	renderPass, _, err := p.ctx.Device.CreateRenderPass(nil, core1_0.RenderPassCreateInfo{
		Attachments: []core1_0.AttachmentDescription{
			{
				Format:         colorFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpStore,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
			},
			{
				Format:         p.DepthFormat,
				Samples:        core1_0.Samples1,
				LoadOp:         core1_0.AttachmentLoadOpClear,
				StoreOp:        core1_0.AttachmentStoreOpDontCare,
				StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
				StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
				InitialLayout:  core1_0.ImageLayoutUndefined,
				FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
			},
		},
		Subpasses: []core1_0.SubpassDescription{
			{
				PipelineBindPoint: core1_0.PipelineBindPointGraphics,
				ColorAttachments: []core1_0.AttachmentReference{
					{
						Attachment: 0,
						Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
					},
				},
				DepthStencilAttachment: &core1_0.AttachmentReference{
					Attachment: 1,
					Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
				},
			},
		},
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}
	p.RenderPass = renderPass
	p.teardown.push(func() {
		p.ctx.Device.DestroyRenderPass(p.RenderPass, nil)
	})

	return nil
}

func (p *Pipeline) createDescriptorSetLayout() error {
	var err error
	p.DescriptorSetLayout, _, err = p.ctx.Device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,

				StageFlags: core1_0.StageVertex,
			},
			{
				Binding:         1,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,

				StageFlags: core1_0.StageFragment,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create descriptor set layout")
	}
	p.teardown.push(func() {
		p.ctx.Device.DestroyDescriptorSetLayout(p.DescriptorSetLayout, nil)
	})

	return nil
}

// build creates the pipeline layout and the graphics pipeline from the
// current graphics settings.
func (p *Pipeline) build() error {
	start := hrtime.Now()

	vertShader, _, err := p.ctx.Device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: p.vertexCode,
	})
	if err != nil {
		return errors.Wrap(err, "create vertex shader module")
	}
	defer p.ctx.Device.DestroyShaderModule(vertShader, nil)

	fragShader, _, err := p.ctx.Device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: p.fragmentCode,
	})
	if err != nil {
		return errors.Wrap(err, "create fragment shader module")
	}
	defer p.ctx.Device.DestroyShaderModule(fragShader, nil)

	p.Layout, _, err = p.ctx.Device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			p.DescriptorSetLayout,
		},
	})
	if err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}

	graphics := p.ctx.Settings.Graphics
	var cache *core1_0.PipelineCache
	if p.cache != nil {
		cache = &p.cache.Handle
	}

	pipelines, _, err := p.ctx.Device.CreateGraphicsPipelines(cache, nil,
		core1_0.GraphicsPipelineCreateInfo{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				{
					Stage:  core1_0.StageVertex,
					Module: vertShader,
					Name:   "main",
				},
				{
					Stage:  core1_0.StageFragment,
					Module: fragShader,
					Name:   "main",
				},
			},
			VertexInputState: &core1_0.PipelineVertexInputStateCreateInfo{
				VertexBindingDescriptions:   vertexBindingDescriptions(),
				VertexAttributeDescriptions: vertexAttributeDescriptions(),
			},
			InputAssemblyState: &core1_0.PipelineInputAssemblyStateCreateInfo{
				Topology:               core1_0.PrimitiveTopologyTriangleList,
				PrimitiveRestartEnable: false,
			},
			// Viewport and scissor are set while recording, so resizing
			// does not require a new pipeline.
			ViewportState: &core1_0.PipelineViewportStateCreateInfo{
				Viewports: []core1_0.Viewport{{}},
				Scissors:  []core1_0.Rect2D{{}},
			},
			DynamicState: &core1_0.PipelineDynamicStateCreateInfo{
				DynamicStates: []core1_0.DynamicState{core1_0.DynamicStateViewport, core1_0.DynamicStateScissor},
			},
			RasterizationState: rasterizationState(graphics),
			MultisampleState:   multisampleState(graphics),
			DepthStencilState: &core1_0.PipelineDepthStencilStateCreateInfo{
				DepthTestEnable:  true,
				DepthWriteEnable: true,
				DepthCompareOp:   core1_0.CompareOpLess,
			},
			ColorBlendState: &core1_0.PipelineColorBlendStateCreateInfo{
				LogicOpEnabled: false,
				LogicOp:        core1_0.LogicOpCopy,

				BlendConstants: [4]float32{0, 0, 0, 0},
				Attachments: []core1_0.PipelineColorBlendAttachmentState{
					{
						BlendEnabled:        true,
						SrcColorBlendFactor: core1_0.BlendFactorSrcAlpha,
						DstColorBlendFactor: core1_0.BlendFactorOneMinusSrcAlpha,
						ColorBlendOp:        core1_0.BlendOpAdd,
						SrcAlphaBlendFactor: core1_0.BlendFactorOne,
						DstAlphaBlendFactor: core1_0.BlendFactorZero,
						AlphaBlendOp:        core1_0.BlendOpAdd,
						ColorWriteMask:      core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
					},
				},
			},
			Layout:            p.Layout,
			RenderPass:        p.RenderPass,
			Subpass:           0,
			BasePipelineIndex: -1,
		},
	)
	if err != nil {
		p.ctx.Device.DestroyPipelineLayout(p.Layout, nil)
		p.Layout = core1_0.PipelineLayout{}
		return errors.Wrap(err, "create graphics pipeline")
	}
	p.Handle = pipelines[0]

	log.Printf("Graphics pipeline built in %v (wireframe=%t)", hrtime.Since(start), graphics.Wireframe)
	return nil
}

func (p *Pipeline) destroyPipeline() {
	if p.Handle.Initialized() {
		p.ctx.Device.DestroyPipeline(p.Handle, nil)
		p.Handle = core1_0.Pipeline{}
	}
	if p.Layout.Initialized() {
		p.ctx.Device.DestroyPipelineLayout(p.Layout, nil)
		p.Layout = core1_0.PipelineLayout{}
	}
}

// Rebuild waits for the device to go idle and replaces the pipeline and its
// layout. The render pass and descriptor set layout are kept.
func (p *Pipeline) Rebuild() error {
	err := p.ctx.WaitIdle()
	if err != nil {
		return err
	}

	p.destroyPipeline()
	return p.build()
}

func (p *Pipeline) Destroy() {
	p.destroyPipeline()
	p.teardown.run()
}
