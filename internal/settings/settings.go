package settings

import "time"

type WindowSettings struct {
	Title  string `json:"title"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
}

type DebugSettings struct {
	DebugMode        bool     `json:"debugMode"`
	ValidationLayers []string `json:"validationLayers"`
}

// EnabledFeatures are the optional device features the renderer asks for.
// Each is switched off at startup if the selected device lacks it.
type EnabledFeatures struct {
	SampleRateShading bool `json:"sampleRateShading"`
	FillModeNonSolid  bool `json:"fillModeNonSolid"`
	WideLines         bool `json:"wideLines"`
	SamplerAnisotropy bool `json:"samplerAnisotropy"`
}

type GraphicsSettings struct {
	MaxFramesInFlight    int             `json:"maxFramesInFlight"`
	EnabledFeatures      EnabledFeatures `json:"enabledFeatures"`
	TripleBuffering      bool            `json:"tripleBuffering"`
	Vsync                bool            `json:"vsync"`
	MaxFramerate         int             `json:"maxFramerate"`
	RasterizerDepthClamp bool            `json:"rasterizerDepthClamp"`
	Wireframe            bool            `json:"wireframe"`
	WireframeThickness   float32         `json:"wireframeThickness"`
	Multisampling        bool            `json:"multisampling"`
	AnisotropicFiltering bool            `json:"anisotropicFiltering"`
	AnisotropyLevel      float32         `json:"anisotropyLevel"`
	NearClip             float32         `json:"nearClip"`
	FarClip              float32         `json:"farClip"`
}

type ControlSettings struct {
	CameraSensitivity float32 `json:"cameraSensitivity"`
	CameraSpeed       float32 `json:"cameraSpeed"`
}

// ModelSettings places one mesh in the scene. Rotation is Euler degrees.
type ModelSettings struct {
	Mesh     string     `json:"mesh"`
	Material string     `json:"material,omitempty"`
	Texture  string     `json:"texture"`
	Position [3]float32 `json:"position"`
	Rotation [3]float32 `json:"rotation"`
	Scale    [3]float32 `json:"scale"`
}

type PathSettings struct {
	ShaderDir         string `json:"shaderDir"`
	PipelineCachePath string `json:"pipelineCachePath"`
}

type Settings struct {
	Window   WindowSettings   `json:"window"`
	Debug    DebugSettings    `json:"debug"`
	Graphics GraphicsSettings `json:"graphics"`
	Controls ControlSettings  `json:"controls"`
	Scene    []ModelSettings  `json:"scene"`
	Paths    PathSettings     `json:"paths"`
}

func Default() *Settings {
	return &Settings{
		Window: WindowSettings{
			Title:  "NebulaEngine",
			Width:  1280,
			Height: 720,
		},
		Debug: DebugSettings{
			DebugMode:        true,
			ValidationLayers: []string{"VK_LAYER_KHRONOS_validation"},
		},
		Graphics: GraphicsSettings{
			MaxFramesInFlight: 1,
			EnabledFeatures: EnabledFeatures{
				SampleRateShading: true,
				FillModeNonSolid:  true,
				WideLines:         true,
				SamplerAnisotropy: true,
			},
			TripleBuffering:      true,
			Vsync:                false,
			MaxFramerate:         0,
			RasterizerDepthClamp: false,
			Wireframe:            false,
			WireframeThickness:   8,
			Multisampling:        true,
			AnisotropicFiltering: true,
			AnisotropyLevel:      16,
			NearClip:             0.1,
			FarClip:              1000,
		},
		Controls: ControlSettings{
			CameraSensitivity: 2.0,
			CameraSpeed:       0.1,
		},
		Scene: []ModelSettings{
			{
				Mesh:    "assets/models/DTO_Crate.obj",
				Texture: "assets/textures/DTO_Crate_Tex_Diffuse.png",
				Scale:   [3]float32{1, 1, 1},
			},
			{
				Mesh:     "assets/models/SF_Osprey.obj",
				Texture:  "assets/textures/DTO_Crate_Tex_Diffuse.png",
				Position: [3]float32{0, -2, 0},
				Scale:    [3]float32{0.1, 0.1, 0.1},
			},
			{
				Mesh:     "assets/models/maxwell.obj",
				Texture:  "assets/textures/dingus_baseColor.jpeg",
				Position: [3]float32{0, 0, 200},
				Rotation: [3]float32{0, 180, 0},
				Scale:    [3]float32{1, 1, 1},
			},
		},
		Paths: PathSettings{
			ShaderDir: "assets/shaders",
		},
	}
}

// EffectiveFramerate is the frame-rate cap after vsync is taken into
// account. Zero means uncapped.
func (g *GraphicsSettings) EffectiveFramerate() int {
	if g.Vsync {
		return 60
	}
	if g.MaxFramerate < 0 {
		return 0
	}
	return g.MaxFramerate
}

// TargetFrameDelta is the minimum interval between two rendered frames.
func (g *GraphicsSettings) TargetFrameDelta() time.Duration {
	rate := g.EffectiveFramerate()
	if rate == 0 {
		return 0
	}
	return time.Second / time.Duration(rate)
}
