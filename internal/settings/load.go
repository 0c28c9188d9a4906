package settings

import (
	"encoding/json"
	"flag"
	"io"
	"os"

	"github.com/cockroachdb/errors"
)

// Decode overlays the JSON document in r onto s. Fields missing from the
// document keep their current values.
func (s *Settings) Decode(r io.Reader) error {
	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(s); err != nil {
		return errors.Wrap(err, "decode settings")
	}
	return nil
}

// LoadFile overlays the JSON settings file at path onto s.
func (s *Settings) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open settings file %s", path)
	}
	defer f.Close()

	return errors.Wrapf(s.Decode(f), "settings file %s", path)
}

// Parse builds the settings for a run: defaults, then the optional -config
// file, then any flags given explicitly on the command line.
func Parse(name string, args []string, output io.Writer) (*Settings, error) {
	s := Default()

	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)

	configPath := fs.String("config", "", "JSON settings file")
	debug := fs.Bool("debug", s.Debug.DebugMode, "enable validation layers and the debug messenger")
	frames := fs.Int("frames", s.Graphics.MaxFramesInFlight, "frames in flight")
	vsync := fs.Bool("vsync", s.Graphics.Vsync, "cap the frame rate at 60")
	maxFPS := fs.Int("max-fps", s.Graphics.MaxFramerate, "frame rate cap, 0 for none")
	wireframe := fs.Bool("wireframe", s.Graphics.Wireframe, "start in wireframe mode")
	tripleBuffering := fs.Bool("triple-buffering", s.Graphics.TripleBuffering, "prefer mailbox presentation")
	shaderDir := fs.String("shaders", s.Paths.ShaderDir, "directory holding vert.spv and frag.spv")
	cachePath := fs.String("pipeline-cache", s.Paths.PipelineCachePath, "pipeline cache file, empty to disable")
	width := fs.Int("width", s.Window.Width, "window width")
	height := fs.Int("height", s.Window.Height, "window height")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, errors.Newf("unrecognized argument: %s", fs.Arg(0))
	}

	if *configPath != "" {
		if err := s.LoadFile(*configPath); err != nil {
			return nil, err
		}
	}

	// Only flags given on the command line override the file.
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "debug":
			s.Debug.DebugMode = *debug
		case "frames":
			s.Graphics.MaxFramesInFlight = *frames
		case "vsync":
			s.Graphics.Vsync = *vsync
		case "max-fps":
			s.Graphics.MaxFramerate = *maxFPS
		case "wireframe":
			s.Graphics.Wireframe = *wireframe
		case "triple-buffering":
			s.Graphics.TripleBuffering = *tripleBuffering
		case "shaders":
			s.Paths.ShaderDir = *shaderDir
		case "pipeline-cache":
			s.Paths.PipelineCachePath = *cachePath
		case "width":
			s.Window.Width = *width
		case "height":
			s.Window.Height = *height
		}
	})

	if err := s.Check(); err != nil {
		return nil, err
	}

	return s, nil
}
