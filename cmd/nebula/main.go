package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"runtime"
	"syscall"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/TetyLike3/NebulaEngine/internal/camera"
	"github.com/TetyLike3/NebulaEngine/internal/input"
	"github.com/TetyLike3/NebulaEngine/internal/model"
	"github.com/TetyLike3/NebulaEngine/internal/render"
	"github.com/TetyLike3/NebulaEngine/internal/settings"
	"github.com/TetyLike3/NebulaEngine/internal/window"
)

func run(ctx context.Context, s *settings.Settings) error {
	w, err := window.New(s.Window)
	if err != nil {
		return err
	}
	defer w.Destroy()

	globalDriver, err := w.VulkanDriver()
	if err != nil {
		return err
	}

	vkContext, err := render.NewContext(globalDriver, s, w)
	if err != nil {
		return err
	}
	defer vkContext.Destroy()

	cam := camera.New()
	cam.SetSpeed(s.Controls.CameraSpeed)
	cam.SetSensitivity(s.Controls.CameraSensitivity)

	models, err := model.LoadScene(s.Scene)
	if err != nil {
		return err
	}

	renderer, err := render.NewRenderer(vkContext, w, cam, models)
	if err != nil {
		return err
	}
	defer renderer.Destroy()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	group, groupCtx := errgroup.WithContext(ctx)
	controller := input.NewController(w, cam, renderer)
	group.Go(func() error {
		return controller.Run(groupCtx)
	})

	// The window's event queue is only usable from this thread, so rendering
	// stays here and input runs beside it.
	renderErr := renderer.Run(groupCtx)
	cancel()

	err = group.Wait()
	if renderErr != nil {
		return renderErr
	}
	if err != nil {
		return err
	}

	log.Printf("Rendered %d frames", renderer.Frames())
	return nil
}

func main() {
	runtime.LockOSThread()

	s, err := settings.Parse("nebula", os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	} else if err != nil {
		log.Fatalf("%+v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err = run(ctx, s)
	if err != nil {
		log.Fatalf("%+v\n", err)
	}
}
