package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"

	"github.com/sirupsen/logrus"
	"golang.org/x/sys/unix"

	"github.com/mstarongithub/way2kms/backend"
	"github.com/mstarongithub/way2kms/config"
	"github.com/mstarongithub/way2kms/drm"
	"github.com/mstarongithub/way2kms/eventloop"
	"github.com/mstarongithub/way2kms/hotplug"
	"github.com/mstarongithub/way2kms/output"
	"github.com/mstarongithub/way2kms/renderer"
	"github.com/mstarongithub/way2kms/renderer/egl"
	"github.com/mstarongithub/way2kms/session"
)

func fatal(msg string, err error) {
	fmt.Printf("error %s: %s\n", msg, err)
	os.Exit(1)
}

func kmsMain(conf *config.Config) {
	loop, err := eventloop.New()
	if err != nil {
		fatal("initializing event loop", err)
	}
	defer loop.Close()

	sess, err := session.NewLogindSession(loop.Post)
	if err != nil {
		fatal("taking session control", err)
	}
	defer sess.Close()
	logrus.WithField("seat", sess.Seat()).Infoln("Session acquired")

	outputs := output.NewMap(conf.ArrangeOutputs)

	primary := conf.PrimaryGPU
	if primary == "" {
		primary = hotplug.PrimaryGPU()
	}

	b := backend.New(backend.Config{
		Loop:       loop,
		Session:    sess,
		Outputs:    outputs,
		PrimaryGPU: primary,
		NewAllocator: func(card *drm.Card) (renderer.Allocator, error) {
			return egl.NewAllocator(card)
		},
		ChooseMode: conf.ChooseMode,
	})

	// Configured scales only take hold once the output exists, so they are
	// reapplied after every topology change
	applyScales := func() {
		for _, o := range outputs.Outputs() {
			o.UpdateScale(conf.OutputScale(o.Name()))
		}
		outputs.Rearrange()
	}

	cards, err := hotplug.ScanCards()
	if err != nil {
		fatal("enumerating gpus", err)
	}
	for _, card := range cards {
		ev := card
		loop.Idle(func() {
			b.DeviceAdded(ev.DeviceID, ev.Path)
			applyScales()
		})
	}

	monitor, err := hotplug.NewMonitor()
	if err != nil {
		logrus.WithError(err).Warnln("Hotplug monitoring unavailable")
	} else {
		defer monitor.Close()
		go func() {
			for ev := range monitor.Events() {
				ev := ev
				loop.Post(func() {
					switch e := ev.(type) {
					case hotplug.Added:
						b.DeviceAdded(e.DeviceID, e.Path)
					case hotplug.Changed:
						b.DeviceChanged(e.DeviceID)
					case hotplug.Removed:
						b.DeviceRemoved(e.DeviceID)
					}
					applyScales()
				})
			}
		}()
	}

	switch conf.StartType {
	case config.START_REPL:
		go replRunner(loop, sess, b)
	case config.START_SINGLE_COMMAND:
		if conf.StartCommand != nil {
			go runStartCommand(*conf.StartCommand)
		}
	case config.START_NONE:
	}

	// Ctrl-C and service stop both unwind through the normal teardown path
	interrupts := make(chan os.Signal, 1)
	signal.Notify(interrupts, unix.SIGINT, unix.SIGTERM)
	go func() {
		<-interrupts
		loop.Post(loop.Stop)
	}()

	if err := loop.Run(); err != nil {
		fatal("running event loop", err)
	}
	logrus.Infoln("Shutting down")
}

func runStartCommand(cmdString string) {
	cmd := exec.Command("/bin/sh", "-c", cmdString)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Start(); err != nil {
		logrus.WithError(err).WithField("command", cmdString).Errorln("Start command failed to start")
		return
	}
	err := cmd.Wait()
	if exiterr, ok := err.(*exec.ExitError); ok {
		logrus.WithError(err).WithFields(logrus.Fields{
			"exit-code": exiterr.ExitCode(),
			"comand":    cmdString,
		}).Warningln("Bad command completion")
	}
}
