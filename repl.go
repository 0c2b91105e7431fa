package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/mstarongithub/way2kms/backend"
	"github.com/mstarongithub/way2kms/eventloop"
	"github.com/mstarongithub/way2kms/repl"
	"github.com/mstarongithub/way2kms/session"
	"github.com/mstarongithub/way2kms/util"
	"github.com/mstarongithub/way2kms/util/wrappers"
)

// Runs a command on the event loop goroutine and waits for its answer. The
// repl lives on its own goroutine and must never touch backend state
// directly
func onLoop(loop *eventloop.Loop, cmd func() string) string {
	reply := make(chan string, 1)
	loop.Post(func() { reply <- cmd() })
	return <-reply
}

func replRunner(loop *eventloop.Loop, sess session.Session, b *backend.Backend) {
	// Give repl some wrappers around stdin and stdout so that it closes those instead of stdin & stdout themselves
	commandRepl := repl.NewRepl(wrappers.NewReaderWrapper(os.Stdin), wrappers.NewWriterWrapper(os.Stdout))
	commandRepl.Prompt = "w2k> "
	logrus.Debugln("Starting repl")
	_ = commandRepl.Run(func(input string, r *repl.Repl) (string, error) {
		if cmdString, ok := strings.CutPrefix(input, "run "); ok {
			parts := strings.Split(cmdString, " ")
			// This is safe b/c it'll unpack into a slice of length 0
			args := parts[1:]
			cmd := exec.Command(parts[0], args...)
			cmd.Stdout = r.Output
			cmd.Stderr = r.Output
			go func(cmd *exec.Cmd, cmdString string) {
				err := cmd.Start()
				if err != nil {
					logrus.WithError(err).WithField("command", cmdString).Errorln("Command failed to start")
					return
				}
				err = cmd.Wait()
				if exiterr, ok := err.(*exec.ExitError); ok {
					logrus.WithError(err).WithFields(logrus.Fields{
						"exit-code": exiterr.ExitCode(),
						"comand":    cmdString,
					}).Warningln("Bad command completion")
				}
			}(cmd, cmdString)
			return "Running " + parts[0], nil
		} else if input == "quit" {
			loop.Post(loop.Stop)
			return "Quitting", errors.New("normal stop")
		} else if input == "outputs" {
			return onLoop(loop, func() string {
				var lines []string
				for i, o := range b.Outputs().Outputs() {
					mode := o.CurrentMode()
					lines = append(lines, fmt.Sprintf(
						"Output %v: %s %dx%d@%d at (%d:%d) scale %.2f",
						i, o.Name(),
						mode.Size.X, mode.Size.Y, mode.Refresh/1000,
						o.Location().X, o.Location().Y, o.Scale(),
					))
				}
				if len(lines) == 0 {
					return "No outputs"
				}
				return strings.Join(lines, "\n")
			}), nil
		} else if rawCmdString, ok := strings.CutPrefix(input, "vt "); ok {
			vt, err := strconv.Atoi(strings.TrimSpace(rawCmdString))
			if err != nil {
				return "vt needs a terminal number", nil
			}
			if err := sess.SwitchVT(vt); err != nil {
				return fmt.Sprintf("VT switch failed: %v", err), nil
			}
			return fmt.Sprintf("Switching to VT %d", vt), nil
		} else if rawCmdString, ok := strings.CutPrefix(input, "inspect "); ok {
			// Can't unpack slices directly like in Python, so do it this roundabout way
			var target, args string
			util.Unpack(strings.SplitN(rawCmdString, " ", 2), &target, &args)
			logrus.WithFields(logrus.Fields{
				"cmd":  target,
				"args": args,
				"raw":  rawCmdString,
			}).Debugln("Parsed inspect command")
			switch target {
			case "session":
				return onLoop(loop, func() string {
					return fmt.Sprintf("Session: seat %s, active %v", sess.Seat(), sess.Active())
				}), nil
			case "renderer":
				return onLoop(loop, func() string {
					if b.PrimaryRenderer() == nil {
						return "No primary render context"
					}
					return fmt.Sprintf("Primary render context with %d formats", len(b.SupportedFormats()))
				}), nil
			case "fps":
				name := args
				return onLoop(loop, func() string {
					out := b.Outputs().FindByName(name)
					if out == nil {
						return "Output " + name + " not found"
					}
					fps, ok := b.SurfaceFps(out.Tag())
					if !ok {
						return "No surface for output " + name
					}
					return fmt.Sprintf("%s: %.1f fps", name, fps)
				}), nil
			default:
				return "Unknown inspect target", nil
			}
		} else {
			return "Unknown command", nil
		}
	})
}
