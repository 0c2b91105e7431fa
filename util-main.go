package main

import (
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"

	"github.com/mstarongithub/way2kms/common/ipc"
	"github.com/mstarongithub/way2kms/config"
	"github.com/mstarongithub/way2kms/drm"
	"github.com/mstarongithub/way2kms/hotplug"
)

var (
	utilAction *string = flag.String(
		"action",
		"",
		"The action to perform. Can be one of:"+
			"\n\t- none: Do nothing"+
			"\n\t- outputs: List available outputs"+
			"\n\t- modes <output>: List available modes for an output",
	)
	outputSelection *string = flag.String(
		"output",
		"",
		"Output to perform the action on. Required for some actions",
	)
)

// Tool mode opens the card nodes directly, without session or compositor
func utilMain(_ *config.Config) {
	if *help {
		utilHelpMessage()
		return
	}

	switch *utilAction {
	case "outputs":
		resp, err := gatherOutputs(ipc.OutputRequest{})
		if err != nil {
			logrus.WithError(err).Fatal("scanning outputs")
		}
		utilListOutputs(resp)
	case "modes":
		if *outputSelection == "" {
			fmt.Println("Output has to be specified")
			return
		}
		resp, err := gatherOutputs(ipc.OutputRequest{
			IncludeModes:    true,
			SpecifiesOutput: true,
			TargetOutput:    *outputSelection,
		})
		if err != nil {
			logrus.WithError(err).Fatal("scanning outputs")
		}
		utilListOutputModes(resp, *outputSelection)
	}
}

func utilHelpMessage() {
	fmt.Println("---- Help message for Way2Kms in tool mode ----")
	fmt.Println("\nIn tool mode, w2k will offer various tools for figuring out configurations and similar")
	fmt.Println("\nGeneral flags:")
	fmt.Println("\t-config: Path to the config file. Default is the xdg config location")
	fmt.Println("\t-tool: Start as a tool instead of a display server")
	fmt.Println("\t-help: Show this help message (or the one for server mode if -tool is not set)")
	fmt.Println("\nTool flags:")
	fmt.Println("\t-action: The action to perform. Can be one of:")
	fmt.Println("\t\t- (default) outputs: List available outputs")
	fmt.Println("\t\t- modes: List available modes for an output. Use with -output")
	fmt.Println("\t-output: Output to perform the action on. Required for -action modes")
}

// Walks every card node and collects the connected connectors into an
// output response
func gatherOutputs(req ipc.OutputRequest) (*ipc.OutputResponse, error) {
	cards, err := hotplug.ScanCards()
	if err != nil {
		return nil, err
	}

	resp := &ipc.OutputResponse{
		OutputModes: map[string][]ipc.OutputMode{},
	}

	for _, entry := range cards {
		card, f, err := drm.OpenCard(entry.Path)
		if err != nil {
			logrus.WithError(err).WithField("path", entry.Path).Warnln("Skipping card")
			continue
		}

		res, err := card.GetResources()
		if err != nil {
			logrus.WithError(err).WithField("path", entry.Path).Warnln("Skipping card, no resources")
			f.Close()
			continue
		}

		for _, connID := range res.Connectors {
			conn, err := card.GetConnector(connID)
			if err != nil || conn.State != drm.Connected {
				continue
			}
			name := conn.Name()
			if req.SpecifiesOutput && name != req.TargetOutput {
				continue
			}
			resp.Outputs = append(resp.Outputs, name)
			resp.OutputsFound++
			if req.IncludeModes {
				resp.OutputModes[name] = sliceutils.Map(conn.Modes, func(m drm.ModeInfo) ipc.OutputMode {
					return ipc.OutputMode{
						Width:       int(m.Hdisplay),
						Height:      int(m.Vdisplay),
						RefreshRate: int(m.Vrefresh) * 1000,
						Preferred:   m.Preferred(),
					}
				})
			}
		}
		f.Close()
	}
	return resp, nil
}

func utilListOutputs(resp *ipc.OutputResponse) {
	for i, name := range resp.Outputs {
		fmt.Printf("Output %v: %s\n", i, name)
	}
}

func utilListOutputModes(resp *ipc.OutputResponse, outputName string) {
	modes, ok := resp.OutputModes[outputName]
	if !ok || len(modes) == 0 {
		fmt.Printf("Output %s not found\n", outputName)
		return
	}
	fmt.Printf("Modes for output %s:\n", outputName)
	for _, mode := range modes {
		if mode.Preferred {
			fmt.Printf("\t- %dx%d@%d (preferred)\n", mode.Width, mode.Height, mode.RefreshRate/1000)
		} else {
			fmt.Printf("\t- %dx%d@%d\n", mode.Width, mode.Height, mode.RefreshRate/1000)
		}
	}
}
