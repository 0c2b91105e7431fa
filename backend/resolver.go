package backend

import (
	"sort"

	"github.com/sirupsen/logrus"
	"gitlab.com/mstarongitlab/goutils/sliceutils"

	"github.com/mstarongithub/way2kms/drm"
	generaldata "github.com/mstarongithub/way2kms/general-data"
	"github.com/mstarongithub/way2kms/output"
)

// Resolves the device's mode-setting resources into surfaces, registering
// one output per surface. Greedy first-fit over connector -> encoder ->
// CRTC in resource-list order: the first unclaimed pair wins, a claimed
// CRTC is never reused within the pass. Finding the optimal assignment is
// NP-complete; real hardware has few enough pipes that greedy is fine.
// Returns the complete replacement crtc -> surface mapping
func (b *Backend) scanConnectors(dev *Device) map[uint32]*Surface {
	res, err := dev.card.GetResources()
	if err != nil {
		logrus.WithError(err).WithField("device", dev.id).Errorln("Failed to read mode-setting resources")
		return map[uint32]*Surface{}
	}

	var connectors []*drm.Connector
	for _, id := range res.Connectors {
		conn, err := dev.card.GetConnector(id)
		if err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"device":    dev.id,
				"connector": id,
			}).Warnln("Failed to read connector")
			continue
		}
		connectors = append(connectors, conn)
	}
	connectors = sliceutils.Filter(connectors, func(c *drm.Connector) bool {
		return c.State == drm.Connected
	})

	surfaces := make(map[uint32]*Surface)

	for _, conn := range connectors {
		logrus.WithFields(logrus.Fields{
			"device":    dev.id,
			"connector": conn.Name(),
		}).Infoln("Connected")

		var encoders []*drm.Encoder
		for _, encID := range conn.Encoders {
			enc, err := dev.card.GetEncoder(encID)
			if err != nil {
				continue
			}
			encoders = append(encoders, enc)
		}

	pairing:
		for _, enc := range encoders {
			for _, crtc := range res.FilterCrtcs(enc.PossibleCrtcs) {
				if _, claimed := surfaces[crtc]; claimed {
					continue
				}

				logrus.WithFields(logrus.Fields{
					"device":    dev.id,
					"connector": conn.Name(),
					"crtc":      crtc,
				}).Infoln("Trying to set up connector with crtc")

				surface, out, verdict := b.buildPipeline(dev, conn, crtc)
				switch verdict {
				case pipelineOK:
					surfaces[crtc] = surface
					b.outputs.Add(out)
					break pairing
				case skipConnector:
					// Mode selection refused this connector entirely
					break pairing
				case skipCrtc:
					continue
				}
			}
		}
	}

	return surfaces
}

type pipelineVerdict int

const (
	pipelineOK = pipelineVerdict(iota)
	// This CRTC candidate failed, the next one may still work
	skipCrtc
	// Nothing will work for this connector, stop scanning it
	skipConnector
)

// Builds the swapchain and output for one accepted (connector, crtc) pair
func (b *Backend) buildPipeline(dev *Device, conn *drm.Connector, crtc uint32) (*Surface, *output.Output, pipelineVerdict) {
	name := conn.Name()

	// Preferred mode first, so policies defaulting to index 0 pick it
	rawModes := append([]drm.ModeInfo(nil), conn.Modes...)
	sort.SliceStable(rawModes, func(i, j int) bool {
		return rawModes[i].Preferred() && !rawModes[j].Preferred()
	})

	modes := sliceutils.Map(rawModes, func(m drm.ModeInfo) generaldata.Mode {
		return generaldata.Mode{
			Size:    generaldata.Vector2i{X: int(m.Hdisplay), Y: int(m.Vdisplay)},
			Refresh: int(m.Vrefresh) * 1000,
		}
	})

	// External policy call; failure aborts this connector's setup only
	modeIdx, err := b.chooseMode(name, modes)
	if err != nil || modeIdx < 0 || modeIdx >= len(rawModes) {
		logrus.WithError(err).WithFields(logrus.Fields{
			"device": dev.id,
			"output": name,
			"mode":   modeIdx,
		}).Errorln("No usable mode for connector")
		return nil, nil, skipConnector
	}
	rawMode := rawModes[modeIdx]
	mode := modes[modeIdx]

	logrus.WithFields(logrus.Fields{
		"output": name,
		"mode":   rawMode.String(),
	}).Infoln("Mode selected")

	// Remember what the pipe was doing so teardown can put it back
	var restore func()
	if saved, err := dev.card.GetCrtc(crtc); err == nil {
		card, hasRealCard := dev.card.(*drm.Card)
		if hasRealCard {
			connID := conn.ID
			restore = func() {
				if err := card.RestoreCrtc(saved, []uint32{connID}); err != nil {
					logrus.WithError(err).WithField("crtc", crtc).Debugln("Failed to restore crtc")
				}
			}
		}
	}

	sc, err := dev.alloc.CreateSwapchain(crtc, rawMode, []uint32{conn.ID})
	if err != nil {
		logrus.WithError(err).WithFields(logrus.Fields{
			"device": dev.id,
			"crtc":   crtc,
		}).Warnln("Failed to create rendering surface")
		return nil, nil, skipCrtc
	}

	surface := newSurface(dev.id, crtc, conn.ID, mode, sc)
	surface.saved = &savedCrtc{restore: restore}
	surface.link(b.signaler)

	out := output.New(
		name,
		output.PhysicalProperties{
			SizeMm: generaldata.Vector2i{X: int(conn.MmWidth), Y: int(conn.MmHeight)},
			Make:   "way2kms",
			Model:  "Generic DRM",
		},
		mode,
		output.KmsTag{DeviceID: dev.id, Crtc: crtc},
	)

	return surface, out, pipelineOK
}
