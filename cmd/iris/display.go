package main

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/store"
	"github.com/charlie0129/iris/pkg/types"
)

// assembleDisplay builds the display identity. An empty monitor means the
// default monitor, an empty gfx the configured one and an empty mode the
// monitor's preferred mode.
func assembleDisplay(cat store.Catalog, monitor, gfx, mode string) (store.Display, error) {
	if gfx == "" {
		gfx = conf.Gfx()
	}
	if mode == "" {
		return cat.MakeDisplay(monitor, nil, gfx)
	}

	if monitor == "" {
		id, err := cat.DefaultMonitor()
		if err != nil {
			return store.Display{}, err
		}
		monitor = id
	}
	m, err := cat.LoadMonitor(monitor)
	if err != nil {
		return store.Display{}, err
	}
	md, err := parseMode(mode)
	if err != nil {
		return store.Display{}, err
	}
	md.ColorDepth = m.DefaultMode.ColorDepth
	return cat.MakeDisplay(monitor, &md, gfx)
}

func printDisplay(d store.Display) {
	fmt.Printf("Monitor: %s\n", bold("%s", d.MonitorID))
	fmt.Printf("Settings: %s\n", d.SettingsID)
	fmt.Printf("Link: %s\n", d.LinkID)
	fmt.Printf("Gfx: %s\n", d.Gfx)
	fmt.Printf("Mode: %s\n", formatMode(d.Mode))
}

type displayFlags struct {
	monitor   string
	gfx       string
	mode      string
	viaDaemon bool
}

func (f *displayFlags) register(cmd *cobra.Command) {
	fl := cmd.Flags()
	fl.StringVar(&f.monitor, "monitor", "", "monitor id (defaults to the default monitor)")
	fl.StringVar(&f.gfx, "gfx", "", "graphics output (defaults to the config value)")
	fl.StringVar(&f.mode, "mode", "", "display mode WIDTHxHEIGHT@REFRESH (defaults to the preferred mode)")
	fl.BoolVar(&f.viaDaemon, "daemon", false, "ask the running daemon instead of reading the store")
}

func (f *displayFlags) display() (store.Display, error) {
	if !f.viaDaemon {
		cat, err := openCatalog()
		if err != nil {
			return store.Display{}, err
		}
		return assembleDisplay(cat, f.monitor, f.gfx, f.mode)
	}

	req := types.DisplayRequest{Monitor: f.monitor, Gfx: f.gfx}
	if req.Gfx == "" {
		req.Gfx = conf.Gfx()
	}
	if f.mode != "" {
		md, err := parseMode(f.mode)
		if err != nil {
			return store.Display{}, err
		}
		req.Mode = &md
	}
	return newClient().MakeDisplay(req)
}

func NewDisplayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "display",
		Short:   "Assemble display identities and manage links",
		GroupID: gStore,
	}

	df := &displayFlags{}
	makeCmd := &cobra.Command{
		Use:   "make",
		Short: "Show the display identity for a monitor on a graphics output",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := df.display()
			if err != nil {
				return err
			}
			printDisplay(d)
			return nil
		},
	}
	df.register(makeCmd)

	linkCmd := &cobra.Command{
		Use:   "link [gfx] [monitor] [link]",
		Short: "Record the link a monitor is attached through on a graphics output",
		Args:  cobra.ExactArgs(3),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := openDataStore()
			if err != nil {
				return err
			}
			if err := data.SaveLink(args[0], args[1], args[2]); err != nil {
				return err
			}
			logrus.Infof("monitor %s on %s linked as %s", args[1], args[0], args[2])
			return nil
		},
	}

	cmd.AddCommand(makeCmd, linkCmd)
	return cmd
}
