package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/store"
)

func NewMonitorCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "monitor",
		Short:   "Manage monitor descriptors",
		GroupID: gStore,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List known monitors",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				data, err := openDataStore()
				if err != nil {
					return err
				}
				ids, err := data.ListMonitors()
				if err != nil {
					return err
				}
				def, _ := data.DefaultMonitor()
				for _, id := range ids {
					marker := " "
					if id == def {
						marker = "*"
					}
					fmt.Printf("%s %s\n", marker, id)
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "show [id]",
			Short: "Show a monitor descriptor",
			Args:  cobra.ExactArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				data, err := openDataStore()
				if err != nil {
					return err
				}
				m, err := data.LoadMonitor(args[0])
				if err != nil {
					return err
				}
				printMonitor(m)
				return nil
			},
		},
		&cobra.Command{
			Use:   "default [id]",
			Short: "Show or set the default monitor",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(_ *cobra.Command, args []string) error {
				data, err := openDataStore()
				if err != nil {
					return err
				}
				if len(args) == 1 {
					if err := data.SetDefaultMonitor(args[0]); err != nil {
						return err
					}
					logrus.Infof("default monitor set to %s", args[0])
					return nil
				}
				id, err := data.DefaultMonitor()
				if err != nil {
					return err
				}
				fmt.Println(id)
				return nil
			},
		},
		newMonitorAddCommand(),
	)

	return cmd
}

func newMonitorAddCommand() *cobra.Command {
	var (
		m     store.Monitor
		mode  string
		depth string
	)

	cmd := &cobra.Command{
		Use:   "add [id]",
		Short: "Add or replace a monitor descriptor",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			m.ID = args[0]
			var err error
			if m.DefaultMode, err = parseMode(mode); err != nil {
				return err
			}
			if m.DefaultMode.ColorDepth, err = parseDepth(depth); err != nil {
				return err
			}

			data, err := openDataStore()
			if err != nil {
				return err
			}
			if err := data.SaveMonitor(m); err != nil {
				return err
			}
			logrus.Infof("monitor %s saved", m.ID)
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&m.Name, "name", "", "model name")
	f.StringVar(&m.Vendor, "vendor", "", "vendor")
	f.StringVar(&m.Year, "year", "", "year of manufacture")
	f.StringVar(&m.Serial, "serial", "", "serial number")
	f.StringVar(&mode, "mode", "1920x1080@60", "preferred mode WIDTHxHEIGHT@REFRESH")
	f.StringVar(&depth, "depth", "8,8,8", "bits per channel R,G,B")

	return cmd
}

func parseDepth(s string) ([3]int, error) {
	var d [3]int
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return d, fmt.Errorf("invalid color depth %q, want R,G,B", s)
	}
	for i, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || v <= 0 {
			return d, fmt.Errorf("invalid color depth %q, want R,G,B", s)
		}
		d[i] = v
	}
	return d, nil
}

func printMonitor(m store.Monitor) {
	fmt.Printf("ID: %s\n", bold("%s", m.ID))
	fmt.Printf("Name: %s\n", m.Name)
	fmt.Printf("Vendor: %s\n", m.Vendor)
	fmt.Printf("Year: %s\n", m.Year)
	fmt.Printf("Serial: %s\n", m.Serial)
	fmt.Printf("Preferred mode: %s, depth %v\n", bold("%s", formatMode(m.DefaultMode)), m.DefaultMode.ColorDepth)
}

func NewSettingsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "settings",
		Short:   "Inspect monitor settings profiles",
		GroupID: gStore,
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list [monitor]",
		Short: "List settings profiles of a monitor, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			cat, err := openCatalog()
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			} else if id, err = cat.DefaultMonitor(); err != nil {
				return err
			}
			m, err := cat.LoadMonitor(id)
			if err != nil {
				return err
			}
			ids, err := cat.Data.ListSettings(m)
			if err != nil {
				return err
			}
			for _, s := range ids {
				fmt.Println(s)
			}
			return nil
		},
	})

	return cmd
}
