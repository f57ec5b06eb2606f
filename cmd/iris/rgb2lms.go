package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/store"
)

func NewRGB2LMSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "rgb2lms",
		Short:   "Look up stored color transforms",
		GroupID: gStore,
	}

	df := &displayFlags{}
	lookupCmd := &cobra.Command{
		Use:   "lookup",
		Short: "Find the newest transform matching a display",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			d, err := df.display()
			if err != nil {
				return err
			}

			var t store.RGB2LMS
			if df.viaDaemon {
				t, err = newClient().LookupRGB2LMS(d)
			} else {
				var data *store.Store
				if data, err = openDataStore(); err == nil {
					t, err = data.LoadRGB2LMS(d)
				}
			}
			if err != nil {
				return err
			}

			fmt.Printf("ID: %s\n", bold("%s", t.ID))
			fmt.Printf("Dataset: %s\n", t.Dataset)
			fmt.Printf("Gray level: %g\n", t.GrayLevel)
			fmt.Printf("Size: %gm x %gm\n", t.Size.Width, t.Size.Height)
			printDisplay(t.Display)
			printRGB2LMSParams(t.Params)
			return nil
		},
	}
	df.register(lookupCmd)

	listCmd := &cobra.Command{
		Use:   "list [monitor]",
		Short: "List stored transforms of a monitor, newest first",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			data, err := openDataStore()
			if err != nil {
				return err
			}
			id := ""
			if len(args) == 1 {
				id = args[0]
			} else if id, err = data.DefaultMonitor(); err != nil {
				return err
			}
			ids, err := data.ListRGB2LMS(id)
			if err != nil {
				return err
			}
			for _, s := range ids {
				fmt.Println(s)
			}
			return nil
		},
	}

	cmd.AddCommand(lookupCmd, listCmd)
	return cmd
}
