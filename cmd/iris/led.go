package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/charlie0129/iris/pkg/lpm"
	"github.com/charlie0129/iris/pkg/pr655"
	"github.com/charlie0129/iris/pkg/simulator"
	"github.com/charlie0129/iris/pkg/spectral"
	"github.com/charlie0129/iris/pkg/store"
)

const defaultLightBox = "/dev/ttyACM0"

func NewLEDCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "led",
		Short:   "Drive the LED light box and record LED spectra",
		GroupID: gCapture,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "List the light box LED table",
			Args:  cobra.NoArgs,
			RunE: func(_ *cobra.Command, _ []string) error {
				cat, err := openCatalog()
				if err != nil {
					return err
				}
				leds, err := cat.LoadLEDs()
				if err != nil {
					return err
				}
				for _, pin := range sortedPins(leds) {
					fmt.Printf("pin %3d  %s nm\n", pin, bold("%d", leds[pin]))
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "set [pin] [wavelength]",
			Short: "Record the wavelength of the LED on a pin (0 removes it)",
			Args:  cobra.ExactArgs(2),
			RunE: func(_ *cobra.Command, args []string) error {
				pin, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid pin %q: %v", args[0], err)
				}
				wl, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("invalid wavelength %q: %v", args[1], err)
				}
				data, err := openDataStore()
				if err != nil {
					return err
				}
				return data.SaveLED(pin, wl)
			},
		},
		newLEDSendCommand(),
		newLEDSpectrumCommand(),
	)

	return cmd
}

func sortedPins(leds store.LEDs) []int {
	pins := make([]int, 0, len(leds))
	for pin := range leds {
		pins = append(pins, pin)
	}
	sort.Ints(pins)
	return pins
}

func newLEDSendCommand() *cobra.Command {
	device := defaultLightBox

	cmd := &cobra.Command{
		Use:   "send [command...]",
		Short: "Send a raw command (info, reset, shoot, pwm PIN,VALUE) to the light box",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			box, err := lpm.Open(device)
			if err != nil {
				return err
			}
			defer box.Close()

			ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			lines, err := box.Exec(ctx, strings.Join(args, " "))
			for _, l := range lines {
				fmt.Println(l)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&device, "lpm-device", device, "light box serial device")

	return cmd
}

type ledSpectrumOptions struct {
	simulate bool
	device   string
	duty     int
	settle   time.Duration
	shoot    bool
	output   string
}

func newLEDSpectrumCommand() *cobra.Command {
	o := ledSpectrumOptions{}

	cmd := &cobra.Command{
		Use:   "spectrum",
		Short: "Measure the spectrum of every LED in the light box",
		Long: `Measure the spectrum of every LED in the light box.

Each LED of the LED table is lit alone, optionally photographed, and measured
with the spectroradiometer. The spectra are written as a table with one row
per LED, labelled by its wavelength.

With --simulate, a mocked light box and PR-655 stand in for the hardware.`,
		Args: cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runLEDSpectrum(o)
		},
	}

	f := cmd.Flags()
	f.BoolVar(&o.simulate, "simulate", false, "use a simulated light box and meter")
	f.StringVar(&o.device, "lpm-device", defaultLightBox, "light box serial device")
	f.IntVar(&o.duty, "pwm", lpm.FullPWM, "PWM duty value for each LED")
	f.DurationVar(&o.settle, "settle", time.Second, "wait after switching LEDs")
	f.BoolVar(&o.shoot, "shoot", true, "trigger the camera for each LED")
	f.StringVarP(&o.output, "output", "o", "-", "spectral table output file")

	return cmd
}

func runLEDSpectrum(o ledSpectrumOptions) error {
	cat, err := openCatalog()
	if err != nil {
		return err
	}
	leds, err := cat.LoadLEDs()
	if err != nil {
		return err
	}
	for _, pin := range sortedPins(leds) {
		logrus.WithFields(logrus.Fields{
			"pin":        pin,
			"wavelength": leds[pin],
		}).Debug("led table entry")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var (
		box *lpm.Device
		dev *pr655.Device
	)
	if o.simulate {
		lb := simulator.NewLightBox(leds)
		box = lpm.New(lb.Box())
		dev = pr655.New(lb.Instrument(), pr655.WithoutDelays())
		o.settle = 0
	} else {
		if box, err = lpm.Open(o.device); err != nil {
			return err
		}
		if dev, err = pr655.Open(conf.Device()); err != nil {
			box.Close()
			return err
		}
	}
	defer box.Close()
	defer dev.Close()

	if err := dev.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := dev.Stop(); err != nil {
			logrus.WithError(err).Warn("failed to leave remote mode")
		}
	}()
	if err := dev.SetUnits(ctx, true); err != nil {
		return err
	}

	res, err := lpm.Sweep(ctx, box, dev, leds, lpm.SweepOptions{
		Duty:   o.duty,
		Settle: o.settle,
		Shoot:  o.shoot,
	})
	if err != nil {
		return err
	}

	labels := make([]string, len(res.Wavelengths))
	for i, wl := range res.Wavelengths {
		labels[i] = strconv.Itoa(wl)
	}
	return writeTable(o.output, labels, res.Spectra)
}

func writeTable(path string, labels []string, samples []spectral.Sample) error {
	if path == "-" {
		return spectral.WriteTable(os.Stdout, labels, samples)
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := spectral.WriteTable(f, labels, samples); err != nil {
		f.Close()
		return err
	}
	logrus.WithField("path", path).Info("spectral table written")
	return f.Close()
}
