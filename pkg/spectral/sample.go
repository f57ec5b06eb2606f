// Package spectral holds the spectroradiometer sample type shared by the
// capture pipeline, the meter drivers and the CLI.
package spectral

import (
	"fmt"
	"io"
	"strings"
)

// Sample is one spectral radiance measurement sampled on a regular grid.
type Sample struct {
	// Start is the first wavelength in nm.
	Start float64 `json:"start"`
	// Step is the wavelength increment in nm.
	Step float64 `json:"step"`
	// Values holds the radiance at Start + i*Step.
	Values []float64 `json:"values"`
}

// Len returns the number of wavelength bins.
func (s Sample) Len() int { return len(s.Values) }

// Wavelength returns the wavelength of bin i.
func (s Sample) Wavelength(i int) float64 {
	return s.Start + float64(i)*s.Step
}

// Radiance integrates the spectrum over wavelength (rectangle rule).
func (s Sample) Radiance() float64 {
	sum := 0.0
	for _, v := range s.Values {
		sum += v
	}
	return sum * s.Step
}

// Weighted integrates the spectrum against a sensitivity function.
func (s Sample) Weighted(sensitivity func(lambda float64) float64) float64 {
	sum := 0.0
	for i, v := range s.Values {
		sum += v * sensitivity(s.Wavelength(i))
	}
	return sum * s.Step
}

// WriteTable writes samples as a tab separated table, one row per
// wavelength and one column per sample. Comment lines start with "# ".
// All samples are expected to share the first sample's grid.
func WriteTable(w io.Writer, labels []string, samples []Sample) error {
	if len(samples) == 0 {
		_, err := fmt.Fprintln(w, "# no data")
		return err
	}

	header := make([]string, 0, len(samples)+1)
	header = append(header, "λ")
	for i := range samples {
		label := fmt.Sprintf("s%d", i)
		if i < len(labels) {
			label = labels[i]
		}
		header = append(header, label)
	}

	if _, err := fmt.Fprintf(w, "# spectral data\n# %s\n", strings.Join(header, "\t")); err != nil {
		return err
	}

	ref := samples[0]
	for i := 0; i < ref.Len(); i++ {
		var b strings.Builder
		fmt.Fprintf(&b, "%g", ref.Wavelength(i))
		for _, s := range samples {
			b.WriteByte('\t')
			if i < s.Len() {
				fmt.Fprintf(&b, "%g", s.Values[i])
			}
		}
		b.WriteByte('\n')
		if _, err := io.WriteString(w, b.String()); err != nil {
			return err
		}
	}

	return nil
}
