// -----------------------------------------------------------------------
// Product options - typed per-sensor product selection
// -----------------------------------------------------------------------

package models

import (
	"fmt"
)

// ProductSelection is the set of output products requested for one sensor
// kind within an order.
type ProductSelection struct {
	SourceMetadata     bool     `json:"source_metadata,omitempty"`
	TopOfAtmosphere    bool     `json:"toa,omitempty"`
	BrightnessTemp     bool     `json:"bt,omitempty"`
	SurfaceReflectance bool     `json:"sr,omitempty"`
	SurfaceTemperature bool     `json:"st,omitempty"`
	SpectralIndices    []string `json:"spectral_indices,omitempty"`
	DSWE               bool     `json:"dswe,omitempty"`
}

// Customization holds output customization shared by all selections in an
// order.
type Customization struct {
	Projection     string  `json:"projection,omitempty"`
	PixelSize      float64 `json:"pixel_size,omitempty"`
	ResampleMethod string  `json:"resample_method,omitempty"`
	OutputFormat   string  `json:"output_format,omitempty"`
}

// ProductOptions is the order-level product selection, a discriminated
// structure keyed by sensor kind rather than the legacy free-form map.
type ProductOptions struct {
	Selections        map[SensorKind]ProductSelection `json:"selections"`
	IncludeStatistics bool                            `json:"include_statistics,omitempty"`
	Customization     *Customization                  `json:"customization,omitempty"`
}

// SelectionFor returns the selection applying to the given kind.
func (p ProductOptions) SelectionFor(kind SensorKind) (ProductSelection, bool) {
	sel, ok := p.Selections[kind]
	return sel, ok
}

// DefaultSelection synthesizes the default product for a sensor kind, used
// when importing externally-originated orders that carry no options payload.
// Kinds that support surface reflectance default to it; others fall back to
// their first supported product.
func DefaultSelection(kind SensorKind) (ProductSelection, error) {
	info, ok := kind.Info()
	if !ok {
		return ProductSelection{}, fmt.Errorf("unknown sensor kind: %s", kind)
	}
	sel := ProductSelection{SourceMetadata: true}
	for _, p := range info.SupportedProducts {
		if p == ProductSurfaceReflectance {
			sel.SurfaceReflectance = true
			return sel, nil
		}
	}
	for _, p := range info.SupportedProducts {
		switch p {
		case ProductTopOfAtmosphere:
			sel.TopOfAtmosphere = true
			return sel, nil
		case ProductBrightnessTemp:
			sel.BrightnessTemp = true
			return sel, nil
		case ProductSpectralIndices:
			sel.SpectralIndices = []string{"ndvi"}
			return sel, nil
		}
	}
	return sel, nil
}

// OptionsFromLegacy adapts the historical free-form options payload at the
// boundary. Recognized top-level keys are sensor kinds mapping to product
// flag maps, plus "include_statistics" and "customization". Unknown keys are
// rejected rather than silently dropped.
func OptionsFromLegacy(raw map[string]interface{}) (ProductOptions, error) {
	opts := ProductOptions{Selections: make(map[SensorKind]ProductSelection)}

	for key, value := range raw {
		switch key {
		case "include_statistics":
			b, ok := value.(bool)
			if !ok {
				return ProductOptions{}, fmt.Errorf("include_statistics must be a bool")
			}
			opts.IncludeStatistics = b
		case "customization":
			m, ok := value.(map[string]interface{})
			if !ok {
				return ProductOptions{}, fmt.Errorf("customization must be a map")
			}
			c := &Customization{}
			if v, ok := m["projection"].(string); ok {
				c.Projection = v
			}
			if v, ok := m["pixel_size"].(float64); ok {
				c.PixelSize = v
			}
			if v, ok := m["resample_method"].(string); ok {
				c.ResampleMethod = v
			}
			if v, ok := m["output_format"].(string); ok {
				c.OutputFormat = v
			}
			opts.Customization = c
		default:
			kind := SensorKind(key)
			if _, ok := kind.Info(); !ok {
				return ProductOptions{}, fmt.Errorf("unrecognized options key: %s", key)
			}
			m, ok := value.(map[string]interface{})
			if !ok {
				return ProductOptions{}, fmt.Errorf("selection for %s must be a map", key)
			}
			sel, err := selectionFromLegacy(m)
			if err != nil {
				return ProductOptions{}, fmt.Errorf("selection for %s: %w", key, err)
			}
			opts.Selections[kind] = sel
		}
	}
	return opts, nil
}

func selectionFromLegacy(m map[string]interface{}) (ProductSelection, error) {
	var sel ProductSelection
	for key, value := range m {
		if key == ProductSpectralIndices {
			items, ok := value.([]interface{})
			if !ok {
				return ProductSelection{}, fmt.Errorf("%s must be a list", key)
			}
			for _, item := range items {
				s, ok := item.(string)
				if !ok {
					return ProductSelection{}, fmt.Errorf("%s entries must be strings", key)
				}
				sel.SpectralIndices = append(sel.SpectralIndices, s)
			}
			continue
		}
		b, ok := value.(bool)
		if !ok {
			return ProductSelection{}, fmt.Errorf("%s must be a bool", key)
		}
		switch key {
		case ProductSourceMetadata:
			sel.SourceMetadata = b
		case ProductTopOfAtmosphere:
			sel.TopOfAtmosphere = b
		case ProductBrightnessTemp:
			sel.BrightnessTemp = b
		case ProductSurfaceReflectance:
			sel.SurfaceReflectance = b
		case ProductSurfaceTemperature:
			sel.SurfaceTemperature = b
		case ProductDSWE:
			sel.DSWE = b
		default:
			return ProductSelection{}, fmt.Errorf("unrecognized product: %s", key)
		}
	}
	return sel, nil
}
