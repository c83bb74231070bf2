// -----------------------------------------------------------------------
// Sensor taxonomy - tagged variants for the supported product families
// -----------------------------------------------------------------------

package models

import (
	"fmt"
	"strings"
	"time"
)

// SensorKind identifies one sensor/product family.
type SensorKind string

const (
	SensorKindTM      SensorKind = "tm"       // Landsat 4/5 Thematic Mapper
	SensorKindETM     SensorKind = "etm"      // Landsat 7 Enhanced TM+
	SensorKindOLITIRS SensorKind = "olitirs"  // Landsat 8/9 combined
	SensorKindOLI     SensorKind = "oli"      // Landsat 8/9 OLI only
	SensorKindTIRS    SensorKind = "tirs"     // Landsat 8/9 TIRS only
	SensorKindMOD09   SensorKind = "mod09"    // MODIS Terra surface reflectance
	SensorKindMYD09   SensorKind = "myd09"    // MODIS Aqua surface reflectance
	SensorKindMOD13   SensorKind = "mod13"    // MODIS Terra vegetation indices
	SensorKindMYD13   SensorKind = "myd13"    // MODIS Aqua vegetation indices
	SensorKindPlot    SensorKind = "plot"     // synthetic statistics aggregate
)

// Product identifiers a selection may request.
const (
	ProductSourceMetadata      = "source_metadata"
	ProductTopOfAtmosphere     = "toa"
	ProductBrightnessTemp      = "bt"
	ProductSurfaceReflectance  = "sr"
	ProductSurfaceTemperature  = "st"
	ProductSpectralIndices     = "spectral_indices"
	ProductDSWE                = "dswe"
	ProductStatistics          = "stats"
)

// SensorInfo carries the per-kind data record that replaces the source
// system's class hierarchy: resolution, supported products, the code the
// external archive knows the collection by, and the earliest acquisition
// date for which surface-reflectance auxiliary data exists.
type SensorInfo struct {
	Kind               SensorKind
	Type               SensorType
	DefaultResolution  float64
	SupportedProducts  []string
	ArchiveProductCode string
	SRAuxStart         *time.Time
	LandsatFamily      bool
}

func auxDate(year int, month time.Month, day int) *time.Time {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return &t
}

var sensorCatalog = map[SensorKind]SensorInfo{
	SensorKindTM: {
		Kind: SensorKindTM, Type: SensorTypeLandsat, DefaultResolution: 30,
		SupportedProducts:  []string{ProductSourceMetadata, ProductTopOfAtmosphere, ProductBrightnessTemp, ProductSurfaceReflectance, ProductSurfaceTemperature, ProductSpectralIndices, ProductDSWE},
		ArchiveProductCode: "T273", SRAuxStart: auxDate(1982, time.July, 16), LandsatFamily: true,
	},
	SensorKindETM: {
		Kind: SensorKindETM, Type: SensorTypeLandsat, DefaultResolution: 30,
		SupportedProducts:  []string{ProductSourceMetadata, ProductTopOfAtmosphere, ProductBrightnessTemp, ProductSurfaceReflectance, ProductSurfaceTemperature, ProductSpectralIndices, ProductDSWE},
		ArchiveProductCode: "T271", SRAuxStart: auxDate(1999, time.April, 15), LandsatFamily: true,
	},
	SensorKindOLITIRS: {
		Kind: SensorKindOLITIRS, Type: SensorTypeLandsat, DefaultResolution: 30,
		SupportedProducts:  []string{ProductSourceMetadata, ProductTopOfAtmosphere, ProductBrightnessTemp, ProductSurfaceReflectance, ProductSurfaceTemperature, ProductSpectralIndices},
		ArchiveProductCode: "T272", SRAuxStart: auxDate(2013, time.February, 11), LandsatFamily: true,
	},
	SensorKindOLI: {
		Kind: SensorKindOLI, Type: SensorTypeLandsat, DefaultResolution: 30,
		// OLI-only acquisitions have no thermal band: no BT, ST or SR
		SupportedProducts:  []string{ProductSourceMetadata, ProductTopOfAtmosphere},
		ArchiveProductCode: "T272", SRAuxStart: nil, LandsatFamily: true,
	},
	SensorKindTIRS: {
		Kind: SensorKindTIRS, Type: SensorTypeLandsat, DefaultResolution: 30,
		SupportedProducts:  []string{ProductSourceMetadata, ProductBrightnessTemp},
		ArchiveProductCode: "T272", SRAuxStart: nil, LandsatFamily: true,
	},
	SensorKindMOD09: {
		Kind: SensorKindMOD09, Type: SensorTypeModis, DefaultResolution: 500,
		SupportedProducts:  []string{ProductSourceMetadata, ProductSurfaceReflectance, ProductSpectralIndices},
		ArchiveProductCode: "MOD09", SRAuxStart: auxDate(2000, time.February, 24),
	},
	SensorKindMYD09: {
		Kind: SensorKindMYD09, Type: SensorTypeModis, DefaultResolution: 500,
		SupportedProducts:  []string{ProductSourceMetadata, ProductSurfaceReflectance, ProductSpectralIndices},
		ArchiveProductCode: "MYD09", SRAuxStart: auxDate(2002, time.July, 4),
	},
	SensorKindMOD13: {
		Kind: SensorKindMOD13, Type: SensorTypeModis, DefaultResolution: 250,
		SupportedProducts:  []string{ProductSourceMetadata, ProductSpectralIndices},
		ArchiveProductCode: "MOD13",
	},
	SensorKindMYD13: {
		Kind: SensorKindMYD13, Type: SensorTypeModis, DefaultResolution: 250,
		SupportedProducts:  []string{ProductSourceMetadata, ProductSpectralIndices},
		ArchiveProductCode: "MYD13",
	},
	SensorKindPlot: {
		Kind: SensorKindPlot, Type: SensorTypePlot,
		SupportedProducts: []string{ProductStatistics},
	},
}

// Info returns the data record for a sensor kind.
func (k SensorKind) Info() (SensorInfo, bool) {
	info, ok := sensorCatalog[k]
	return info, ok
}

// ClassifyProductID resolves a scene/product identifier to its sensor kind.
// Landsat ids follow the collection convention (LT05_..., LC08_...) or the
// legacy packed form (LT50380322011299PAC01); MODIS ids carry the short name
// prefix (MOD09A1.A2010033...).
func ClassifyProductID(id string) (SensorInfo, error) {
	upper := strings.ToUpper(strings.TrimSpace(id))
	if upper == "" {
		return SensorInfo{}, fmt.Errorf("empty product id")
	}
	if strings.EqualFold(upper, strings.ToUpper(PlotSceneName)) {
		return sensorCatalog[SensorKindPlot], nil
	}

	var kind SensorKind
	switch {
	case strings.HasPrefix(upper, "LT04"), strings.HasPrefix(upper, "LT05"),
		strings.HasPrefix(upper, "LT4"), strings.HasPrefix(upper, "LT5"):
		kind = SensorKindTM
	case strings.HasPrefix(upper, "LE07"), strings.HasPrefix(upper, "LE7"):
		kind = SensorKindETM
	case strings.HasPrefix(upper, "LC08"), strings.HasPrefix(upper, "LC09"),
		strings.HasPrefix(upper, "LC8"), strings.HasPrefix(upper, "LC9"):
		kind = SensorKindOLITIRS
	case strings.HasPrefix(upper, "LO08"), strings.HasPrefix(upper, "LO09"),
		strings.HasPrefix(upper, "LO8"), strings.HasPrefix(upper, "LO9"):
		kind = SensorKindOLI
	case strings.HasPrefix(upper, "LT08"), strings.HasPrefix(upper, "LT09"):
		kind = SensorKindTIRS
	case strings.HasPrefix(upper, "MOD09"):
		kind = SensorKindMOD09
	case strings.HasPrefix(upper, "MYD09"):
		kind = SensorKindMYD09
	case strings.HasPrefix(upper, "MOD13"):
		kind = SensorKindMOD13
	case strings.HasPrefix(upper, "MYD13"):
		kind = SensorKindMYD13
	default:
		return SensorInfo{}, fmt.Errorf("unrecognized product id: %s", id)
	}
	return sensorCatalog[kind], nil
}

// AcquisitionDate extracts the acquisition date from a scene identifier.
// Collection-style Landsat ids carry YYYYMMDD in the fourth underscore
// field; legacy Landsat ids pack year and day-of-year at offset 9; MODIS
// ids carry .AYYYYDDD after the short name.
func AcquisitionDate(id string) (time.Time, error) {
	upper := strings.ToUpper(strings.TrimSpace(id))

	if strings.HasPrefix(upper, "MOD") || strings.HasPrefix(upper, "MYD") {
		parts := strings.Split(upper, ".")
		if len(parts) < 2 || len(parts[1]) != 8 || parts[1][0] != 'A' {
			return time.Time{}, fmt.Errorf("malformed modis id: %s", id)
		}
		return time.Parse("2006002", parts[1][1:])
	}

	if strings.Contains(upper, "_") {
		parts := strings.Split(upper, "_")
		if len(parts) < 4 {
			return time.Time{}, fmt.Errorf("malformed landsat id: %s", id)
		}
		return time.Parse("20060102", parts[3])
	}

	if len(upper) >= 16 {
		return time.Parse("2006002", upper[9:16])
	}
	return time.Time{}, fmt.Errorf("cannot derive acquisition date from id: %s", id)
}
