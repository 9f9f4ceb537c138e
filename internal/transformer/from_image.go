package transformer

import (
	"github.com/shopspring/decimal"

	"github.com/edvin/metering/internal/model"
)

var imagePaths = []string{"image_ref", "image_ref_url", "image.id"}

// FromImage bills the root disk of instances booted from an image, as the
// largest reported size multiplied by the window length in hours.
type FromImage struct {
	noneValues map[string]struct{}
	sizeField  string
}

func newFromImage(noneValues []string, sizeField string) FromImage {
	if len(noneValues) == 0 {
		noneValues = []string{"None", ""}
	}
	if sizeField == "" {
		sizeField = "root_gb"
	}
	nv := make(map[string]struct{}, len(noneValues))
	for _, v := range noneValues {
		nv[v] = struct{}{}
	}
	return FromImage{noneValues: nv, sizeField: sizeField}
}

func (f FromImage) TransformUsage(service string, samples []model.Sample, window model.Window) map[string]decimal.Decimal {
	var (
		size  decimal.Decimal
		found bool
	)
	for _, s := range sortAndClip(samples, window.End) {
		if ref, ok := MetadataString(s.Metadata, imagePaths...); ok {
			if _, none := f.noneValues[ref]; none {
				return nil
			}
		}
		v, ok := MetadataValue(s.Metadata, f.sizeField)
		if !ok {
			continue
		}
		d, err := decimal.NewFromString(v.String())
		if err != nil {
			continue
		}
		if !found || d.GreaterThan(size) {
			size = d
			found = true
		}
	}
	if !found {
		return nil
	}
	hours := decimal.NewFromFloat(window.Duration().Hours())
	return map[string]decimal.Decimal{service: size.Mul(hours)}
}
