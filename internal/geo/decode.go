package geo

import (
	"encoding/json"
	"fmt"

	"github.com/paulmach/orb/geojson"
)

// Decode：解析 GeoJSON（FeatureCollection / Feature）或 TopoJSON Topology
// 约束：没有任何要素时返回 ErrEmptyDataset
func Decode(data []byte) (*geojson.FeatureCollection, error) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return nil, fmt.Errorf("geo: decode: %w", err)
	}
	var (
		fc  *geojson.FeatureCollection
		err error
	)
	switch head.Type {
	case "FeatureCollection":
		fc, err = geojson.UnmarshalFeatureCollection(data)
	case "Feature":
		var f *geojson.Feature
		if f, err = geojson.UnmarshalFeature(data); err == nil {
			fc = geojson.NewFeatureCollection()
			fc.Append(f)
		}
	case "Topology":
		fc, err = decodeTopology(data)
	default:
		return nil, fmt.Errorf("geo: decode: unsupported type %q", head.Type)
	}
	if err != nil {
		return nil, fmt.Errorf("geo: decode %s: %w", head.Type, err)
	}
	if fc == nil || len(fc.Features) == 0 {
		return nil, ErrEmptyDataset
	}
	return fc, nil
}
