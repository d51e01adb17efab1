package mapper

import (
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/vrt"
)

var timeParser = &now.Config{
	WeekStartDay: time.Monday,
	TimeLocation: time.UTC,
	TimeFormats: append([]string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04:05.999999999Z",
	}, now.TimeFormats...),
}

// ParseTime reads the usual product time stamps. Zone-less values are UTC.
func ParseTime(s string) (time.Time, error) {
	return timeParser.Parse(strings.TrimSpace(s))
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// floatMeta parses md[key], def when absent.
func floatMeta(stage string, md map[string]string, key string, def float64) (float64, error) {
	s, ok := md[key]
	if !ok || strings.TrimSpace(s) == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, errs.Malformed(stage, key, err)
	}
	return v, nil
}

func intMeta(stage string, md map[string]string, key string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(md[key]))
	if err != nil {
		return 0, errs.Malformed(stage, key, err)
	}
	return v, nil
}

// firstOf returns the first present key and its value.
func firstOf(md map[string]string, keys ...string) (key, val string) {
	for _, k := range keys {
		if v := md[k]; v != "" {
			return k, v
		}
	}
	return
}

// varName extracts the variable of a subdataset: the second word of a
// "[2030x1354] Rrs_412 (32-bit floating-point)" description, else the last
// element of the name.
func varName(sub vrt.SubDataset) string {
	if f := strings.Fields(sub.Desc); len(f) >= 2 {
		return f[1]
	}
	name := sub.Name
	if i := strings.LastIndex(name, ":"); i >= 0 {
		name = name[i+1:]
	}
	return path.Base(strings.Trim(name, `"`))
}

func band(ref vrt.Dataset, i int, t raster.DataType, meta map[string]string) vrt.Band {
	return vrt.Band{
		Sources: []vrt.Source{{Ref: ref, Band: i, DataType: t}},
		Meta:    meta,
	}
}

func pixelBand(pf string, meta map[string]string, srcs ...vrt.Source) vrt.Band {
	if meta == nil {
		meta = map[string]string{}
	}
	meta[vrt.KeyPixelFunction] = pf
	return vrt.Band{Sources: srcs, Meta: meta}
}
