package geovrt

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	goeval "github.com/edisonguo/govaluate"
	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/raster"
	"github.com/wgdzlh/geovrt/utils"
	"github.com/wgdzlh/geovrt/vrt"
)

// variable an expression sees the band values under
const exprVariable = "bandData"

type selectorKind int

const (
	byIndex selectorKind = iota
	byPredicate
)

// Selector picks one band of a scene.
type Selector struct {
	kind  selectorKind
	index int
	pred  map[string]string
}

// ByIndex selects band i, counted from 1 in the current band order.
func ByIndex(i int) Selector { return Selector{kind: byIndex, index: i} }

// ByName selects the first band whose name is name.
func ByName(name string) Selector { return ByPredicate(map[string]string{vrt.KeyName: name}) }

// ByPredicate selects the first band carrying every key/value pair of md.
func ByPredicate(md map[string]string) Selector {
	return Selector{kind: byPredicate, pred: utils.CloneMap(md)}
}

func (s Selector) String() string {
	if s.kind == byIndex {
		return strconv.Itoa(s.index)
	}
	parts := make([]string, 0, len(s.pred))
	for _, k := range utils.SortedKeys(s.pred) {
		parts = append(parts, k+"="+s.pred[k])
	}
	return "{" + strings.Join(parts, ", ") + "}"
}

// BandNumber resolves sel to a 1-based band number. Predicates are matched
// in ascending band order; an empty predicate matches nothing.
func (s *Scene) BandNumber(sel Selector) (int, error) {
	count := s.node.BandCount()
	switch sel.kind {
	case byIndex:
		if sel.index >= 1 && sel.index <= count {
			return sel.index, nil
		}
	case byPredicate:
		if len(sel.pred) == 0 {
			break
		}
		for i, b := range s.node.Bands() {
			if matches(b.Meta, sel.pred) {
				return i + 1, nil
			}
		}
	}
	return 0, fmt.Errorf("%w: %s, band number is from 1 to %d", ErrBandNotFound, sel, count)
}

func matches(md, pred map[string]string) bool {
	for k, v := range pred {
		if got, ok := md[k]; !ok || got != v {
			return false
		}
	}
	return true
}

// Bands returns the metadata of every band keyed by band number.
func (s *Scene) Bands() map[int]map[string]string {
	out := make(map[int]map[string]string, s.node.BandCount())
	for i, b := range s.node.Bands() {
		out[i+1] = b.Meta
	}
	return out
}

func (s *Scene) HasBand(name string) bool {
	return slices.Contains(s.node.BandNames(), name)
}

// ListBands formats the number, name and metadata of every band.
func (s *Scene) ListBands() string {
	var b strings.Builder
	for i, band := range s.node.Bands() {
		fmt.Fprintf(&b, "Band : %d %s\n", i+1, band.Name())
		for _, k := range utils.SortedKeys(band.Meta) {
			fmt.Fprintf(&b, "  %s: %s\n", k, band.Meta[k])
		}
	}
	return b.String()
}

// AddBand appends arr as a new band described by meta.
func (s *Scene) AddBand(arr *raster.Array, meta map[string]string) error {
	return s.AddBands([]*raster.Array{arr}, []map[string]string{meta})
}

// AddBands appends one band per array. The arrays are persisted in the
// scratch store and must have the size of the scene.
func (s *Scene) AddBands(arrays []*raster.Array, metas []map[string]string) error {
	if len(arrays) == 0 {
		return nil
	}
	held, err := vrt.NewFromArrays(s.Width(), s.Height(), s.node.Georef(), arrays, metas, s.node.Env())
	if err != nil {
		return err
	}
	bands := held.Bands()
	for i := range bands {
		// let the scene node name unnamed bands
		if i >= len(metas) || metas[i][vrt.KeyName] == "" {
			delete(bands[i].Meta, vrt.KeyName)
		}
	}
	n, err := s.node.AddBands(bands)
	if err != nil {
		return err
	}
	s.push(n)
	log.Debug(logTag+"bands added", zap.Int("count", len(bands)), zap.Int("total", n.BandCount()))
	return nil
}

// DeleteBands removes the selected bands.
func (s *Scene) DeleteBands(sels ...Selector) error {
	indices := make([]int, len(sels))
	for i, sel := range sels {
		no, err := s.BandNumber(sel)
		if err != nil {
			return err
		}
		indices[i] = no
	}
	n, err := s.node.DeleteBands(indices)
	if err != nil {
		return err
	}
	s.push(n)
	return nil
}

// Get reads the selected band. An expression in the band metadata is
// applied to every value, then _FillValue and infinities become NaN.
func (s *Scene) Get(sel Selector) (a *raster.Array, err error) {
	no, err := s.BandNumber(sel)
	if err != nil {
		return
	}
	b, err := s.node.Band(no)
	if err != nil {
		return
	}
	if a, err = s.node.ReadBand(no); err != nil {
		return
	}
	if expr := strings.TrimSpace(b.Meta[vrt.KeyExpression]); expr != "" {
		if err = evaluate(expr, a); err != nil {
			return nil, fmt.Errorf("band %d: %w", no, err)
		}
	}
	maskInvalid(a, b.Meta)
	return
}

func parseExpression(expr string) (*goeval.EvaluableExpression, error) {
	e, err := goeval.NewEvaluableExpression(expr)
	if err != nil {
		return nil, fmt.Errorf("%w %q: %v", ErrBadExpression, expr, err)
	}
	for _, token := range e.Tokens() {
		if token.Kind != goeval.VARIABLE {
			continue
		}
		if name, _ := token.Value.(string); name != exprVariable {
			return nil, fmt.Errorf("%w %q: variable %v is not supported, only %s", ErrBadExpression, expr, token.Value, exprVariable)
		}
	}
	return e, nil
}

// evaluate replaces each value v of a with expr(bandData=v). Complex data
// keeps only the evaluated real part.
func evaluate(expr string, a *raster.Array) error {
	e, err := parseExpression(expr)
	if err != nil {
		return err
	}
	params := map[string]any{}
	for i, v := range a.Re {
		params[exprVariable] = v
		res, err := e.Evaluate(params)
		if err != nil {
			return fmt.Errorf("%w %q: %v", ErrBadExpression, expr, err)
		}
		f, ok := res.(float64)
		if !ok {
			if bv, isBool := res.(bool); isBool {
				f = 0
				if bv {
					f = 1
				}
			} else {
				return fmt.Errorf("%w %q: result %v is not a number", ErrBadExpression, expr, res)
			}
		}
		a.Re[i] = f
	}
	a.Im = nil
	return nil
}

func maskInvalid(a *raster.Array, md map[string]string) {
	fill, hasFill := math.NaN(), false
	if s, ok := md[vrt.KeyFillValue]; ok {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			log.Info(logTag+"cannot replace _FillValue with NaN", zap.String("fillValue", s), zap.Error(err))
		} else {
			fill, hasFill = v, true
		}
	}
	for i, v := range a.Re {
		if math.IsInf(v, 0) || (hasFill && v == fill) {
			a.Re[i] = math.NaN()
			if a.Im != nil {
				a.Im[i] = math.NaN()
			}
		}
	}
}
