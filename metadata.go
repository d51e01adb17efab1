package geovrt

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/wgdzlh/geovrt/errs"
	"github.com/wgdzlh/geovrt/log"
	"github.com/wgdzlh/geovrt/mapper"
)

// Metadata returns a copy of the global metadata.
func (s *Scene) Metadata() map[string]string { return s.node.Metadata() }

// MetadataItem looks key up in the global metadata.
func (s *Scene) MetadataItem(key string) (v string, ok bool) {
	v, ok = s.node.Metadata()[key]
	return
}

// BandMetadata returns a copy of the metadata of the selected band.
func (s *Scene) BandMetadata(sel Selector) (map[string]string, error) {
	no, err := s.BandNumber(sel)
	if err != nil {
		return nil, err
	}
	b, err := s.node.Band(no)
	if err != nil {
		return nil, err
	}
	return b.Meta, nil
}

// SetMetadata merges md into the global metadata. Empty values delete keys.
// Metadata edits are not recorded in the history.
func (s *Scene) SetMetadata(md map[string]string) {
	s.node = s.node.WithMetadata(md)
}

// SetBandMetadata merges md into the metadata of the selected band.
func (s *Scene) SetBandMetadata(sel Selector, md map[string]string) error {
	no, err := s.BandNumber(sel)
	if err != nil {
		return err
	}
	n, err := s.node.WithBandMetadata(no, md)
	if err != nil {
		return err
	}
	s.node = n
	return nil
}

// Time is the acquisition time of the selected band: its own time item,
// else the global one.
func (s *Scene) Time(sel Selector) (t time.Time, err error) {
	md, err := s.BandMetadata(sel)
	if err != nil {
		return
	}
	v, ok := md[mapper.KeyTime]
	if !ok {
		if v, ok = s.MetadataItem(mapper.KeyTime); !ok {
			return t, fmt.Errorf("band %s has no %s", sel, mapper.KeyTime)
		}
	}
	if t, err = mapper.ParseTime(v); err != nil {
		return t, errs.Malformed("scene time", mapper.KeyTime, err)
	}
	return
}

// Times lists the time of every band, zero where a band has none.
func (s *Scene) Times() []time.Time {
	out := make([]time.Time, s.node.BandCount())
	for i := range out {
		t, err := s.Time(ByIndex(i + 1))
		if err != nil {
			log.Debug(logTag+"band has no time", zap.Int("band", i+1), zap.Error(err))
			continue
		}
		out[i] = t
	}
	return out
}
