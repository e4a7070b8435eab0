// Package record describes the image records sent to Ximilar services and
// encodes their image source into the wire form.
package record

import (
	"errors"
	"fmt"
	"image"
)

// Record keys understood by the services.
const (
	KeyFile      = "_file"
	KeyURL       = "_url"
	KeyBase64    = "_base64"
	KeyImageData = "_img_data"
	KeyRecords   = "records"
	KeyNoResize  = "noresize"
)

var (
	// ErrSourceCount is returned when a record map has zero or several image sources.
	ErrSourceCount = errors.New("record must have exactly one of _file, _url, _base64, _img_data")

	// ErrNoSource is returned when a Record has no Source.
	ErrNoSource = errors.New("record has no image source")

	// ErrFetch is returned when a URL source cannot be downloaded.
	ErrFetch = errors.New("image download failed")
)

// Source is where the image of a record comes from. It is one of File, URL,
// Base64 or RawPixels.
type Source interface {
	sourceKey() string
}

// File is an image on the local disk.
type File struct {
	Path string
}

// URL is an image the service downloads itself.
type URL struct {
	Location string
}

// Base64 is an already encoded image.
type Base64 struct {
	Data string
}

// RawPixels is a decoded image held in memory.
type RawPixels struct {
	Image image.Image
}

func (File) sourceKey() string      { return KeyFile }
func (URL) sourceKey() string       { return KeyURL }
func (Base64) sourceKey() string    { return KeyBase64 }
func (RawPixels) sourceKey() string { return KeyImageData }

// Record is one image plus the extra fields sent along with it
// (e.g. "_id", "labels", "meta_data").
type Record struct {
	Source Source
	Fields map[string]any
}

// Validate reports whether r has a usable source.
func (r Record) Validate() error {
	switch s := r.Source.(type) {
	case nil:
		return ErrNoSource
	case File:
		if s.Path == "" {
			return fmt.Errorf("%w: empty file path", ErrNoSource)
		}
	case URL:
		if s.Location == "" {
			return fmt.Errorf("%w: empty url", ErrNoSource)
		}
	case Base64:
		if s.Data == "" {
			return fmt.Errorf("%w: empty base64 data", ErrNoSource)
		}
	case RawPixels:
		if s.Image == nil {
			return fmt.Errorf("%w: nil image", ErrNoSource)
		}
	}
	return nil
}

// FromMap builds a Record from the map form used by the services. Exactly one
// source key must be present; every other key becomes a field.
func FromMap(m map[string]any) (Record, error) {
	var (
		rec   Record
		found int
	)
	rec.Fields = make(map[string]any, len(m))

	for key, value := range m {
		switch key {
		case KeyFile, KeyURL, KeyBase64:
			s, ok := value.(string)
			if !ok {
				return Record{}, fmt.Errorf("%s must be a string, got %T", key, value)
			}
			found++
			switch key {
			case KeyFile:
				rec.Source = File{Path: s}
			case KeyURL:
				rec.Source = URL{Location: s}
			default:
				rec.Source = Base64{Data: s}
			}
		case KeyImageData:
			img, ok := value.(image.Image)
			if !ok {
				return Record{}, fmt.Errorf("%s must be an image.Image, got %T", key, value)
			}
			found++
			rec.Source = RawPixels{Image: img}
		default:
			rec.Fields[key] = value
		}
	}

	if found != 1 {
		return Record{}, ErrSourceCount
	}
	return rec, nil
}

// FromURLs creates one record per URL.
func FromURLs(urls ...string) []Record {
	records := make([]Record, len(urls))
	for i, u := range urls {
		records[i] = Record{Source: URL{Location: u}}
	}
	return records
}

// FromFiles creates one record per file path.
func FromFiles(paths ...string) []Record {
	records := make([]Record, len(paths))
	for i, p := range paths {
		records[i] = Record{Source: File{Path: p}}
	}
	return records
}
