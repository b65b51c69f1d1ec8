// Package imagemeta reads the EXIF metadata of downloaded images.
//
// Photos published on a site often carry more than their pixels: GPS
// coordinates, camera serial numbers, editing software and author names.
// The EXIFInspector picks out the tags that matter and flags the ones that
// can identify a person or a place.
package imagemeta

import (
	"errors"
	"fmt"

	exif "github.com/dsoprea/go-exif/v3"

	"github.com/nao1215/imgcrawl/internal/model"
)

// tagClass groups the tags of interest.
type tagClass int

const (
	classNone tagClass = iota
	classGPS
	classCamera
	classSerial
	classSoftware
	classAuthor
	classTimestamp
	classComputer
)

// tagClasses lists the EXIF tags the inspector reports.
var tagClasses = map[string]tagClass{
	"GPSLatitude":        classGPS,
	"GPSLongitude":       classGPS,
	"GPSLatitudeRef":     classGPS,
	"GPSLongitudeRef":    classGPS,
	"GPSAltitude":        classGPS,
	"Make":               classCamera,
	"Model":              classCamera,
	"SerialNumber":       classSerial,
	"CameraSerialNumber": classSerial,
	"BodySerialNumber":   classSerial,
	"LensSerialNumber":   classSerial,
	"Software":           classSoftware,
	"ProcessingSoftware": classSoftware,
	"Artist":             classAuthor,
	"Author":             classAuthor,
	"Copyright":          classAuthor,
	"XPAuthor":           classAuthor,
	"DateTimeOriginal":   classTimestamp,
	"DateTimeDigitized":  classTimestamp,
	"DateTime":           classTimestamp,
	"HostComputer":       classComputer,
}

// sensitive reports whether tags of class c can identify a person, a device
// or a place.
func (c tagClass) sensitive() bool {
	switch c {
	case classGPS, classSerial, classAuthor, classComputer:
		return true
	default:
		return false
	}
}

// EXIFInspector extracts tags of interest from image bytes.
type EXIFInspector struct{}

// NewEXIFInspector returns an EXIFInspector.
func NewEXIFInspector() *EXIFInspector {
	return &EXIFInspector{}
}

// Inspect returns the tags of interest found in data.
// Images without EXIF data yield no tags and no error.
func (i *EXIFInspector) Inspect(data []byte) ([]model.ImageTag, error) {
	rawExif, err := exif.SearchAndExtractExif(data)
	if err != nil {
		if errors.Is(err, exif.ErrNoExif) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to locate EXIF data: %w", err)
	}

	entries, _, err := exif.GetFlatExifData(rawExif, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to parse EXIF data: %w", err)
	}

	return tagsOf(entries), nil
}

// tagsOf keeps the entries listed in tagClasses, in EXIF order.
func tagsOf(entries []exif.ExifTag) []model.ImageTag {
	var tags []model.ImageTag
	for _, entry := range entries {
		class, ok := tagClasses[entry.TagName]
		if !ok {
			continue
		}
		tags = append(tags, model.ImageTag{
			Name:      entry.TagName,
			Value:     entry.Formatted,
			Sensitive: class.sensitive(),
		})
	}
	return tags
}

// HasLocation reports whether tags include GPS coordinates.
func HasLocation(tags []model.ImageTag) bool {
	for _, tag := range tags {
		if tagClasses[tag.Name] == classGPS {
			return true
		}
	}
	return false
}
