package pages

import "net/http"

// Image is a visual reference asset for one page.
type Image struct {
	MediaType string
	Data      []byte
}

// NewImage wraps raw bytes, sniffing the media type when it is not given.
func NewImage(data []byte, mediaType string) Image {
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	return Image{MediaType: mediaType, Data: data}
}

// ReferenceSet maps page names and routes to their sketches. It is built
// once at session start and never modified.
type ReferenceSet struct {
	byKey map[string]Image
}

// NewReferenceSet indexes images by both page name and canonical route.
// images[i] belongs to the i-th entry of names.
func NewReferenceSet(names []string, images []Image) *ReferenceSet {
	rs := &ReferenceSet{byKey: make(map[string]Image, 2*len(names))}
	for i, raw := range names {
		if i >= len(images) {
			break
		}
		name := Normalize(raw)
		rs.byKey[name] = images[i]
		rs.byKey[RouteFor(i, name)] = images[i]
	}
	return rs
}

// Lookup finds the sketch for a page name or route.
func (rs *ReferenceSet) Lookup(key string) (Image, bool) {
	img, ok := rs.byKey[key]
	return img, ok
}
