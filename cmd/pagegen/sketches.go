package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pagegen/pkg/pages"
	"pagegen/pkg/session"
)

var sketchMediaTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".webp": "image/webp",
}

// loadSketches reads every image in dir as one page. The file name without
// extension is the page name; pages are ordered by file name.
func loadSketches(dir string) ([]session.PageInput, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sketches directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := sketchMediaTypes[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			names = append(names, e.Name())
		}
	}
	if len(names) == 0 {
		return nil, fmt.Errorf("no sketches (png, jpeg, gif, webp) found in %s", dir)
	}
	sort.Strings(names)

	inputs := make([]session.PageInput, 0, len(names))
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("failed to read sketch %s: %w", name, err)
		}
		ext := filepath.Ext(name)
		inputs = append(inputs, session.PageInput{
			Name:      strings.TrimSuffix(name, ext),
			Reference: pages.NewImage(data, sketchMediaTypes[strings.ToLower(ext)]),
		})
	}
	return inputs, nil
}
