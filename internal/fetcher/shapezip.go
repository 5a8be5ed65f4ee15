package fetcher

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
)

// shapefileParts are the sidecar extensions read alongside a .shp.
var shapefileParts = map[string]bool{
	".shp": true,
	".shx": true,
	".dbf": true,
	".prj": true,
	".cpg": true,
}

// ExtractShapefile unpacks the shapefile in a boundary archive into destDir
// and returns the path of its .shp. Only shapefile parts are written, each
// under its base name, so nested folders and unrelated entries (metadata
// XML, readmes) are ignored. An archive holding more than one .shp is
// rejected.
func ExtractShapefile(zipPath, destDir string) (string, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return "", eris.Wrapf(err, "zip: open %s", zipPath)
	}
	defer r.Close() //nolint:errcheck

	var shp string
	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		base := filepath.Base(filepath.FromSlash(f.Name))
		ext := strings.ToLower(filepath.Ext(base))
		if !shapefileParts[ext] || strings.HasPrefix(base, ".") {
			continue
		}

		dest := filepath.Join(destDir, base)
		if err := extractEntry(f, dest); err != nil {
			return "", err
		}
		if ext == ".shp" {
			if shp != "" {
				return "", eris.Errorf("zip: %s holds more than one shapefile", zipPath)
			}
			shp = dest
		}
	}

	if shp == "" {
		return "", eris.Errorf("zip: no .shp in %s", zipPath)
	}
	return shp, nil
}

func extractEntry(f *zip.File, dest string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "zip: open entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(dest)
	if err != nil {
		return eris.Wrapf(err, "zip: create %s", dest)
	}
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "zip: write %s", dest)
	}
	return eris.Wrapf(out.Close(), "zip: close %s", dest)
}
