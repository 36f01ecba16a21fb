package handlers

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/genoweb/genoserve/internal/httpd"
	"github.com/genoweb/genoserve/internal/models"
	"github.com/genoweb/genoserve/internal/session"
)

// LocationResolver finds the analysis artifacts of a processed sample
// folder.
type LocationResolver interface {
	Resolve(sampleDir, artifactType, locus string) ([]models.FileLocation, error)
}

// artifact extension tables per requested type
var artifactExtensions = map[string][]string{
	"BAM":            {".bam"},
	"CRAM":           {".cram"},
	"BAI":            {".bai"},
	"VCF":            {".vcf", ".vcf.gz"},
	"BCF":            {".bcf"},
	"GSVAR":          {".GSvar"},
	"BED":            {".bed"},
	"COPY_NUMBER":    {"_cnvs.tsv"},
	"STRUCTURAL":     {"_var_structural.bedpe"},
	"REPEATS":        {"_repeats.vcf"},
	"LOWCOV":         {"_lowcov.bed"},
	"MANTA_EVIDENCE": {"_manta_evidence.bam"},
}

// FilesystemResolver locates artifacts by scanning the sample folder for
// files with the type's extensions.
type FilesystemResolver struct{}

func (r *FilesystemResolver) Resolve(sampleDir, artifactType, locus string) ([]models.FileLocation, error) {
	extensions, ok := artifactExtensions[strings.ToUpper(artifactType)]
	if !ok {
		return nil, httpd.Argumentf("unknown file type: %s", artifactType)
	}

	entries, err := os.ReadDir(sampleDir)
	if err != nil {
		return nil, httpd.NotFoundf("sample folder could not be read")
	}

	sample := filepath.Base(sampleDir)
	var locations []models.FileLocation
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		for _, ext := range extensions {
			if !strings.HasSuffix(name, ext) {
				continue
			}
			if locus != "" && !strings.Contains(name, locus) {
				continue
			}
			locations = append(locations, models.FileLocation{
				ID:       sample,
				Type:     strings.ToUpper(artifactType),
				Filename: filepath.Join(sampleDir, name),
				Exists:   true,
			})
			break
		}
	}
	sort.Slice(locations, func(i, j int) bool { return locations[i].Filename < locations[j].Filename })
	return locations, nil
}

// FileLocation answers where the analysis artifacts of a processed sample
// live. The sample folder is addressed through a temporary URL token, so
// clients never see real paths they were not handed explicitly.
func (s *Service) FileLocation(req *httpd.Request) *httpd.Response {
	entity := s.urls.Get(req.Param("ps_url_id"))
	if entity.IsEmpty() || time.Since(entity.Created) > s.cfg.URLLifetime {
		return httpd.ErrorResponseFrom(
			httpd.NotFoundf("The requested sample does not exist or has expired"), req)
	}

	artifactType := req.Param("type")
	locus := req.Param("locus")
	returnIfMissing := req.Param("return_if_missing") == "true" || req.Param("return_if_missing") == "1"
	multiple := req.Param("multiple_files") == "true" || req.Param("multiple_files") == "1"

	key := session.LocationKey{
		Sample:          entity.FilenameWithPath,
		Type:            strings.ToUpper(artifactType),
		Locus:           locus,
		ReturnIfMissing: returnIfMissing,
		Multiple:        multiple,
	}

	locations, cached := s.locations.Get(key)
	if !cached {
		resolved, err := s.resolver.Resolve(entity.FilenameWithPath, artifactType, locus)
		if err != nil {
			return httpd.ErrorResponseFrom(err, req)
		}
		locations = resolved
		if !returnIfMissing {
			kept := locations[:0]
			for _, loc := range locations {
				if loc.Exists {
					kept = append(kept, loc)
				}
			}
			locations = kept
		}
		if !multiple && len(locations) > 1 {
			locations = locations[:1]
		}
		s.locations.Put(key, locations)
	}

	// every artifact is exposed through a fresh temporary URL of its own
	type locationOut struct {
		ID     string `json:"id"`
		Type   string `json:"type"`
		File   string `json:"filename"`
		Exists bool   `json:"exists"`
	}
	out := make([]locationOut, 0, len(locations))
	for _, loc := range locations {
		url := s.urls.Find(loc.Filename)
		if url.IsEmpty() {
			url = s.urls.Create(loc.Filename)
		}
		out = append(out, locationOut{
			ID:     loc.ID,
			Type:   loc.Type,
			File:   "temp/" + url.Token + "/" + filepath.Base(loc.Filename),
			Exists: loc.Exists,
		})
	}

	body, err := json.Marshal(out)
	if err != nil {
		return httpd.ErrorResponse(httpd.StatusInternalServerError, req, "Could not serialize the locations")
	}

	resp := httpd.NewResponse(httpd.StatusOK)
	resp.SetPayload(httpd.ContentTypeJSON, body)
	return resp
}
