package usecase

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
)

// NameGenerator returns the stored name for a raw upload.
type NameGenerator func(u *model.Upload) string

// ExtractedFile is a raw upload pulled out of a payload, paired with the
// stored name that replaced it.
type ExtractedFile struct {
	Field  model.FileField
	Name   string
	Upload *model.Upload
}

// FileExtractor separates raw uploads from the rest of a payload.
type FileExtractor struct {
	newName NameGenerator
}

// NewFileExtractor creates a FileExtractor. A nil generator uses HashName.
func NewFileExtractor(gen NameGenerator) *FileExtractor {
	if gen == nil {
		gen = HashName
	}
	return &FileExtractor{newName: gen}
}

// Extract replaces every raw upload held by one of fields with a generated
// stored name. It returns the rewritten copy of attrs and the extracted
// uploads in field order. Absent fields, stored names and removals are
// left as they are. attrs itself is not modified.
func (e *FileExtractor) Extract(attrs model.VideoAttributes, fields []model.FileField) (model.VideoAttributes, []ExtractedFile) {
	out := attrs.Clone()

	var extracted []ExtractedFile
	for _, field := range fields {
		value, ok := out.Files[field]
		if !ok || !value.IsUpload() {
			continue
		}

		name := e.newName(value.Upload)
		out.Files[field] = model.StoredFileValue(name)
		extracted = append(extracted, ExtractedFile{
			Field:  field,
			Name:   name,
			Upload: value.Upload,
		})
	}

	return out, extracted
}

// HashName derives a 40 character hex name from a random nonce, the original
// filename and the size, keeping the lower-cased original extension when it
// is alphanumeric.
func HashName(u *model.Upload) string {
	nonce := uuid.New()

	h := sha256.New()
	h.Write(nonce[:])
	h.Write([]byte(u.Filename))
	h.Write([]byte(strconv.FormatInt(u.Size, 10)))

	name := hex.EncodeToString(h.Sum(nil))[:40]
	return name + cleanExt(u.Filename)
}

// cleanExt returns the lower-cased extension of filename, or "" when it holds
// anything but ASCII letters and digits.
func cleanExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}
