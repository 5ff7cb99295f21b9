package model

import (
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
)

// FileField names an attribute that references uploadable content.
type FileField string

const (
	FileVideo   FileField = "video_file"
	FileThumb   FileField = "thumb_file"
	FileBanner  FileField = "banner_file"
	FileTrailer FileField = "trailer_file"
)

// FileFields is the declared set of file fields of a Video.
var FileFields = []FileField{FileVideo, FileThumb, FileBanner, FileTrailer}

const (
	kib = int64(1024)
	mib = 1024 * kib
	gib = 1024 * mib
)

type fileRule struct {
	maxSize      int64
	contentTypes []string // prefix match
}

var fileRules = map[FileField]fileRule{
	FileVideo:   {maxSize: 50 * gib, contentTypes: []string{"video/mp4"}},
	FileThumb:   {maxSize: 5 * mib, contentTypes: []string{"image/"}},
	FileBanner:  {maxSize: 10 * mib, contentTypes: []string{"image/"}},
	FileTrailer: {maxSize: 1 * gib, contentTypes: []string{"video/mp4"}},
}

func (f FileField) IsValid() bool {
	_, ok := fileRules[f]
	return ok
}

// MaxSize returns the largest accepted upload in bytes.
func (f FileField) MaxSize() int64 {
	return fileRules[f].maxSize
}

func (f FileField) String() string {
	return string(f)
}

// URLField is the name under which the resolved URL of this field is exposed.
func (f FileField) URLField() string {
	return string(f) + "_url"
}

// Upload is a raw file received from the caller.
// Content is read exactly once, when the file is written to object storage.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Content     io.Reader
}

// FileValue is the value of a file field in a payload. It holds either a raw
// upload or the stored name of a file already in object storage. The zero
// value asks for the field to be cleared.
type FileValue struct {
	Upload *Upload
	Name   string
}

// NewUploadValue wraps a raw upload.
func NewUploadValue(u *Upload) FileValue {
	return FileValue{Upload: u}
}

// StoredFileValue references a previously stored name.
func StoredFileValue(name string) FileValue {
	return FileValue{Name: name}
}

// RemoveFileValue clears the field.
func RemoveFileValue() FileValue {
	return FileValue{}
}

func (fv FileValue) IsUpload() bool {
	return fv.Upload != nil
}

func (fv FileValue) IsRemoval() bool {
	return fv.Upload == nil && fv.Name == ""
}

// Relation names one of the many-to-many sets owned by a Video.
type Relation string

const (
	RelationCategories  Relation = "categories"
	RelationGenres      Relation = "genres"
	RelationCastMembers Relation = "cast_members"
)

// Relations lists every relation of a Video.
var Relations = []Relation{RelationCategories, RelationGenres, RelationCastMembers}

func (r Relation) IsValid() bool {
	switch r {
	case RelationCategories, RelationGenres, RelationCastMembers:
		return true
	default:
		return false
	}
}

func (r Relation) String() string {
	return string(r)
}

// IDField is the payload key carrying the related ids, e.g. "categories_id".
func (r Relation) IDField() string {
	return string(r) + "_id"
}

// VideoAttributes is a create or update payload.
//
// A nil scalar pointer or a missing map key means the field was not supplied.
// For Relations that distinction matters: a missing key leaves the relation
// alone while a present empty slice clears it.
type VideoAttributes struct {
	Title        *string
	Description  *string
	YearLaunched *int
	Opened       *bool
	Rating       *Rating
	Duration     *int

	Files     map[FileField]FileValue
	Relations map[Relation][]uuid.UUID
}

// RelationIDs returns the ids supplied for rel and whether the key is present.
func (a VideoAttributes) RelationIDs(rel Relation) ([]uuid.UUID, bool) {
	ids, ok := a.Relations[rel]
	return ids, ok
}

// Clone returns a copy whose maps can be modified without affecting a.
func (a VideoAttributes) Clone() VideoAttributes {
	out := a
	if a.Files != nil {
		out.Files = make(map[FileField]FileValue, len(a.Files))
		for k, v := range a.Files {
			out.Files[k] = v
		}
	}
	if a.Relations != nil {
		out.Relations = make(map[Relation][]uuid.UUID, len(a.Relations))
		for k, v := range a.Relations {
			out.Relations[k] = append([]uuid.UUID{}, v...)
		}
	}
	return out
}

// FieldError reports which payload field failed validation.
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ValidateForCreate checks that every required scalar is present and valid
// and that each relation carries at least one id.
func (a VideoAttributes) ValidateForCreate() error {
	required := []struct {
		field   string
		present bool
	}{
		{"title", a.Title != nil},
		{"description", a.Description != nil},
		{"year_launched", a.YearLaunched != nil},
		{"rating", a.Rating != nil},
		{"duration", a.Duration != nil},
	}
	for _, r := range required {
		if !r.present {
			return &FieldError{Field: r.field, Err: ErrMissingField}
		}
	}
	for _, rel := range Relations {
		if len(a.Relations[rel]) == 0 {
			return &FieldError{Field: rel.IDField(), Err: ErrMissingField}
		}
	}
	return a.ValidateForUpdate()
}

// ValidateForUpdate checks the supplied fields only.
func (a VideoAttributes) ValidateForUpdate() error {
	if a.Title != nil {
		if *a.Title == "" {
			return &FieldError{Field: "title", Err: ErrEmptyTitle}
		}
		if len(*a.Title) > maxTitleLength {
			return &FieldError{Field: "title", Err: ErrTitleTooLong}
		}
	}
	if a.Description != nil && *a.Description == "" {
		return &FieldError{Field: "description", Err: ErrEmptyDescription}
	}
	if a.YearLaunched != nil && (*a.YearLaunched < minYear || *a.YearLaunched > maxYear) {
		return &FieldError{Field: "year_launched", Err: ErrInvalidYear}
	}
	if a.Rating != nil && !a.Rating.IsValid() {
		return &FieldError{Field: "rating", Err: ErrInvalidRating}
	}
	if a.Duration != nil && (*a.Duration < minDuration || *a.Duration > maxDuration) {
		return &FieldError{Field: "duration", Err: ErrInvalidDuration}
	}
	for field, value := range a.Files {
		if err := validateFile(field, value); err != nil {
			return &FieldError{Field: string(field), Err: err}
		}
	}
	return nil
}

func validateFile(field FileField, value FileValue) error {
	rule, ok := fileRules[field]
	if !ok {
		return ErrUnknownFileField
	}
	if value.Upload == nil {
		if value.Name != "" && !validStoredName(value.Name) {
			return ErrInvalidStoredName
		}
		return nil
	}
	if value.Upload.Size > rule.maxSize {
		return ErrFileTooLarge
	}
	contentType := strings.ToLower(value.Upload.ContentType)
	for _, prefix := range rule.contentTypes {
		if strings.HasPrefix(contentType, prefix) {
			return nil
		}
	}
	return ErrInvalidContentType
}

// validStoredName accepts a single path element, so that FileKey always
// resolves inside the owning video directory.
func validStoredName(name string) bool {
	if name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// CheckStoredNames verifies that every stored name in the payload is the name
// current already holds for that field. A payload can keep a file or replace
// it with an upload, but never point a field at some other object. A nil
// current, as on create, accepts no stored names at all.
func (a VideoAttributes) CheckStoredNames(current *Video) error {
	for field, value := range a.Files {
		if value.IsUpload() || value.IsRemoval() {
			continue
		}
		if current == nil || current.File(field) != value.Name {
			return &FieldError{Field: string(field), Err: ErrUnknownStoredName}
		}
	}
	return nil
}

// UniqueIDs returns ids without duplicates, keeping first-seen order.
// A nil input yields an empty, non-nil slice.
func UniqueIDs(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	out := make([]uuid.UUID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
