package model

import (
	"errors"
	"path"
	"time"

	"github.com/google/uuid"
)

// Rating is the age classification of a video.
type Rating string

const (
	RatingFree Rating = "L"
	Rating10   Rating = "10"
	Rating12   Rating = "12"
	Rating14   Rating = "14"
	Rating16   Rating = "16"
	Rating18   Rating = "18"
)

// Ratings lists every accepted rating in display order.
var Ratings = []Rating{RatingFree, Rating10, Rating12, Rating14, Rating16, Rating18}

func (r Rating) IsValid() bool {
	for _, rating := range Ratings {
		if r == rating {
			return true
		}
	}
	return false
}

func (r Rating) String() string {
	return string(r)
}

// Video is the catalog aggregate: scalar attributes, stored file names and
// the three relation sets, persisted as one consistency boundary.
type Video struct {
	ID           uuid.UUID
	Title        string
	Description  string
	YearLaunched int
	Opened       bool
	Rating       Rating
	Duration     int

	VideoFile   string
	ThumbFile   string
	BannerFile  string
	TrailerFile string

	CategoryIDs   []uuid.UUID
	GenreIDs      []uuid.UUID
	CastMemberIDs []uuid.UUID

	CreatedAt time.Time
	UpdatedAt time.Time
	DeletedAt *time.Time
}

var (
	ErrEmptyTitle         = errors.New("title cannot be empty")
	ErrTitleTooLong       = errors.New("title exceeds maximum length of 255 characters")
	ErrEmptyDescription   = errors.New("description cannot be empty")
	ErrInvalidYear        = errors.New("year launched must be a four digit year")
	ErrInvalidRating      = errors.New("rating is not one of the accepted values")
	ErrInvalidDuration    = errors.New("duration must be between 1 and 32767 minutes")
	ErrMissingField       = errors.New("required field is missing")
	ErrUnknownFileField   = errors.New("unknown file field")
	ErrFileTooLarge       = errors.New("file exceeds the maximum size for its field")
	ErrInvalidContentType = errors.New("file content type is not accepted for its field")
	ErrInvalidStoredName  = errors.New("stored file name is malformed")
	ErrUnknownStoredName  = errors.New("stored file name does not belong to this video")
)

const (
	maxTitleLength = 255
	minYear        = 1
	maxYear        = 9999
	minDuration    = 1
	maxDuration    = 32767 // SMALLINT column
)

// NewVideo creates a Video with a freshly generated identifier from a
// create payload. Every required scalar must be supplied.
func NewVideo(attrs VideoAttributes) (*Video, error) {
	if err := attrs.ValidateForCreate(); err != nil {
		return nil, err
	}

	now := time.Now()
	v := &Video{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	v.Apply(attrs)
	v.UpdatedAt = now
	return v, nil
}

// Apply copies every supplied scalar and file name onto the video.
// Files must already be reduced to stored names; a removal clears the field.
// Relation sets are not touched here, they are synchronized separately.
func (v *Video) Apply(attrs VideoAttributes) {
	if attrs.Title != nil {
		v.Title = *attrs.Title
	}
	if attrs.Description != nil {
		v.Description = *attrs.Description
	}
	if attrs.YearLaunched != nil {
		v.YearLaunched = *attrs.YearLaunched
	}
	if attrs.Opened != nil {
		v.Opened = *attrs.Opened
	}
	if attrs.Rating != nil {
		v.Rating = *attrs.Rating
	}
	if attrs.Duration != nil {
		v.Duration = *attrs.Duration
	}
	for field, value := range attrs.Files {
		if value.Upload != nil {
			continue
		}
		v.SetFile(field, value.Name)
	}
	v.UpdatedAt = time.Now()
}

// File returns the stored name held by a file field, or "" when empty.
func (v *Video) File(field FileField) string {
	switch field {
	case FileVideo:
		return v.VideoFile
	case FileThumb:
		return v.ThumbFile
	case FileBanner:
		return v.BannerFile
	case FileTrailer:
		return v.TrailerFile
	default:
		return ""
	}
}

// SetFile stores name on the given file field. An empty name clears it.
func (v *Video) SetFile(field FileField, name string) {
	switch field {
	case FileVideo:
		v.VideoFile = name
	case FileThumb:
		v.ThumbFile = name
	case FileBanner:
		v.BannerFile = name
	case FileTrailer:
		v.TrailerFile = name
	}
}

// FileKey returns the object storage key of a stored name owned by this video.
// Format: {video_id}/{stored_name}
func (v *Video) FileKey(name string) string {
	return FileKey(v.ID, name)
}

// FileKey scopes a stored name under its owning video directory.
func FileKey(videoID uuid.UUID, name string) string {
	return path.Join(videoID.String(), name)
}

// Relation returns the ids currently held by a relation set.
func (v *Video) Relation(rel Relation) []uuid.UUID {
	switch rel {
	case RelationCategories:
		return v.CategoryIDs
	case RelationGenres:
		return v.GenreIDs
	case RelationCastMembers:
		return v.CastMemberIDs
	default:
		return nil
	}
}

// SetRelation replaces a relation set with the de-duplicated ids.
func (v *Video) SetRelation(rel Relation, ids []uuid.UUID) {
	ids = UniqueIDs(ids)
	switch rel {
	case RelationCategories:
		v.CategoryIDs = ids
	case RelationGenres:
		v.GenreIDs = ids
	case RelationCastMembers:
		v.CastMemberIDs = ids
	}
}

// IsDeleted reports whether the video has been soft deleted.
func (v *Video) IsDeleted() bool {
	return v.DeletedAt != nil
}

// SoftDelete marks the video as deleted without touching files or relations.
func (v *Video) SoftDelete() {
	now := time.Now()
	v.DeletedAt = &now
	v.UpdatedAt = now
}

// Restore clears the deletion timestamp.
func (v *Video) Restore() {
	v.DeletedAt = nil
	v.UpdatedAt = time.Now()
}
