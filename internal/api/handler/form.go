package handler

import (
	"errors"
	"fmt"
	"html"
	"mime"
	"mime/multipart"
	"net/http"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hszk-dev/mediacatalog/internal/domain/model"
	"github.com/hszk-dev/mediacatalog/internal/usecase"
)

// multipartMemory is the part of a multipart body kept in memory; larger
// files spill to temporary files.
const multipartMemory = 32 << 20

// videoForm holds the raw scalar form values of a create or update request.
// A nil pointer means the key was not sent.
type videoForm struct {
	Title        *string `form:"title" validate:"omitempty,max=255"`
	Description  *string `form:"description"`
	YearLaunched *string `form:"year_launched" validate:"omitempty,number,len=4"`
	Opened       *string `form:"opened" validate:"omitempty,boolean"`
	Rating       *string `form:"rating" validate:"omitempty,oneof=L 10 12 14 16 18"`
	Duration     *string `form:"duration" validate:"omitempty,number"`

	CategoryIDs   []string `form:"categories_id" validate:"omitempty,dive,uuid"`
	GenreIDs      []string `form:"genres_id" validate:"omitempty,dive,uuid"`
	CastMemberIDs []string `form:"cast_members_id" validate:"omitempty,dive,uuid"`
}

var (
	validate  = newValidator()
	sanitizer = bluemonday.StrictPolicy()
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		return f.Tag.Get("form")
	})
	return v
}

// errNotForm is returned when the request body is neither multipart nor urlencoded.
var errNotForm = errors.New("request body must be multipart/form-data or application/x-www-form-urlencoded")

// parsedForm is a decoded request together with the uploaded files that
// must be closed once the service call returns.
type parsedForm struct {
	attrs model.VideoAttributes
	files []multipart.File
}

func (p *parsedForm) close() {
	for _, f := range p.files {
		_ = f.Close()
	}
}

// parseVideoForm decodes a multipart or urlencoded request into attributes.
//
// Relation keys: an absent key leaves the relation untouched, a key sent only
// with empty values clears it. Ids may repeat the key or be comma separated.
// File keys: a file part uploads new content, a non-empty text value keeps
// the named stored file, an empty text value clears the field.
func parseVideoForm(r *http.Request) (*parsedForm, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	switch mediaType {
	case "multipart/form-data":
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return nil, fmt.Errorf("parse multipart form: %w", err)
		}
	case "application/x-www-form-urlencoded":
		if err := r.ParseForm(); err != nil {
			return nil, fmt.Errorf("parse form: %w", err)
		}
	default:
		return nil, errNotForm
	}

	form := videoForm{
		Title:         formValue(r, "title"),
		Description:   formValue(r, "description"),
		YearLaunched:  formValue(r, "year_launched"),
		Opened:        formValue(r, "opened"),
		Rating:        formValue(r, "rating"),
		Duration:      formValue(r, "duration"),
		CategoryIDs:   formList(r, "categories_id"),
		GenreIDs:      formList(r, "genres_id"),
		CastMemberIDs: formList(r, "cast_members_id"),
	}
	if err := validate.Struct(form); err != nil {
		return nil, toValidationError(err)
	}

	attrs, err := form.attributes(r)
	if err != nil {
		return nil, err
	}

	parsed := &parsedForm{attrs: attrs}
	if err := parsed.collectFiles(r); err != nil {
		parsed.close()
		return nil, err
	}
	return parsed, nil
}

func (f videoForm) attributes(r *http.Request) (model.VideoAttributes, error) {
	var attrs model.VideoAttributes

	if f.Title != nil {
		attrs.Title = sanitize(*f.Title)
	}
	if f.Description != nil {
		attrs.Description = sanitize(*f.Description)
	}
	if f.YearLaunched != nil {
		year, err := strconv.Atoi(*f.YearLaunched)
		if err != nil {
			return attrs, &usecase.ValidationError{Field: "year_launched", Err: model.ErrInvalidYear}
		}
		attrs.YearLaunched = &year
	}
	if f.Opened != nil {
		opened, err := strconv.ParseBool(*f.Opened)
		if err != nil {
			return attrs, &usecase.ValidationError{Field: "opened", Err: err}
		}
		attrs.Opened = &opened
	}
	if f.Rating != nil {
		rating := model.Rating(*f.Rating)
		attrs.Rating = &rating
	}
	if f.Duration != nil {
		duration, err := strconv.Atoi(*f.Duration)
		if err != nil {
			return attrs, &usecase.ValidationError{Field: "duration", Err: model.ErrInvalidDuration}
		}
		attrs.Duration = &duration
	}

	lists := map[model.Relation][]string{
		model.RelationCategories:  f.CategoryIDs,
		model.RelationGenres:      f.GenreIDs,
		model.RelationCastMembers: f.CastMemberIDs,
	}
	for _, rel := range model.Relations {
		if _, ok := r.PostForm[rel.IDField()]; !ok {
			continue
		}
		if attrs.Relations == nil {
			attrs.Relations = make(map[model.Relation][]uuid.UUID, len(model.Relations))
		}
		ids := make([]uuid.UUID, 0, len(lists[rel]))
		for _, raw := range lists[rel] {
			ids = append(ids, uuid.MustParse(raw))
		}
		attrs.Relations[rel] = ids
	}

	return attrs, nil
}

func (p *parsedForm) collectFiles(r *http.Request) error {
	for _, field := range model.FileFields {
		key := field.String()

		if r.MultipartForm != nil {
			if headers := r.MultipartForm.File[key]; len(headers) > 0 {
				fh := headers[0]
				file, err := fh.Open()
				if err != nil {
					return fmt.Errorf("open %s: %w", key, err)
				}
				p.files = append(p.files, file)
				p.setFile(field, model.NewUploadValue(&model.Upload{
					Filename:    fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Size:        fh.Size,
					Content:     file,
				}))
				continue
			}
		}

		values, ok := r.PostForm[key]
		if !ok {
			continue
		}
		name := ""
		if len(values) > 0 {
			name = strings.TrimSpace(values[0])
		}
		if name == "" {
			p.setFile(field, model.RemoveFileValue())
			continue
		}
		p.setFile(field, model.StoredFileValue(name))
	}
	return nil
}

func (p *parsedForm) setFile(field model.FileField, value model.FileValue) {
	if p.attrs.Files == nil {
		p.attrs.Files = make(map[model.FileField]model.FileValue, len(model.FileFields))
	}
	p.attrs.Files[field] = value
}

func formValue(r *http.Request, key string) *string {
	values, ok := r.PostForm[key]
	if !ok || len(values) == 0 {
		return nil
	}
	v := strings.TrimSpace(values[0])
	return &v
}

// formList returns every non-empty value sent for key.
func formList(r *http.Request, key string) []string {
	var out []string
	for _, value := range r.PostForm[key] {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// sanitize strips markup and returns the plain text.
func sanitize(s string) *string {
	clean := html.UnescapeString(sanitizer.Sanitize(s))
	return &clean
}

func toValidationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]

	field := fe.Field()
	if i := strings.IndexByte(field, '['); i >= 0 {
		field = field[:i]
	}
	return &usecase.ValidationError{
		Field: field,
		Err:   fmt.Errorf("failed %q rule", fe.Tag()),
	}
}
