// Package form stages, validates and submits create/edit payloads.
package form

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/rflorenc/facility-workbench/internal/datasource"
	"github.com/rflorenc/facility-workbench/internal/models"
)

var (
	ErrAlreadyOpen  = errors.New("a form is already open")
	ErrNotOpen      = errors.New("no form is open")
	ErrSubmitting   = errors.New("submission already in progress")
	ErrInvalid      = errors.New("form has validation errors")
	ErrUnknownField = errors.New("unknown field")
	ErrDerivedField = errors.New("field is derived and cannot be edited")
	ErrNotImage     = errors.New("field does not accept images")
)

// Saver is the part of datasource.Source the form submits to.
type Saver interface {
	Create(ctx context.Context, fields models.Item, uploads []datasource.Upload) (models.Item, error)
	Update(ctx context.Context, id string, fields models.Item, uploads []datasource.Upload) (models.Item, error)
}

type stagedImage struct {
	id       string
	path     string
	filename string
}

// Controller owns one form at a time. Close (or a successful Submit)
// discards all of its state including staged image files.
type Controller struct {
	schema   *models.Schema
	source   Saver
	stageDir string

	mu         sync.Mutex
	open       bool
	gen        uint64 // bumped on every Open
	mode       models.FormMode
	targetID   string
	initial    models.Item
	values     models.Item
	errs       map[string]string
	images     map[string]stagedImage
	dirty      bool
	submitting bool
	cancel     context.CancelFunc
}

// NewController creates a form controller. Image previews are staged under
// stageDir, or the system temp dir when it is empty.
func NewController(schema *models.Schema, source Saver, stageDir string) *Controller {
	return &Controller{schema: schema, source: source, stageDir: stageDir}
}

// Open starts a form. Creating starts from field defaults; editing starts
// from a copy of initial, which must carry its primary key.
func (c *Controller) Open(mode models.FormMode, initial models.Item) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.open {
		return ErrAlreadyOpen
	}

	values := make(models.Item)
	switch mode {
	case models.ModeCreating:
		for _, f := range c.schema.Fields {
			if f.Default != "" {
				values[f.Name] = f.Default
			}
		}
		for k, v := range initial {
			values[k] = v
		}
	case models.ModeEditing:
		id := initial.Key(c.schema.PrimaryKey)
		if id == "" {
			return fmt.Errorf("editing %s: item has no %s", c.schema.Singular, c.schema.PrimaryKey)
		}
		c.targetID = id
		values = initial.Clone()
		// Credentials are never pre-filled.
		for _, f := range c.schema.Fields {
			if f.Kind == models.KindPassword {
				delete(values, f.Name)
			}
		}
	default:
		return fmt.Errorf("unknown form mode %q", mode)
	}

	c.open = true
	c.gen++
	c.mode = mode
	c.values = values
	c.errs = make(map[string]string)
	c.images = make(map[string]stagedImage)
	c.dirty = false
	c.derive()
	c.initial = c.values.Clone()
	return nil
}

// IsOpen reports whether a form is open.
func (c *Controller) IsOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

// SetField updates one field and clears its error.
func (c *Controller) SetField(name string, value interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return ErrNotOpen
	}
	f, ok := c.schema.Field(name)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if f.Derived {
		return fmt.Errorf("%w: %s", ErrDerivedField, name)
	}
	c.values[name] = value
	delete(c.errs, name)
	c.dirty = true
	c.derive()
	return nil
}

// AttachImage stages an image for an image field. The staged copy lives
// until the form closes; attaching again replaces it. The upload is copied
// without holding the form lock.
func (c *Controller) AttachImage(name, filename string, r io.Reader) (string, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return "", ErrNotOpen
	}
	f, ok := c.schema.Field(name)
	if !ok {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	if f.Kind != models.KindImage {
		c.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrNotImage, name)
	}
	gen := c.gen
	c.mu.Unlock()

	id := uuid.NewString()
	path, err := stageFile(c.stageDir, "preview-"+id+"-*"+filepath.Ext(filename), r)
	if err != nil {
		return "", fmt.Errorf("staging image: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open || c.gen != gen {
		os.Remove(path)
		return "", ErrNotOpen
	}
	if prev, ok := c.images[name]; ok {
		release(prev)
	}
	c.images[name] = stagedImage{id: id, path: path, filename: filepath.Base(filename)}
	delete(c.errs, name)
	c.dirty = true
	return id, nil
}

func stageFile(dir, pattern string, r io.Reader) (string, error) {
	tmp, err := os.CreateTemp(dir, pattern)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(tmp, r); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (c *Controller) derive() {
	for _, d := range c.schema.Derive {
		d(c.values)
	}
}

// checkValues is what validation sees: staged images count as values.
func (c *Controller) checkValues() models.Item {
	vals := c.values.Clone()
	for name, img := range c.images {
		vals[name] = img.filename
	}
	return vals
}

// Validate collects every violation and stores them as the form's errors.
func (c *Controller) Validate() map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return map[string]string{}
	}
	c.derive()
	c.errs = Validate(c.schema, c.checkValues(), c.mode)
	return copyErrs(c.errs)
}

// Changes lists fields whose value differs from what the form opened with.
func (c *Controller) Changes() map[string]interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]interface{})
	if !c.open {
		return out
	}
	for k, v := range c.values {
		if f, ok := c.schema.Field(k); ok && f.Kind == models.KindPassword {
			continue
		}
		if old, ok := c.initial[k]; !ok || textOf(old) != textOf(v) {
			out[k] = v
		}
	}
	for name := range c.images {
		out[name] = c.images[name].filename
	}
	return out
}

func (c *Controller) payload() (models.Item, []datasource.Upload) {
	p := make(models.Item)
	for k, v := range c.values {
		if k == c.schema.PrimaryKey {
			continue
		}
		f, known := c.schema.Field(k)
		if known && f.Kind == models.KindImage {
			// Existing image URLs are not re-sent; new ones go as file parts.
			continue
		}
		if known && f.CreateOnly && c.mode == models.ModeEditing && textOf(v) == "" {
			continue
		}
		p[k] = v
	}
	var uploads []datasource.Upload
	names := make([]string, 0, len(c.images))
	for name := range c.images {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		img := c.images[name]
		uploads = append(uploads, datasource.Upload{Field: name, Path: img.path, Filename: img.filename})
	}
	return p, uploads
}

// Submit validates and, when clean, creates or updates the record. Local
// violations return ErrInvalid without touching the data source; server
// validation errors are merged into the returned errors. On success the form
// is closed.
func (c *Controller) Submit(ctx context.Context) (models.Item, map[string]string, error) {
	c.mu.Lock()
	if !c.open {
		c.mu.Unlock()
		return nil, nil, ErrNotOpen
	}
	if c.submitting {
		c.mu.Unlock()
		return nil, nil, ErrSubmitting
	}
	c.derive()
	c.errs = Validate(c.schema, c.checkValues(), c.mode)
	if len(c.errs) > 0 {
		errs := copyErrs(c.errs)
		c.mu.Unlock()
		return nil, errs, ErrInvalid
	}
	fields, uploads := c.payload()
	mode, id := c.mode, c.targetID
	sctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.submitting = true
	c.mu.Unlock()
	defer cancel()

	var (
		item models.Item
		err  error
	)
	if mode == models.ModeCreating {
		item, err = c.source.Create(sctx, fields, uploads)
	} else {
		item, err = c.source.Update(sctx, id, fields, uploads)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.submitting = false
	c.cancel = nil
	if !c.open {
		// Closed while the request was in flight.
		if err == nil {
			err = context.Canceled
		}
		return nil, nil, err
	}
	if err != nil {
		var ve *datasource.ValidationError
		if errors.As(err, &ve) {
			for field, msg := range ve.Fields {
				c.errs[field] = msg
			}
			slog.Info("form_event", "event", "server_rejected", "resource", c.schema.Name, "fields", len(ve.Fields))
			return nil, copyErrs(c.errs), err
		}
		slog.Warn("form_event", "event", "submit_failed", "resource", c.schema.Name, "mode", mode, "error", err)
		return nil, nil, err
	}
	if item == nil {
		item = fields.Clone()
		if id != "" {
			item[c.schema.PrimaryKey] = id
		}
	}
	slog.Info("form_event", "event", "submitted", "resource", c.schema.Name, "mode", mode, "id", item.Key(c.schema.PrimaryKey))
	c.reset()
	return item, nil, nil
}

// Close discards the form, aborting any in-flight submit and removing
// staged image files. Closing a closed form is a no-op.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.reset()
}

func (c *Controller) reset() {
	for _, img := range c.images {
		release(img)
	}
	c.open = false
	c.mode = ""
	c.targetID = ""
	c.initial = nil
	c.values = nil
	c.errs = nil
	c.images = nil
	c.dirty = false
}

func release(img stagedImage) {
	if err := os.Remove(img.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("form_event", "event", "preview_release_failed", "path", img.path, "error", err)
	}
}

// State is a render-ready snapshot of the form.
type State struct {
	Mode       models.FormMode   `json:"mode"`
	TargetID   string            `json:"target_id,omitempty"`
	Fields     models.Item       `json:"fields"`
	Errors     map[string]string `json:"errors"`
	Images     map[string]string `json:"images,omitempty"` // field -> preview id
	Dirty      bool              `json:"dirty"`
	Submitting bool              `json:"submitting"`
}

// Snapshot returns the form state, or nil when no form is open. Password
// values are masked.
func (c *Controller) Snapshot() *State {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.open {
		return nil
	}
	s := &State{
		Mode:       c.mode,
		TargetID:   c.targetID,
		Fields:     c.values.Clone(),
		Errors:     copyErrs(c.errs),
		Dirty:      c.dirty,
		Submitting: c.submitting,
	}
	for _, f := range c.schema.Fields {
		if f.Kind == models.KindPassword && s.Fields.Text(f.Name) != "" {
			s.Fields[f.Name] = "••••••••"
		}
	}
	if len(c.images) > 0 {
		s.Images = make(map[string]string, len(c.images))
		for name, img := range c.images {
			s.Images[name] = img.id
		}
	}
	return s
}

// StagedPaths returns the files currently staged for upload.
func (c *Controller) StagedPaths() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	paths := make([]string, 0, len(c.images))
	for _, img := range c.images {
		paths = append(paths, img.path)
	}
	sort.Strings(paths)
	return paths
}

func textOf(v interface{}) string {
	return models.Item{"v": v}.Text("v")
}

func copyErrs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
